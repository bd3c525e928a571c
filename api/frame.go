package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FrameType identifies the frame category on the stream socket.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the message envelope on the WebSocket stream. Clients send
// request frames (subscribe, unsubscribe, credit top-ups, pings); the
// server answers with response or error frames and pushes event frames
// for subscribed topics.
type Frame struct {
	ID        string          `json:"id" msgpack:"id"`
	Type      FrameType       `json:"type" msgpack:"type"`
	Method    string          `json:"method,omitempty" msgpack:"method,omitempty"`
	CorrelID  string          `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`
	Channel   string          `json:"channel,omitempty" msgpack:"channel,omitempty"`
	Credits   int             `json:"credits,omitempty" msgpack:"credits,omitempty"`
	Data      json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`
	Error     *ErrorDetail    `json:"error,omitempty" msgpack:"error,omitempty"`
	Timestamp time.Time       `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes an error in a response or error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// Stream methods.
const (
	MethodSubscribe   = "subscribe"
	MethodUnsubscribe = "unsubscribe"
)

// Frame error codes mirror HTTP statuses.
const (
	ErrCodeBadRequest     = 400
	ErrCodeMethodNotFound = 405
	ErrCodeInternal       = 500
)

// SubscribeRequest subscribes the connection to a topic channel.
type SubscribeRequest struct {
	Channel string `json:"channel"`
	Credits int    `json:"credits,omitempty"`
}

// UnsubscribeRequest removes a subscription.
type UnsubscribeRequest struct {
	Channel string `json:"channel"`
}

// NewResponseFrame creates a response to a request.
func NewResponseFrame(correlID string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        newFrameID(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorFrame creates an error response to a request.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:        newFrameID(),
		Type:      FrameErr,
		CorrelID:  correlID,
		Error:     &ErrorDetail{Code: code, Message: message},
		Timestamp: time.Now().UTC(),
	}
}

// NewEventFrame creates an event frame for a subscription channel.
func NewEventFrame(channel string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        newFrameID(),
		Type:      FrameEvent,
		Channel:   channel,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

func newFrameID() string { return uuid.NewString() }
