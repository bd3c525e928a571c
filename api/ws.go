package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/Safi643133/ai-immigration-services-sub003/stream"
)

// streamConn wraps a WebSocket connection with its negotiated codec.
// Writes are serialized: the read loop answers requests while the
// forwarder pushes events.
type streamConn struct {
	conn  net.Conn
	codec Codec
	mu    sync.Mutex
}

// writeFrame encodes and writes a frame. JSON frames go out as text,
// binary codecs as binary.
func (c *streamConn) writeFrame(f *Frame) error {
	data, err := c.codec.Encode(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codec.Name() == CodecNameJSON {
		return wsutil.WriteServerText(c.conn, data)
	}
	return wsutil.WriteServerBinary(c.conn, data)
}

// writeClose sends a close frame. Best effort.
func (c *streamConn) writeClose(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	//nolint:errcheck // peer may already be gone
	ws.WriteFrame(c.conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, reason)))
}

// handleStream upgrades to WebSocket and speaks the frame protocol:
// clients subscribe to topics, replenish flow-control credits, and
// receive event frames. The wire codec is negotiated via the format
// query parameter (json default, msgpack).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	codec := s.defaultCodec
	if format := r.URL.Query().Get("format"); format != "" {
		codec = GetCodec(format)
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	connID := "ws-" + uuid.NewString()
	sc := &streamConn{conn: conn, codec: codec}
	sub := s.broker.Subscribe(connID)

	s.logger.Info("stream client connected",
		slog.String("conn_id", connID),
		slog.String("codec", codec.Name()),
	)
	defer func() {
		s.broker.RemoveSubscriber(connID)
		conn.Close()
		s.logger.Info("stream client disconnected", slog.String("conn_id", connID))
	}()

	go s.forwardEvents(sc, sub)

	for {
		data, _, readErr := wsutil.ReadClientData(conn)
		if readErr != nil {
			return
		}

		frame, decErr := codec.Decode(data)
		if decErr != nil {
			if writeErr := sc.writeFrame(NewErrorFrame("", ErrCodeBadRequest, "invalid frame: "+decErr.Error())); writeErr != nil {
				return
			}
			continue
		}

		if frame.Type == FramePing {
			pong := &Frame{
				ID:        newFrameID(),
				Type:      FramePong,
				CorrelID:  frame.ID,
				Timestamp: frame.Timestamp,
			}
			if writeErr := sc.writeFrame(pong); writeErr != nil {
				return
			}
			continue
		}

		// Bare credit top-up.
		if frame.Method == "" && frame.Credits > 0 {
			sub.AddCredits(int64(frame.Credits))
			continue
		}

		resp := s.handleStreamRequest(connID, sub, frame)
		if resp != nil {
			if writeErr := sc.writeFrame(resp); writeErr != nil {
				return
			}
		}
	}
}

// handleStreamRequest dispatches one request frame. Payloads are JSON
// regardless of the envelope codec.
func (s *Server) handleStreamRequest(connID string, sub *stream.Subscriber, frame *Frame) *Frame {
	switch frame.Method {
	case MethodSubscribe:
		var req SubscribeRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid subscribe data")
		}
		if err := stream.ValidateTopic(req.Channel); err != nil {
			return NewErrorFrame(frame.ID, ErrCodeBadRequest, err.Error())
		}
		s.broker.SubscribeTo(connID, req.Channel)
		if req.Credits > 0 {
			sub.AddCredits(int64(req.Credits))
		}
		resp, err := NewResponseFrame(frame.ID, map[string]string{"channel": req.Channel})
		if err != nil {
			return NewErrorFrame(frame.ID, ErrCodeInternal, "marshal response")
		}
		return resp

	case MethodUnsubscribe:
		var req UnsubscribeRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid unsubscribe data")
		}
		s.broker.Unsubscribe(connID, req.Channel)
		resp, err := NewResponseFrame(frame.ID, map[string]string{"channel": req.Channel})
		if err != nil {
			return NewErrorFrame(frame.ID, ErrCodeInternal, "marshal response")
		}
		return resp

	default:
		return NewErrorFrame(frame.ID, ErrCodeMethodNotFound, "unknown method "+frame.Method)
	}
}

// forwardEvents pushes broker events to the socket until the
// subscription or the connection goes away.
func (s *Server) forwardEvents(sc *streamConn, sub *stream.Subscriber) {
	for evt := range sub.C() {
		frame, err := NewEventFrame(evt.Topic, evt)
		if err != nil {
			continue
		}
		if writeErr := sc.writeFrame(frame); writeErr != nil {
			return
		}
	}
	// The broker closed the subscription (terminal job or shutdown).
	sc.writeClose("stream ended")
}
