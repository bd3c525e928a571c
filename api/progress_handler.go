package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/Safi643133/ai-immigration-services-sub003/progress"
	"github.com/Safi643133/ai-immigration-services-sub003/stream"
)

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.jobIDParam(w, r)
	if !ok {
		return
	}

	var afterSeq int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid after sequence")
			return
		}
		afterSeq = n
	}

	updates, err := s.svc.Progress(r.Context(), jobID, ownerRef(r), afterSeq)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if updates == nil {
		updates = []*progress.Update{}
	}
	writeJSON(w, http.StatusOK, updates)
}

// progressStream serves the feed as Server-Sent Events: persisted
// updates after the requested sequence first, then live updates from
// the broker. The stream ends after a terminal update.
func (s *Server) progressStream(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.jobIDParam(w, r)
	if !ok {
		return
	}

	var afterSeq int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid after sequence")
			return
		}
		afterSeq = n
	}

	j, err := s.svc.GetJob(r.Context(), jobID, ownerRef(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before the replay so nothing published in between is
	// lost; the sequence check below drops the overlap.
	subID := "sse-" + uuid.NewString()
	sub := s.broker.Subscribe(subID, stream.JobTopic(jobID.String()))
	defer s.broker.RemoveSubscriber(subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	updates, err := s.svc.Progress(r.Context(), jobID, ownerRef(r), afterSeq)
	if err != nil {
		s.logger.Warn("sse replay failed",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	lastSeq := afterSeq
	for _, u := range updates {
		if writeErr := writeSSE(w, u); writeErr != nil {
			return
		}
		lastSeq = u.Seq
		if u.Kind.Terminal() {
			flusher.Flush()
			return
		}
	}
	flusher.Flush()

	// A terminal job with no terminal update in the replayed window has
	// nothing more to say.
	if j.Status.IsTerminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sub.C():
			if !open {
				return
			}
			if evt.Type != stream.EventProgress {
				continue
			}
			var u progress.Update
			if unmarshalErr := json.Unmarshal(evt.Data, &u); unmarshalErr != nil {
				continue
			}
			if u.Seq <= lastSeq {
				continue
			}
			if writeErr := writeSSE(w, &u); writeErr != nil {
				return
			}
			lastSeq = u.Seq
			flusher.Flush()
			if u.Kind.Terminal() {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, u *progress.Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", u.Kind, data)
	return err
}
