package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/m-mizutani/goerr/v2"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/usecase"
	"github.com/convivia-lab/convivia/pkg/utils/errutil"
	"github.com/convivia-lab/convivia/pkg/utils/safe"
)

type chatRequest struct {
	SchoolID  string   `json:"school_id"`
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id,omitempty"`
	Message   string   `json:"message"`
	CaseID    int64    `json:"case_id,omitempty"`
	FileURIs  []string `json:"file_uris,omitempty"`
}

// chatHandler runs one streamed turn over Server-Sent Events. Each chat
// event becomes one SSE message with the event type as the SSE event name.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid chat request body"), http.StatusBadRequest)
		return
	}
	if req.SchoolID == "" || req.SessionID == "" || req.Message == "" {
		errutil.HandleHTTP(ctx, w, goerr.New("school_id, session_id and message are required"), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		errutil.HandleHTTP(ctx, w, goerr.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	err := s.uc.StreamTurn(ctx, usecase.TurnInput{
		SchoolID:  req.SchoolID,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Message:   req.Message,
		HasFiles:  len(req.FileURIs) > 0,
		FileURIs:  req.FileURIs,
		CaseID:    req.CaseID,
	}, func(ev model.ChatEvent) error {
		if err := writeSSE(w, ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// The stream is already committed; deliver the failure as a
		// best-effort terminal error event instead of a status code.
		_ = errutil.Handle(ctx, err, "streamed turn failed")
		ev := model.ChatEvent{
			Type:    types.ChatEventError,
			Content: "Ocurrió un error procesando tu mensaje. Intenta nuevamente.",
		}
		if data, merr := json.Marshal(ev); merr == nil {
			safe.Write(ctx, w, fmt.Appendf(nil, "event: %s\ndata: %s\n\n", ev.Type, data))
		}
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, ev model.ChatEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal chat event")
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return goerr.Wrap(err, "failed to write event")
	}
	return nil
}
