package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/m-mizutani/goerr/v2"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/usecase"
	"github.com/convivia-lab/convivia/pkg/utils/errutil"
)

type completeStepRequest struct {
	SchoolID  string `json:"school_id"`
	CaseID    int64  `json:"case_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	StepID    int    `json:"step_id"`
	Notes     string `json:"notes,omitempty"`
}

type completeStepResponse struct {
	Message           string             `json:"message"`
	ProtocolName      string             `json:"protocol_name"`
	ProtocolCompleted bool               `json:"protocol_completed"`
	NextStep          *protocolStepView  `json:"next_step,omitempty"`
	Progress          model.Progress     `json:"progress"`
	Steps             []protocolStepView `json:"steps"`
}

type protocolStepView struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	EstimatedTime string `json:"estimated_time,omitempty"`
	Deadline      string `json:"deadline,omitempty"`
	CompletedAt   string `json:"completed_at,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type protocolResponse struct {
	ProtocolName string             `json:"protocol_name"`
	CaseID       int64              `json:"case_id,omitempty"`
	SessionID    string             `json:"session_id,omitempty"`
	IsCompleted  bool               `json:"is_completed"`
	CurrentStep  *protocolStepView  `json:"current_step,omitempty"`
	Progress     model.Progress     `json:"progress"`
	Steps        []protocolStepView `json:"steps"`
}

// completeStepHandler marks one protocol step as completed. An unknown
// step or a missing protocol is a 404, not a silent no-op.
func (s *Server) completeStepHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req completeStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid complete request body"), http.StatusBadRequest)
		return
	}
	if req.CaseID == 0 && req.SessionID == "" {
		errutil.HandleHTTP(ctx, w, goerr.New("case_id or session_id is required"), http.StatusBadRequest)
		return
	}

	p, err := s.uc.CompleteStep(ctx, req.SchoolID, req.CaseID, req.SessionID, req.StepID, req.Notes)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrStepNotFound) || errors.Is(err, usecase.ErrProtocolNotFound) {
			status = http.StatusNotFound
		}
		errutil.HandleHTTP(ctx, w, err, status)
		return
	}

	resp := completeStepResponse{
		ProtocolName:      p.Name,
		ProtocolCompleted: p.IsCompleted,
		Progress:          p.Progress(),
		Steps:             stepViews(p.Steps),
	}
	if p.IsCompleted {
		resp.Message = "Protocolo completado."
	} else {
		resp.Message = "Paso completado."
		for i := range p.Steps {
			if p.Steps[i].Status.IsActionable() {
				v := stepView(&p.Steps[i])
				resp.NextStep = &v
				break
			}
		}
	}

	writeJSON(w, r, resp)
}

// getProtocolHandler returns the protocol for a case or session, with its
// current step and progress. A protocol-less case is a 404.
func (s *Server) getProtocolHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var caseID int64
	if raw := r.URL.Query().Get("case_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid case_id"), http.StatusBadRequest)
			return
		}
		caseID = parsed
	}
	sessionID := r.URL.Query().Get("session_id")
	if caseID == 0 && sessionID == "" {
		errutil.HandleHTTP(ctx, w, goerr.New("case_id or session_id is required"), http.StatusBadRequest)
		return
	}

	view, err := s.uc.GetProtocol(ctx, caseID, sessionID)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}
	if view == nil {
		errutil.HandleHTTP(ctx, w, goerr.New("no active protocol"), http.StatusNotFound)
		return
	}

	resp := protocolResponse{
		ProtocolName: view.Protocol.Name,
		CaseID:       view.Protocol.CaseID,
		SessionID:    view.Protocol.SessionID,
		IsCompleted:  view.Protocol.IsCompleted,
		Progress:     view.Progress,
		Steps:        stepViews(view.Protocol.Steps),
	}
	if view.Current != nil {
		v := stepView(view.Current)
		resp.CurrentStep = &v
	}

	writeJSON(w, r, resp)
}

func stepViews(steps []model.ProtocolStep) []protocolStepView {
	views := make([]protocolStepView, len(steps))
	for i := range steps {
		views[i] = stepView(&steps[i])
	}
	return views
}

func stepView(s *model.ProtocolStep) protocolStepView {
	v := protocolStepView{
		ID:            s.ID,
		Title:         s.Title,
		Status:        s.Status.String(),
		EstimatedTime: s.EstimatedTime,
		Notes:         s.Notes,
	}
	if s.Deadline != nil {
		v.Deadline = s.Deadline.Format("2006-01-02")
	}
	if s.CompletedAt != nil {
		v.CompletedAt = s.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return v
}
