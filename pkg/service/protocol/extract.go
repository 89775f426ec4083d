// Package protocol extracts structured action protocols from generated text
// and renders them back as interactive response blocks.
package protocol

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/service/deadline"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")

type rawProtocol struct {
	ProtocolName string    `json:"protocol_name"`
	Steps        []rawStep `json:"steps"`
	CurrentStep  *int      `json:"current_step"`
}

type rawStep struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	EstimatedTime string `json:"estimated_time"`
}

// Extract parses generated text for an embedded protocol block. It returns
// nil when the text carries no such block, which is the normal outcome for
// conversational generations. Malformed steps are skipped rather than
// aborting the whole extraction. Deadlines are resolved against baseDate.
func Extract(text string, caseID int64, sessionID string, baseDate time.Time) *model.Protocol {
	span := locateStructuredSpan(text)
	if span == "" {
		return nil
	}

	var raw rawProtocol
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil
	}
	if raw.ProtocolName == "" || len(raw.Steps) == 0 {
		return nil
	}

	now := time.Now().UTC()

	current := 1
	if raw.CurrentStep != nil {
		current = *raw.CurrentStep
	}

	var steps []model.ProtocolStep
	for _, rs := range raw.Steps {
		if rs.ID <= 0 || strings.TrimSpace(rs.Title) == "" {
			continue
		}

		step := model.ProtocolStep{
			ID:            rs.ID,
			Title:         strings.TrimSpace(rs.Title),
			Description:   strings.TrimSpace(rs.Description),
			EstimatedTime: strings.TrimSpace(rs.EstimatedTime),
			Deadline:      deadline.Calculate(rs.EstimatedTime, baseDate),
		}

		switch {
		case rs.ID < current:
			step.Status = types.StepStatusCompleted
			// Approximation: the real completion time is unknown.
			completed := now
			step.CompletedAt = &completed
		case rs.ID == current:
			step.Status = types.StepStatusInProgress
		default:
			step.Status = types.StepStatusPending
		}

		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return nil
	}

	p := &model.Protocol{
		Name:          raw.ProtocolName,
		CaseID:        caseID,
		SessionID:     sessionID,
		Steps:         steps,
		CurrentStep:   current,
		ExtractedFrom: text,
		BaseDate:      baseDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.SortSteps()

	return p
}

// locateStructuredSpan prefers a fenced code block; when none is present it
// falls back to the outermost brace-delimited span of the raw text.
func locateStructuredSpan(text string) string {
	if m := fencedBlockPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first < 0 || last <= first {
		return ""
	}
	return text[first : last+1]
}

var singleStepPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*(?:pr[óo]ximo|siguiente|primer)\s+paso\s*:\s*(.+)$`),
	regexp.MustCompile(`(?im)^\s*paso\s+a\s+seguir\s*:\s*(.+)$`),
	regexp.MustCompile(`(?im)^\s*acci[óo]n\s+inmediata\s*:\s*(.+)$`),
}

// DetectSingleStep synthesizes a one-step protocol when the generation
// describes exactly one clearly delineated actionable step instead of a
// full named procedure. Returns nil when no such step is found; callers
// use it only after Extract came back empty.
func DetectSingleStep(text string, caseID int64, sessionID string, baseDate time.Time) *model.Protocol {
	for _, pattern := range singleStepPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		title := strings.TrimSpace(m[1])
		if title == "" {
			continue
		}

		now := time.Now().UTC()
		return &model.Protocol{
			Name:      "Paso a seguir",
			CaseID:    caseID,
			SessionID: sessionID,
			Steps: []model.ProtocolStep{
				{ID: 1, Title: title, Status: types.StepStatusInProgress},
			},
			CurrentStep:   1,
			ExtractedFrom: text,
			BaseDate:      baseDate,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	return nil
}
