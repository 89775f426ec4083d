package model

import (
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/types"
)

// InvolvedParty is a person involved in a conduct case
type InvolvedParty struct {
	Name   string
	Age    int    // 0 when unknown
	Course string // e.g. "7° Básico A"
	Role   string // e.g. "afectado", "denunciado", "testigo"
}

// Case represents a conduct/welfare incident record.
// CreatedAt doubles as the base date for all protocol deadline computation;
// recomputing deadlines from "now" would corrupt the schedule.
type Case struct {
	ID           int64
	Title        string
	Description  string
	CaseType     string // e.g. "bullying", "violencia física", "conflicto entre pares"
	Status       types.CaseStatus
	ReporterName string
	Parties      []InvolvedParty
	IncidentDate string // free text as reported, e.g. "lunes pasado"
	SessionID    string // chat session that documented the case, if any
	DocumentURIs []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasMinimumFacts reports whether the case carries the facts required
// before a protocol can be generated: at least one involved party with
// name, age and course.
func (c *Case) HasMinimumFacts() bool {
	return len(c.MissingFacts()) == 0
}

// MissingFacts returns the human-readable list of facts still required
// for protocol generation. Empty when the case is ready.
func (c *Case) MissingFacts() []string {
	var missing []string

	if len(c.Parties) == 0 {
		return []string{
			"nombres de los estudiantes involucrados",
			"edades de los involucrados",
			"curso de los involucrados",
		}
	}

	var hasName, hasAge, hasCourse bool
	for _, p := range c.Parties {
		if p.Name != "" {
			hasName = true
		}
		if p.Age > 0 {
			hasAge = true
		}
		if p.Course != "" {
			hasCourse = true
		}
	}

	if !hasName {
		missing = append(missing, "nombres de los estudiantes involucrados")
	}
	if !hasAge {
		missing = append(missing, "edades de los involucrados")
	}
	if !hasCourse {
		missing = append(missing, "curso de los involucrados")
	}

	return missing
}
