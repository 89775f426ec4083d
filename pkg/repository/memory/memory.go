package memory

import (
	"github.com/convivia-lab/convivia/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = goerr.New("not found")

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is the in-memory repository backend for development and tests
type Memory struct {
	caseRepo *caseRepository
	protocol *protocolRepository
	history  *historyRepository
	policy   *policyRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		caseRepo: newCaseRepository(),
		protocol: newProtocolRepository(),
		history:  newHistoryRepository(),
		policy:   newPolicyRepository(),
	}
}

func (m *Memory) Case() interfaces.CaseRepository {
	return m.caseRepo
}

func (m *Memory) Protocol() interfaces.ProtocolRepository {
	return m.protocol
}

func (m *Memory) History() interfaces.HistoryRepository {
	return m.history
}

func (m *Memory) Policy() interfaces.PolicyRepository {
	return m.policy
}

func (m *Memory) Close() error {
	return nil
}
