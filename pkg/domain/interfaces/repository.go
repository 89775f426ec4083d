package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Case() CaseRepository
	Protocol() ProtocolRepository
	History() HistoryRepository
	Policy() PolicyRepository

	Close() error
}
