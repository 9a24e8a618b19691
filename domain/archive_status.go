package domain

// ArchiveStatus is how a session left the in-memory registry.
type ArchiveStatus string

const (
	ArchiveStatusCompleted ArchiveStatus = "COMPLETED"
	ArchiveStatusAbandoned ArchiveStatus = "ABANDONED"
)

const (
	EventCheckoutCompleted = "CheckoutCompleted"
	EventCheckoutAbandoned = "CheckoutAbandoned"
)

func (s ArchiveStatus) EventType() string {
	if s == ArchiveStatusCompleted {
		return EventCheckoutCompleted
	}
	return EventCheckoutAbandoned
}
