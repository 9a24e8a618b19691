package domain

// StoreSlot is a pickup window offered by the fulfillment collaborator.
type StoreSlot struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Time  string `json:"time"`
	Store string `json:"store"`
}

func ContainsSlot(slots []StoreSlot, id string) bool {
	for _, s := range slots {
		if s.ID == id {
			return true
		}
	}
	return false
}
