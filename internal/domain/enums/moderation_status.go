package enums

type ModerationStatus string

const (
	ModerationStatusPending  ModerationStatus = "pending"
	ModerationStatusApproved ModerationStatus = "approved"
	ModerationStatusRejected ModerationStatus = "rejected"
	ModerationStatusFlagged  ModerationStatus = "flagged"
)

func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationStatusPending, ModerationStatusApproved, ModerationStatusRejected, ModerationStatusFlagged:
		return true
	}
	return false
}

// Terminal reports whether the automated pipeline considers the status final.
// Flagged and pending items remain eligible for a second pass.
func (s ModerationStatus) Terminal() bool {
	return s == ModerationStatusApproved || s == ModerationStatusRejected
}
