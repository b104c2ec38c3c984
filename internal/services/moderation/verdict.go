package moderation

import "github.com/smpg2030-sys/trailmindrise/internal/domain/enums"

// Verdict is the shared decision shape produced by every pipeline stage and by
// the orchestrator as a whole. Score is confidence of unsafety: 0.0 certainly
// safe, 1.0 certainly unsafe.
type Verdict struct {
	Status   enums.ModerationStatus
	Score    float64
	Category string
	Source   enums.ModerationSource
	Details  []string
}

func Approved(category string, details ...string) Verdict {
	return Verdict{
		Status:   enums.ModerationStatusApproved,
		Score:    0.0,
		Category: category,
		Source:   enums.ModerationSourceAI,
		Details:  details,
	}
}

func Rejected(category string, score float64, details ...string) Verdict {
	return Verdict{
		Status:   enums.ModerationStatusRejected,
		Score:    score,
		Category: category,
		Source:   enums.ModerationSourceAI,
		Details:  details,
	}
}

func Flagged(category string, score float64, details ...string) Verdict {
	return Verdict{
		Status:   enums.ModerationStatusFlagged,
		Score:    score,
		Category: category,
		Source:   enums.ModerationSourceAI,
		Details:  details,
	}
}
