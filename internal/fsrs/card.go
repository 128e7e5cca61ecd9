package fsrs

import "time"

// Card is the scheduling state of one learning item. It is a plain value:
// the scheduler copies it and never mutates the caller's card.
type Card struct {
	Due           time.Time `json:"due"`
	Stability     float64   `json:"stability"`
	Difficulty    float64   `json:"difficulty"`
	ElapsedDays   int       `json:"elapsed_days"`
	ScheduledDays int       `json:"scheduled_days"`
	Reps          int       `json:"reps"`
	Lapses        int       `json:"lapses"`
	State         State     `json:"state"`
	LastReview    time.Time `json:"last_review"` // zero until first review
}

// NewCard returns a never-reviewed card that is due at now.
func NewCard(now time.Time) Card {
	return Card{Due: now, State: New}
}

// IsDue reports whether the card should be shown at now.
func (c Card) IsDue(now time.Time) bool {
	return !c.Due.After(now)
}
