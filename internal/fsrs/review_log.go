package fsrs

import "time"

// ReviewLog records one scheduling decision. ElapsedDays and State describe
// the card before the review; ScheduledDays is the interval that was chosen.
type ReviewLog struct {
	Rating        Rating    `json:"rating"`
	ScheduledDays int       `json:"scheduled_days"`
	ElapsedDays   int       `json:"elapsed_days"`
	Review        time.Time `json:"review"`
	State         State     `json:"state"`
}
