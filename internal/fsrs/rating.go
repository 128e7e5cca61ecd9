package fsrs

import (
	"encoding"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Rating is the user's response to a card review, ordered worst to best.
// Its numeric value (0..3) feeds the difficulty and stability formulas.
type Rating int

const (
	Again Rating = iota // Forgot the answer.
	Hard                // Recalled with serious difficulty.
	Good                // Recalled after some hesitation.
	Easy                // Recalled effortlessly.
)

// Ratings lists every rating in ascending order.
var Ratings = [...]Rating{Again, Hard, Good, Easy}

var ratingNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

var (
	_ fmt.Stringer             = Rating(0)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// String renders the rating for display. Out-of-range values render as
// "unknown"; use IsValid to validate.
func (r Rating) String() string {
	if !r.IsValid() {
		return "unknown"
	}
	return ratingNames[r]
}

// IsValid reports whether r is one of Again, Hard, Good or Easy.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// ParseRating accepts a rating name (case-insensitive) or the 1-4 digit a
// reviewer presses on the keyboard.
func ParseRating(s string) (Rating, error) {
	s = strings.TrimSpace(s)
	for _, r := range Ratings {
		if strings.EqualFold(s, ratingNames[r]) {
			return r, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(Ratings) {
		return Rating(n - 1), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// MarshalJSON encodes the rating as its name.
func (r Rating) MarshalJSON() ([]byte, error) {
	text, err := r.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON accepts either the rating name or its 1-4 keyboard number.
// Numbers are not ordinals: JSON 3 decodes to Good, while Rating(3) is Easy.
// MarshalJSON always writes the name, so encoded ratings round-trip.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidRating, data)
		}
		s = strconv.Itoa(n)
	}
	return r.UnmarshalText([]byte(s))
}
