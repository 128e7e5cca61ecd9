package fsrs

import (
	"fmt"
	"iter"
	"math"
	"time"
)

const day = 24 * time.Hour

// Fixed short steps used while a card is being (re)learned.
const (
	newAgainStep = 1 * time.Minute
	newHardStep  = 5 * time.Minute
	newGoodStep  = 10 * time.Minute
	againStep    = 5 * time.Minute
	hardStep     = 10 * time.Minute
)

// SchedulingInfo is the outcome of one candidate rating: the card to persist
// if the reviewer picks that rating, and the matching log entry.
type SchedulingInfo struct {
	Card      Card      `json:"card"`
	ReviewLog ReviewLog `json:"review_log"`
}

// SchedulingResult holds the outcome of every rating for one review.
type SchedulingResult struct {
	Again SchedulingInfo `json:"again"`
	Hard  SchedulingInfo `json:"hard"`
	Good  SchedulingInfo `json:"good"`
	Easy  SchedulingInfo `json:"easy"`
}

// Get returns the outcome for r. ok is false for an out-of-range rating.
func (res SchedulingResult) Get(r Rating) (info SchedulingInfo, ok bool) {
	switch r {
	case Again:
		return res.Again, true
	case Hard:
		return res.Hard, true
	case Good:
		return res.Good, true
	case Easy:
		return res.Easy, true
	}
	return SchedulingInfo{}, false
}

// All yields the four outcomes from Again to Easy.
func (res SchedulingResult) All() iter.Seq2[Rating, SchedulingInfo] {
	return func(yield func(Rating, SchedulingInfo) bool) {
		for _, r := range Ratings {
			info, _ := res.Get(r)
			if !yield(r, info) {
				return
			}
		}
	}
}

// Scheduler computes next review dates and memory states. It holds only an
// immutable parameter set and is safe for concurrent use.
type Scheduler struct {
	model model
}

// NewScheduler resolves zero fields of p to their defaults and rejects
// invalid parameter sets.
func NewScheduler(p Parameters) (*Scheduler, error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{model: model{p: p}}, nil
}

// Parameters returns the resolved parameter set.
func (s *Scheduler) Parameters() Parameters {
	return s.model.p
}

// candidates is indexed by Rating.
type candidates [len(Ratings)]Card

// Schedule computes the card that would result from each of the four
// ratings if the card were reviewed at now. The input card is not modified.
func (s *Scheduler) Schedule(card Card, now time.Time) (SchedulingResult, error) {
	if now.IsZero() {
		return SchedulingResult{}, ErrInvalidTime
	}

	c := card
	if c.State == New {
		c.ElapsedDays = 0
	} else {
		if c.LastReview.IsZero() {
			return SchedulingResult{}, fmt.Errorf("%w: %s card has no last review", ErrInvalidCard, c.State)
		}
		c.ElapsedDays = elapsedDays(c.LastReview, now)
	}
	c.LastReview = now
	c.Reps++

	var next candidates
	for i := range next {
		next[i] = c
	}

	switch c.State {
	case New:
		next.transition(New)
		s.scheduleNew(&next, now)
	case Learning, Relearning:
		next.transition(c.State)
		s.scheduleLearning(&next, now)
	case Review:
		if !isFinite(c.Stability) || c.Stability <= 0 {
			return SchedulingResult{}, fmt.Errorf("%w: review card has stability %v", ErrInvalidCard, c.Stability)
		}
		if !isFinite(c.Difficulty) || c.Difficulty < minDifficulty || c.Difficulty > maxDifficulty {
			return SchedulingResult{}, fmt.Errorf("%w: review card has difficulty %v", ErrInvalidCard, c.Difficulty)
		}
		next.transition(Review)
		s.scheduleReview(&next, c, now)
	default:
		return SchedulingResult{}, fmt.Errorf("%w: %d", ErrInvalidState, int(c.State))
	}

	return next.record(c, now), nil
}

// Review schedules the card and returns only the outcome of rating.
func (s *Scheduler) Review(card Card, rating Rating, now time.Time) (SchedulingInfo, error) {
	if !rating.IsValid() {
		return SchedulingInfo{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	res, err := s.Schedule(card, now)
	if err != nil {
		return SchedulingInfo{}, err
	}
	info, _ := res.Get(rating)
	return info, nil
}

// Retrievability returns the card's estimated probability of recall at now.
// It is 0 for cards that have never been scheduled.
func (s *Scheduler) Retrievability(card Card, now time.Time) float64 {
	if card.State == New || card.Stability <= 0 || card.LastReview.IsZero() {
		return 0
	}
	elapsed := math.Max(now.Sub(card.LastReview).Hours()/24, 0)
	return Retrievability(elapsed, card.Stability)
}

func (s *Scheduler) scheduleNew(next *candidates, now time.Time) {
	for _, r := range Ratings {
		next[r].Difficulty = s.model.initDifficulty(r)
		next[r].Stability = s.model.initStability(r)
	}

	next[Again].ScheduledDays = 0
	next[Again].Due = now.Add(newAgainStep)
	next[Hard].ScheduledDays = 0
	next[Hard].Due = now.Add(newHardStep)
	next[Good].ScheduledDays = 0
	next[Good].Due = now.Add(newGoodStep)

	easy := s.model.nextInterval(next[Easy].Stability * s.model.p.EasyBonus)
	next[Easy].ScheduledDays = easy
	next[Easy].Due = now.Add(time.Duration(easy) * day)
}

// scheduleLearning keeps the current memory state; only due dates move.
func (s *Scheduler) scheduleLearning(next *candidates, now time.Time) {
	hard := 0
	good := s.model.nextInterval(next[Good].Stability)
	easy := max(s.model.nextInterval(next[Easy].Stability*s.model.p.EasyBonus), good+1)
	next.schedule(now, hard, good, easy)
}

func (s *Scheduler) scheduleReview(next *candidates, last Card, now time.Time) {
	r := Retrievability(float64(last.ElapsedDays), last.Stability)

	for _, rating := range Ratings {
		d := s.model.nextDifficulty(last.Difficulty, rating)
		next[rating].Difficulty = d
		if rating == Again {
			next[rating].Stability = s.model.nextForgetStability(d, last.Stability, r)
		} else {
			next[rating].Stability = s.model.nextRecallStability(d, last.Stability, r)
		}
	}

	hard := s.model.nextInterval(last.Stability * s.model.p.HardFactor)
	good := s.model.nextInterval(next[Good].Stability)
	hard = min(hard, good)
	good = max(good, hard+1)
	easy := max(s.model.nextInterval(next[Easy].Stability*s.model.p.EasyBonus), good+1)
	next.schedule(now, hard, good, easy)
}

// transition moves every candidate to its post-review lifecycle state.
func (next *candidates) transition(from State) {
	switch from {
	case New:
		next[Again].State = Learning
		next[Hard].State = Learning
		next[Good].State = Learning
		next[Easy].State = Review
		// A first exposure rated Again counts as a lapse.
		next[Again].Lapses++
	case Learning, Relearning:
		next[Again].State = from
		next[Hard].State = from
		next[Good].State = Review
		next[Easy].State = Review
	case Review:
		next[Again].State = Relearning
		next[Hard].State = Review
		next[Good].State = Review
		next[Easy].State = Review
		next[Again].Lapses++
	}
}

// schedule applies the shared due-date rule for non-New cards. A zero Hard
// interval behaves like a learning step.
func (next *candidates) schedule(now time.Time, hard, good, easy int) {
	next[Again].ScheduledDays = 0
	next[Again].Due = now.Add(againStep)

	next[Hard].ScheduledDays = hard
	if hard > 0 {
		next[Hard].Due = now.Add(time.Duration(hard) * day)
	} else {
		next[Hard].Due = now.Add(hardStep)
	}

	next[Good].ScheduledDays = good
	next[Good].Due = now.Add(time.Duration(good) * day)

	next[Easy].ScheduledDays = easy
	next[Easy].Due = now.Add(time.Duration(easy) * day)
}

// record pairs each candidate with its log entry. prev carries the
// pre-transition state and elapsed days.
func (next *candidates) record(prev Card, now time.Time) SchedulingResult {
	info := func(r Rating) SchedulingInfo {
		return SchedulingInfo{
			Card: next[r],
			ReviewLog: ReviewLog{
				Rating:        r,
				ScheduledDays: next[r].ScheduledDays,
				ElapsedDays:   prev.ElapsedDays,
				Review:        now,
				State:         prev.State,
			},
		}
	}
	return SchedulingResult{
		Again: info(Again),
		Hard:  info(Hard),
		Good:  info(Good),
		Easy:  info(Easy),
	}
}

// elapsedDays rounds the gap between two instants to whole days. A review
// time before the last review counts as zero.
func elapsedDays(last, now time.Time) int {
	d := math.Round(now.Sub(last).Hours() / 24)
	if d < 0 {
		return 0
	}
	return int(d)
}
