// Package review connects stored cards to the scheduler: it previews the
// four possible outcomes of a review and commits the one the user picks.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/fsrs"
	"github.com/conorfennell/knolsched/internal/knol"
	"github.com/conorfennell/knolsched/internal/storage"
)

// ErrNothingDue is returned by Next when no card is due.
var ErrNothingDue = errors.New("review: no cards due")

// Store is the persistence the service needs.
type Store interface {
	ResolveHash(ctx context.Context, prefix string) (string, error)
	FindCard(ctx context.Context, hash string) (*domain.ScheduledCard, error)
	DueCards(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledCard, error)
	CountDue(ctx context.Context, now time.Time) (int, error)
	SaveReview(ctx context.Context, hash string, memory fsrs.Card, log fsrs.ReviewLog) (string, error)
	ReviewLogs(ctx context.Context, hash string) ([]storage.ReviewRecord, error)
}

// Service runs reviews against a Store.
type Service struct {
	store     Store
	scheduler *fsrs.Scheduler
}

func NewService(store Store, scheduler *fsrs.Scheduler) *Service {
	return &Service{store: store, scheduler: scheduler}
}

// Preview is a card together with what each rating would do to it.
type Preview struct {
	Card           domain.ScheduledCard  `json:"card"`
	Retrievability float64               `json:"retrievability"`
	Outcomes       fsrs.SchedulingResult `json:"outcomes"`
}

// Result is a committed review.
type Result struct {
	Card      domain.ScheduledCard `json:"card"`
	ReviewLog storage.ReviewRecord `json:"review_log"`
}

// DueCount returns how many cards are due at now.
func (s *Service) DueCount(ctx context.Context, now time.Time) (int, error) {
	return s.store.CountDue(ctx, now)
}

// Next returns the most overdue card.
func (s *Service) Next(ctx context.Context, now time.Time) (*domain.ScheduledCard, error) {
	cards, err := s.store.DueCards(ctx, now, 1)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrNothingDue
	}
	return &cards[0], nil
}

// Preview computes the outcome of every rating for the card identified by
// hash (or an unambiguous prefix of it). Nothing is persisted.
func (s *Service) Preview(ctx context.Context, hash string, now time.Time) (*Preview, error) {
	card, err := s.find(ctx, hash)
	if err != nil {
		return nil, err
	}
	outcomes, err := s.scheduler.Schedule(card.Memory, now)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule card %s: %w", knol.Short(card.Hash), err)
	}
	return &Preview{
		Card:           *card,
		Retrievability: s.scheduler.Retrievability(card.Memory, now),
		Outcomes:       outcomes,
	}, nil
}

// Answer records the user's rating: the matching candidate card replaces
// the stored state and its review log is appended.
func (s *Service) Answer(ctx context.Context, hash string, rating fsrs.Rating, now time.Time) (*Result, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %d", fsrs.ErrInvalidRating, int(rating))
	}
	card, err := s.find(ctx, hash)
	if err != nil {
		return nil, err
	}
	info, err := s.scheduler.Review(card.Memory, rating, now)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule card %s: %w", knol.Short(card.Hash), err)
	}
	id, err := s.store.SaveReview(ctx, card.Hash, info.Card, info.ReviewLog)
	if err != nil {
		return nil, err
	}

	slog.Info("Card reviewed",
		"hash", knol.Short(card.Hash),
		"rating", rating,
		"from", info.ReviewLog.State,
		"to", info.Card.State,
		"scheduled_days", info.Card.ScheduledDays,
		"due", info.Card.Due,
	)

	card.Memory = info.Card
	return &Result{
		Card:      *card,
		ReviewLog: storage.ReviewRecord{ID: id, CardHash: card.Hash, ReviewLog: info.ReviewLog},
	}, nil
}

// History returns a card's committed reviews, oldest first.
func (s *Service) History(ctx context.Context, hash string) ([]storage.ReviewRecord, error) {
	full, err := s.store.ResolveHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return s.store.ReviewLogs(ctx, full)
}

func (s *Service) find(ctx context.Context, hash string) (*domain.ScheduledCard, error) {
	full, err := s.store.ResolveHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return s.store.FindCard(ctx, full)
}
