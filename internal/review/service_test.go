package review

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/fsrs"
	"github.com/conorfennell/knolsched/internal/storage"
)

var t0 = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, hashes ...string) *Service {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for i, h := range hashes {
		card := domain.Card{Question: "Q " + h, Answer: "A", Hash: h}
		require.NoError(t, db.InsertCard(context.Background(), card, fsrs.NewCard(t0.Add(time.Duration(i)*time.Minute)), 0))
	}

	s, err := fsrs.NewScheduler(fsrs.Parameters{})
	require.NoError(t, err)
	return NewService(db, s)
}

func TestPreview(t *testing.T) {
	svc := newService(t, "abc123")

	p, err := svc.Preview(context.Background(), "abc", t0)
	require.NoError(t, err)
	assert.Equal(t, "abc123", p.Card.Hash)
	assert.Zero(t, p.Retrievability)
	assert.Equal(t, fsrs.Review, p.Outcomes.Easy.Card.State)
	assert.Equal(t, 5, p.Outcomes.Easy.Card.ScheduledDays)

	// Previewing does not persist anything.
	logs, err := svc.History(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, "abc123", "def456")

	res, err := svc.Answer(ctx, "abc123", fsrs.Good, t0)
	require.NoError(t, err)
	assert.Equal(t, fsrs.Learning, res.Card.Memory.State)
	assert.True(t, res.Card.Memory.Due.Equal(t0.Add(10*time.Minute)))
	assert.Equal(t, fsrs.New, res.ReviewLog.State)
	assert.NotEmpty(t, res.ReviewLog.ID)

	// The card is no longer due; the other one is.
	next, err := svc.Next(ctx, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "def456", next.Hash)

	n, err := svc.DueCount(ctx, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	later := t0.Add(10 * time.Minute)
	res, err = svc.Answer(ctx, "abc", fsrs.Good, later)
	require.NoError(t, err)
	assert.Equal(t, fsrs.Review, res.Card.Memory.State)
	assert.Equal(t, 3, res.Card.Memory.ScheduledDays)

	logs, err := svc.History(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, fsrs.Learning, logs[1].State)

	p, err := svc.Preview(ctx, "abc123", later.Add(3*24*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, p.Retrievability, 1e-9)
}

func TestAnswerErrors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, "abc123")

	_, err := svc.Answer(ctx, "abc123", fsrs.Rating(7), t0)
	assert.ErrorIs(t, err, fsrs.ErrInvalidRating)

	_, err = svc.Answer(ctx, "zzz", fsrs.Good, t0)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.Answer(ctx, "abc123", fsrs.Good, time.Time{})
	assert.ErrorIs(t, err, fsrs.ErrInvalidTime)
}

func TestNextNothingDue(t *testing.T) {
	svc := newService(t)
	_, err := svc.Next(context.Background(), t0)
	assert.ErrorIs(t, err, ErrNothingDue)
}
