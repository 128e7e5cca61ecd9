package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/fsrs"
)

const cardColumns = `hash, question, answer, context, due, stability, difficulty,
	elapsed_days, scheduled_days, reps, lapses, state, last_review, source_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(row scanner) (domain.ScheduledCard, error) {
	var (
		sc         domain.ScheduledCard
		due        int64
		lastReview sql.NullInt64
		sourceID   sql.NullInt64
	)
	err := row.Scan(
		&sc.Hash,
		&sc.Question,
		&sc.Answer,
		&sc.Context,
		&due,
		&sc.Memory.Stability,
		&sc.Memory.Difficulty,
		&sc.Memory.ElapsedDays,
		&sc.Memory.ScheduledDays,
		&sc.Memory.Reps,
		&sc.Memory.Lapses,
		&sc.Memory.State,
		&lastReview,
		&sourceID,
	)
	if err != nil {
		return sc, err
	}
	sc.Memory.Due = fromMillis(due)
	sc.Memory.LastReview = fromNullMillis(lastReview)
	sc.SourceID = sourceID.Int64
	return sc, nil
}

// InsertCard stores a card's content with its initial scheduling state.
func (db *DB) InsertCard(ctx context.Context, card domain.Card, memory fsrs.Card, sourceID int64) error {
	src := sql.NullInt64{Int64: sourceID, Valid: sourceID != 0}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.Hash,
		card.Question,
		card.Answer,
		card.Context,
		toMillis(memory.Due),
		memory.Stability,
		memory.Difficulty,
		memory.ElapsedDays,
		memory.ScheduledDays,
		memory.Reps,
		memory.Lapses,
		int(memory.State),
		nullMillis(memory.LastReview),
		src,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.Hash, err)
	}
	return nil
}

// FindCard retrieves a card by its full hash.
func (db *DB) FindCard(ctx context.Context, hash string) (*domain.ScheduledCard, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE hash = ?`, hash)
	sc, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("card %s: %w", hash, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find card %s: %w", hash, err)
	}
	return &sc, nil
}

// ResolveHash expands a hash prefix to the single full hash it matches.
func (db *DB) ResolveHash(ctx context.Context, prefix string) (string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || strings.ContainsAny(prefix, "%_") {
		return "", fmt.Errorf("card %q: %w", prefix, ErrNotFound)
	}
	rows, err := db.conn.QueryContext(ctx, `SELECT hash FROM cards WHERE hash LIKE ? LIMIT 2`, prefix+"%")
	if err != nil {
		return "", fmt.Errorf("failed to resolve hash %s: %w", prefix, err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return "", fmt.Errorf("failed to scan hash row: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to resolve hash %s: %w", prefix, err)
	}
	switch len(hashes) {
	case 0:
		return "", fmt.Errorf("card %s: %w", prefix, ErrNotFound)
	case 1:
		return hashes[0], nil
	default:
		return "", fmt.Errorf("card %s: %w", prefix, ErrAmbiguous)
	}
}

// UpdateCard overwrites a card's scheduling state.
func (db *DB) UpdateCard(ctx context.Context, hash string, memory fsrs.Card) error {
	return updateCard(ctx, db.conn, hash, memory)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateCard(ctx context.Context, ex execer, hash string, memory fsrs.Card) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE cards
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
			reps = ?, lapses = ?, state = ?, last_review = ?
		WHERE hash = ?
	`,
		toMillis(memory.Due),
		memory.Stability,
		memory.Difficulty,
		memory.ElapsedDays,
		memory.ScheduledDays,
		memory.Reps,
		memory.Lapses,
		int(memory.State),
		nullMillis(memory.LastReview),
		hash,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", hash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("card %s: %w", hash, ErrNotFound)
	}
	return nil
}

// DueCards returns up to limit cards due at or before now, earliest first.
// A non-positive limit returns every due card.
func (db *DB) DueCards(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledCard, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE due <= ?
		ORDER BY due, hash
		LIMIT ?
	`, toMillis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}
	return collectCards(rows)
}

// CountDue returns the number of cards due at or before now.
func (db *DB) CountDue(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE due <= ?`, toMillis(now)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}
	return n, nil
}

// CardsBySource retrieves all cards read from the given source.
func (db *DB) CardsBySource(ctx context.Context, sourceID int64) ([]domain.ScheduledCard, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	return collectCards(rows)
}

func collectCards(rows *sql.Rows) ([]domain.ScheduledCard, error) {
	defer rows.Close()
	var cards []domain.ScheduledCard
	for rows.Next() {
		sc, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read card rows: %w", err)
	}
	return cards, nil
}

// DeleteCard removes a card and its review history.
func (db *DB) DeleteCard(ctx context.Context, hash string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE hash = ?`, hash); err != nil {
		return fmt.Errorf("failed to delete card with hash %s: %w", hash, err)
	}
	return nil
}
