package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/conorfennell/knolsched/internal/fsrs"
)

// ReviewRecord is a persisted review log entry.
type ReviewRecord struct {
	ID       string `json:"id"`
	CardHash string `json:"card_hash"`
	fsrs.ReviewLog
}

// SaveReview commits a review: the card's new scheduling state and its log
// entry are written in one transaction. It returns the log entry's ID.
func (db *DB) SaveReview(ctx context.Context, hash string, memory fsrs.Card, log fsrs.ReviewLog) (string, error) {
	id := uuid.NewString()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateCard(ctx, tx, hash, memory); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO review_logs (id, card_hash, rating, scheduled_days, elapsed_days, review, state)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			id,
			hash,
			int(log.Rating),
			log.ScheduledDays,
			log.ElapsedDays,
			toMillis(log.Review),
			int(log.State),
		)
		if err != nil {
			return fmt.Errorf("failed to insert review log for %s: %w", hash, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ReviewLogs returns a card's review history, oldest first.
func (db *DB) ReviewLogs(ctx context.Context, hash string) ([]ReviewRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_hash, rating, scheduled_days, elapsed_days, review, state
		FROM review_logs WHERE card_hash = ?
		ORDER BY review, rowid
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs for %s: %w", hash, err)
	}
	defer rows.Close()

	var logs []ReviewRecord
	for rows.Next() {
		var (
			rec    ReviewRecord
			review int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.CardHash,
			&rec.Rating,
			&rec.ScheduledDays,
			&rec.ElapsedDays,
			&review,
			&rec.State,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review log row: %w", err)
		}
		rec.Review = fromMillis(review)
		logs = append(logs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read review logs: %w", err)
	}
	return logs, nil
}
