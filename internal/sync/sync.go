package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/fsrs"
	"github.com/conorfennell/knolsched/internal/gitsource"
	"github.com/conorfennell/knolsched/internal/knol"
	"github.com/conorfennell/knolsched/internal/parser"
	"github.com/conorfennell/knolsched/internal/storage"
)

// Report summarizes one reconciliation run.
type Report struct {
	Sources  int
	Parsed   int
	Inserted int
	Deleted  int
	Errors   []error
}

func (r *Report) add(o Report) {
	r.Parsed += o.Parsed
	r.Inserted += o.Inserted
	r.Deleted += o.Deleted
	r.Errors = append(r.Errors, o.Errors...)
}

// RunSync reconciles every configured source into the database. Git sources
// are cloned or pulled into reposDir first. Failures of individual sources
// are collected in the report; only a failure to list sources is returned.
func RunSync(ctx context.Context, db *storage.DB, reposDir string, now time.Time) (Report, error) {
	var report Report
	slog.Info("Starting sync process for all sources...")
	sources, err := db.AllSources(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with add-source <path/or/url.git>")
		return report, nil
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		slog.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
		report.Sources++

		dir := source.Path
		if source.Type == domain.SourceGit {
			dir, err = gitsource.LocalPath(reposDir, source.Path)
			if err != nil {
				report.Errors = append(report.Errors, err)
				slog.Error("Error determining local path for git repo", "url", source.Path, "error", err)
				continue
			}
			if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
				report.Errors = append(report.Errors, err)
				slog.Error("Failed to create repos directory", "path", dir, "error", err)
				continue
			}
			if err := gitsource.Sync(ctx, source.Path, dir, nil); err != nil {
				report.Errors = append(report.Errors, err)
				slog.Error("Error syncing git repo", "url", source.Path, "error", err)
				continue
			}
		}

		r, err := ReconcileDir(ctx, db, source.ID, dir, now)
		report.add(r)
		if err != nil {
			report.Errors = append(report.Errors, err)
			slog.Error("Error reconciling source", "source_id", source.ID, "error", err)
		}
	}
	slog.Info("Sync process complete.",
		"sources", report.Sources,
		"inserted", report.Inserted,
		"deleted", report.Deleted,
		"errors", len(report.Errors),
	)
	return report, nil
}

// ReconcileDir parses every Markdown file under dir, inserts cards that are
// new as never-reviewed cards, and deletes cards of the source that no
// longer appear. Review history of unchanged cards is kept.
func ReconcileDir(ctx context.Context, db *storage.DB, sourceID int64, dir string, now time.Time) (Report, error) {
	var report Report
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		cards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, parseErr)
			return nil
		}
		for _, card := range cards {
			card.Hash = knol.Hash(card)
			report.Parsed++
			if found[card.Hash] {
				continue
			}
			found[card.Hash] = true

			_, findErr := db.FindCard(ctx, card.Hash)
			switch {
			case findErr == nil:
			case errors.Is(findErr, storage.ErrNotFound):
				slog.Debug("New card found, inserting", "hash", knol.Short(card.Hash))
				if err := db.InsertCard(ctx, card, fsrs.NewCard(now), sourceID); err != nil {
					report.Errors = append(report.Errors, err)
					continue
				}
				report.Inserted++
			default:
				report.Errors = append(report.Errors, findErr)
			}
		}
		return ctx.Err()
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	existing, err := db.CardsBySource(ctx, sourceID)
	if err != nil {
		return report, err
	}
	for _, c := range existing {
		if found[c.Hash] {
			continue
		}
		slog.Debug("Orphaned card, deleting", "hash", knol.Short(c.Hash))
		if err := db.DeleteCard(ctx, c.Hash); err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Deleted++
	}

	if err := db.UpdateSourceLastScanned(ctx, sourceID, now); err != nil {
		slog.Warn("Failed to update last scanned for source", "source_id", sourceID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", dir,
		"parsed_cards", report.Parsed,
		"inserted", report.Inserted,
		"orphaned_deleted", report.Deleted,
		"errors", len(report.Errors),
	)
	return report, nil
}
