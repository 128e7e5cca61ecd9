package domain

import (
	"strings"
	"time"

	"github.com/conorfennell/knolsched/internal/fsrs"
)

// Card is the content of a single question-answer-context entry, identified
// by the hash of its normalized content.
type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Context  string `json:"context,omitempty"`
	Hash     string `json:"hash"`
}

// ScheduledCard pairs a card's content with its persisted scheduling state.
type ScheduledCard struct {
	Card
	Memory   fsrs.Card `json:"memory"`
	SourceID int64     `json:"source_id,omitempty"`
}

// Source is where cards are read from: a local directory or a git URL.
type Source struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        SourceType `json:"type"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

// SourceType distinguishes local directories from git repositories.
type SourceType string

const (
	SourceLocal SourceType = "local"
	SourceGit   SourceType = "git"
)

// DetectSourceType guesses the source type from its path or URL.
func DetectSourceType(path string) SourceType {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return SourceGit
	}
	return SourceLocal
}
