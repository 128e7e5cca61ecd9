package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/knolsched/internal/domain"
)

// ShortLen is the number of hash characters shown to users.
const ShortLen = 12

// Normalize renders a card's content in a canonical form so that cosmetic
// edits (case, surrounding whitespace, line endings, repeated blanks) keep
// the same identity and therefore the same review history.
func Normalize(card domain.Card) string {
	parts := []string{card.Question, card.Answer, card.Context}
	for i, p := range parts {
		parts[i] = normalizePart(p)
	}
	// Newline-joined so "question"+"answer" cannot merge into one word.
	return strings.Join(parts, "\n")
}

func normalizePart(part string) string {
	part = strings.ReplaceAll(part, "\r\n", "\n")
	lines := strings.Split(strings.TrimSpace(strings.ToLower(part)), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}

// Hash returns the hex SHA-256 of the card's normalized content.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}

// Short abbreviates a hash for display.
func Short(hash string) string {
	if len(hash) <= ShortLen {
		return hash
	}
	return hash[:ShortLen]
}
