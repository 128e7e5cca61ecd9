package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSourceType(t *testing.T) {
	testCases := map[string]SourceType{
		"./notes":                     SourceLocal,
		"/home/me/decks":              SourceLocal,
		"git@github.com:me/decks.git": SourceGit,
		"https://github.com/me/decks": SourceGit,
		"http://git.internal/decks":   SourceGit,
		"../mirrors/decks.git":        SourceGit,
	}
	for path, want := range testCases {
		assert.Equal(t, want, DetectSourceType(path), path)
	}
}
