package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/knolsched/internal/domain"
)

// separator ends the current card explicitly.
const separator = "---"

type field int

const (
	none field = iota
	question
	answer
	context
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", question},
	{"A:", answer},
	{"C:", context},
}

// ParseFile reads a Markdown file and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cards, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cards, nil
}

// Parse extracts cards from Q:/A:/C: blocks. Lines following a prefixed
// line belong to the same field until the next prefix or separator. A new
// Q: always starts a new card; blocks without a question are dropped.
func Parse(r io.Reader) ([]domain.Card, error) {
	p := &cardParser{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	p.finishCard()
	return p.cards, nil
}

type cardParser struct {
	cards   []domain.Card
	current domain.Card
	field   field
	block   []string
}

func (p *cardParser) line(line string) {
	if line == separator {
		p.finishCard()
		return
	}
	for _, pf := range prefixes {
		if !strings.HasPrefix(line, pf.prefix) {
			continue
		}
		p.flushField()
		if pf.field == question && p.field != none {
			p.finishCard()
		}
		p.field = pf.field
		p.block = append(p.block, strings.TrimPrefix(line[len(pf.prefix):], " "))
		return
	}
	if p.field != none {
		p.block = append(p.block, line)
	}
}

// flushField stores the accumulated block into the current field.
func (p *cardParser) flushField() {
	if len(p.block) == 0 {
		return
	}
	content := strings.TrimRight(strings.Join(p.block, "\n"), "\n")
	switch p.field {
	case question:
		p.current.Question = content
	case answer:
		p.current.Answer = content
	case context:
		p.current.Context = content
	}
	p.block = nil
}

func (p *cardParser) finishCard() {
	p.flushField()
	if p.current.Question != "" {
		p.cards = append(p.cards, p.current)
	}
	p.current = domain.Card{}
	p.field = none
}
