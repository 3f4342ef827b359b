// Package story produces short fundraising narratives for the submission
// form. Two strategies share one contract: the output is never empty and
// never longer than MaxLength characters.
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxLength is the longest story a campaign may carry, in characters.
const MaxLength = 500

const (
	// Appeal is appended to an existing story in fill mode.
	Appeal = " Every contribution, no matter how small, brings us closer to our goal. Please donate and share this story."

	// Fallback is returned whenever a story cannot be produced.
	Fallback = "We are reaching out to our community for support during a difficult time. " +
		"Your generosity can make a real difference. Please consider donating and sharing our story."
)

// Mode selects how a story is produced.
type Mode string

const (
	ModeKeywords Mode = "keywords"
	ModeFill     Mode = "fill"
	ModeGenerate Mode = "generate"
)

var ErrUnknownMode = errors.New("unknown story mode")

// ParseMode validates a mode string from a request.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeKeywords, ModeFill, ModeGenerate:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Request is the input to a Generator.
type Request struct {
	Mode          Mode
	Keywords      string
	ExistingStory string
}

// Generator produces a story. Implementations never fail: on any error they
// return Fallback.
type Generator interface {
	Generate(ctx context.Context, req Request) string
}

// Cap shortens s to MaxLength characters, replacing the tail with "..."
// when it has to cut.
func Cap(s string) string {
	r := []rune(s)
	if len(r) <= MaxLength {
		return s
	}
	return string(r[:MaxLength-3]) + "..."
}

// TemplateGenerator builds stories from fixed category templates without
// any external call.
type TemplateGenerator struct {
	rules Rules
}

// NewTemplate returns a TemplateGenerator using the default rules.
func NewTemplate() *TemplateGenerator {
	return &TemplateGenerator{rules: DefaultRules()}
}

// Generate implements Generator.
func (g *TemplateGenerator) Generate(_ context.Context, req Request) string {
	keywords := strings.TrimSpace(req.Keywords)

	switch req.Mode {
	case ModeKeywords:
		rule := g.rules.Match(keywords)
		return Cap(fmt.Sprintf(rule.Template, detail(keywords)))
	case ModeFill:
		return Cap(strings.TrimSpace(strings.TrimSpace(req.ExistingStory) + Appeal))
	case ModeGenerate:
		return Cap(fmt.Sprintf(g.rules.Get(CategoryEmergency).Template, ""))
	}
	return Fallback
}

func detail(keywords string) string {
	if keywords == "" {
		return ""
	}
	return " (" + keywords + ")"
}
