package grading

import "context"

// Q is the minimal view of an objective question needed for grading.
type Q struct {
	Type    string // mcq, true_false, note_completion, ... (informational)
	Correct string
}

// Result is the outcome of grading a single response.
type Result struct {
	Correct bool
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, selected string) Result
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, selected string) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
	fallback   Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, selected string) Result {
	if s, ok := g.strategies[normalize(q.Type)]; ok {
		return s.Grade(ctx, q, selected)
	}
	return g.fallback.Grade(ctx, q, selected)
}

// Engine options

type Option func(*config)

type config struct {
	strategies map[string]Strategy
}

// WithStrategy overrides the strategy used for one question type.
func WithStrategy(typ string, s Strategy) Option {
	return func(c *config) { c.strategies[normalize(typ)] = s }
}

// NewDefaultGrader installs the built-in strategies. Every objective type
// grades by exact match against the single stored correct answer; unknown
// types fall back to the same rule.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		strategies: map[string]Strategy{
			"mcq":                 exactMatchStrategy{},
			"true_false":          exactMatchStrategy{},
			"yes_no_not_given":    exactMatchStrategy{},
			"note_completion":     exactMatchStrategy{},
			"sentence_completion": exactMatchStrategy{},
			"matching":            exactMatchStrategy{},
			"short_answer":        exactMatchStrategy{},
		},
	}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{strategies: cfg.strategies, fallback: exactMatchStrategy{}}
}

// --- Strategies ---

type exactMatchStrategy struct{}

func (exactMatchStrategy) Grade(_ context.Context, q Q, selected string) Result {
	return Result{Correct: IsCorrect(selected, q.Correct)}
}
