// Package rules evaluates the ordered heuristic table over a finished pass.
package rules

import (
	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/stats"
)

// Rule pairs a predicate over the aggregate with the issue it produces.
type Rule struct {
	Name     string
	Severity core.Severity // nominal severity, Issue may escalate
	Match    func(*stats.Snapshot) bool
	Issue    func(*stats.Snapshot) core.Issue
}

type options struct {
	extended bool
	extra    []Rule
}

// Option configures an Engine.
type Option func(*options)

// WithExtended appends the size and ratio heuristics after the default table.
func WithExtended(enabled bool) Option {
	return func(o *options) { o.extended = enabled }
}

// WithRules appends custom rules after the built-in tables.
func WithRules(rs ...Rule) Option {
	return func(o *options) { o.extra = append(o.extra, rs...) }
}

// Engine evaluates rules in table order.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine over the default table.
func NewEngine(opts ...Option) *Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rs := append([]Rule(nil), Default()...)
	if o.extended {
		rs = append(rs, Extended()...)
	}
	rs = append(rs, o.extra...)
	return &Engine{rules: rs}
}

// Evaluate runs every rule once against snap. The result is never nil and
// keeps table order.
func (e *Engine) Evaluate(snap *stats.Snapshot) []core.Issue {
	issues := make([]core.Issue, 0)
	if snap == nil {
		return issues
	}
	for _, r := range e.rules {
		if !r.Match(snap) {
			continue
		}
		is := r.Issue(snap)
		if is.Rule == "" {
			is.Rule = r.Name
		}
		issues = append(issues, is)
	}
	return issues
}

// Rules returns the active table.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Names returns the active rule names in evaluation order.
func (e *Engine) Names() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}
