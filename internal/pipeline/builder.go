package pipeline

import (
	"firestige.xyz/pcaplens/internal/config"
	"firestige.xyz/pcaplens/internal/rules"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// FromConfig seeds the builder from the analysis section of the global config.
func (b *Builder) FromConfig(cfg config.AnalysisConfig) *Builder {
	b.config.ExtendedRules = cfg.ExtendedRules
	b.config.ReadBufferSize = cfg.ReadBufferSize
	return b
}

// WithExtendedRules toggles the size and ratio heuristics.
func (b *Builder) WithExtendedRules(enabled bool) *Builder {
	b.config.ExtendedRules = enabled
	return b
}

// WithReadBufferSize sets the capture read-ahead buffer.
func (b *Builder) WithReadBufferSize(size int) *Builder {
	b.config.ReadBufferSize = size
	return b
}

// WithRules appends custom rules after the built-in tables.
func (b *Builder) WithRules(rs ...rules.Rule) *Builder {
	b.config.Rules = append(b.config.Rules, rs...)
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
