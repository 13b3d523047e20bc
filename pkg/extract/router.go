package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
)

// Result is the outcome of running a document through an engine.
// Degraded marks content recovered through the fallback path rather
// than the engine its class asked for.
type Result struct {
	Fragments []Fragment
	Engine    string
	Degraded  bool
}

// Router maps data classes onto extraction engines. Reference
// documents get one fallback: when the high fidelity engine is
// unavailable or fails, the semantic engine runs instead and the
// resulting fragments are marked degraded. Every other engine failure
// is terminal.
type Router struct {
	highFidelity Engine
	semantic     Engine
	tabular      Engine
}

func NewRouter(highFidelity, semantic, tabular Engine) *Router {
	return &Router{
		highFidelity: highFidelity,
		semantic:     semantic,
		tabular:      tabular,
	}
}

// DefaultRouter wires the three in-repo engines over a shared chunker.
func DefaultRouter(maxTokens int) (*Router, error) {
	chunker, err := NewChunker(maxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}
	return NewRouter(
		NewHighFidelityEngine(chunker),
		NewSemanticEngine(chunker),
		NewTabularEngine(chunker),
	), nil
}

func (r *Router) engineFor(class common.DataClass) Engine {
	switch class {
	case common.ImmutableTruth:
		return r.highFidelity
	case common.OperationalPulse:
		return r.tabular
	default:
		return r.semantic
	}
}

// Route returns the name of the engine a class maps to.
func (r *Router) Route(class common.DataClass) string {
	return r.engineFor(class).Name()
}

// Run extracts fragments from a document according to its class.
func (r *Router) Run(ctx context.Context, class common.DataClass, filename string, data []byte) (Result, error) {
	engine := r.engineFor(class)

	if engine == r.highFidelity {
		if !engine.Available() {
			logger.Warn("high fidelity engine unavailable, falling back",
				"filename", filename)
			return r.runFallback(ctx, filename, data)
		}

		fragments, err := engine.Extract(ctx, filename, data)
		if err != nil {
			logger.Warn("high fidelity extraction failed, falling back",
				"filename", filename, "error", err)
			return r.runFallback(ctx, filename, data)
		}
		return Result{Fragments: fragments, Engine: engine.Name()}, nil
	}

	fragments, err := engine.Extract(ctx, filename, data)
	if err != nil {
		return Result{}, terminalError(engine.Name(), filename, err)
	}
	return Result{Fragments: fragments, Engine: engine.Name()}, nil
}

func (r *Router) runFallback(ctx context.Context, filename string, data []byte) (Result, error) {
	fragments, err := r.semantic.Extract(ctx, filename, data)
	if err != nil {
		return Result{}, terminalError(r.semantic.Name(), filename, err)
	}
	for i := range fragments {
		fragments[i].Degraded = true
	}
	return Result{Fragments: fragments, Engine: r.semantic.Name(), Degraded: true}, nil
}

func terminalError(engine, filename string, err error) error {
	if errors.Is(err, common.ErrExtraction) {
		return err
	}
	return fmt.Errorf("%w: engine %s failed for %s: %v", common.ErrExtraction, engine, filename, err)
}
