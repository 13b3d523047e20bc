// Package extract turns raw document bytes into ordered text fragments.
// Three engines cover the three truth-value classes; the router picks
// the engine for a class and applies the single permitted fallback.
package extract

import "context"

// Element types stamped onto fragments. Search responses surface them
// so a caller can tell a table row from narrative prose.
const (
	ElementText          = "text"
	ElementTitle         = "title"
	ElementTable         = "table"
	ElementNarrative     = "narrative"
	ElementStructuredRow = "structured_row"
)

// Fragment is one extracted unit of content in document order. Page is
// set by the high-fidelity engine, RowIndex by the tabular engine; both
// are nil where the notion does not apply. Degraded marks fragments
// produced by the fallback engine instead of the intended one.
type Fragment struct {
	Text        string
	ElementType string
	Page        *int
	RowIndex    *int
	Degraded    bool
}

// Engine converts one document's bytes into fragments.
//
// Extract returns the fragments in document order. Returning zero
// fragments with a nil error is a valid outcome for an empty document
// and is distinct from a failure. Available reports whether the engine
// can run at all in this process, such as an external tool being
// installed; the router consults it before dispatching.
type Engine interface {
	Name() string
	Available() bool
	Extract(ctx context.Context, filename string, data []byte) ([]Fragment, error)
}

func intPtr(v int) *int {
	return &v
}
