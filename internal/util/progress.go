package util

import "fmt"

// SyncCounts tracks how far a connector sync has come. Staged counts
// items fetched and parked in the object store, Skipped those the
// connector kind does not support, Failed those that could not be
// fetched or stored. Every listed item ends up in exactly one bucket.
type SyncCounts struct {
	Total   int
	Staged  int
	Skipped int
	Failed  int
}

// Done is the number of items the sync has dealt with so far.
func (c SyncCounts) Done() int {
	return c.Staged + c.Skipped + c.Failed
}

// Percentage is the share of items dealt with, 0 to 100. A sync with
// nothing listed is complete.
func (c SyncCounts) Percentage() int32 {
	if c.Total <= 0 {
		return 100
	}
	p := c.Done() * 100 / c.Total
	if p > 100 {
		p = 100
	}
	return int32(p)
}

func (c SyncCounts) String() string {
	return fmt.Sprintf("%d/%d staged, %d skipped, %d failed",
		c.Staged, c.Total, c.Skipped, c.Failed)
}
