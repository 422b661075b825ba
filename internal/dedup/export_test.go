package dedup

import "time"

// SetClock replaces the gate's time source in tests.
func SetClock(g *Gate, now func() time.Time) { g.now = now }
