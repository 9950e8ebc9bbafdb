package connector

import "time"

// retryPolicy is the dial retry budget as explicit state: a fixed delay
// between attempts and a hard cap on their number.
type retryPolicy struct {
	max     int
	delay   time.Duration
	attempt int // failed attempts so far
}

// next records a failed attempt and reports the wait before the next one,
// or false when the budget is spent.
func (p *retryPolicy) next() (time.Duration, bool) {
	p.attempt++
	if p.attempt >= p.max {
		return 0, false
	}
	return p.delay, true
}
