package clock

import (
	"context"
	"time"
)

// FakeClock advances instantly on Sleep so polling loops run without delay
// in tests.
type FakeClock struct {
	now    time.Time
	sleeps int
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.sleeps++
	return nil
}

// Sleeps reports how many times Sleep was called.
func (c *FakeClock) Sleeps() int {
	return c.sleeps
}
