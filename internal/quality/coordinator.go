package quality

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/datallboy/goytbot/internal/domain"
	"github.com/datallboy/goytbot/internal/rendezvous"
)

// Coordinator hands the height a user picks on the chat UI to the pipeline
// goroutine waiting for it. One selection may be outstanding per key.
type Coordinator struct {
	table   *rendezvous.Table[string, int]
	ladder  []int
	timeout time.Duration
}

func New(ladder []int, timeout time.Duration) *Coordinator {
	if len(ladder) == 0 {
		ladder = domain.DefaultLadder
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Coordinator{
		table:   rendezvous.New[string, int](),
		ladder:  slices.Clone(ladder),
		timeout: timeout,
	}
}

// Ladder returns the heights to offer.
func (c *Coordinator) Ladder() []int {
	return slices.Clone(c.ladder)
}

// Pending is an outstanding selection for one key.
type Pending struct {
	ticket  *rendezvous.Ticket[string, int]
	timeout time.Duration
}

// Begin opens a selection for key, replacing any earlier one. Call it before
// showing the choices so an immediate click is not lost.
func (c *Coordinator) Begin(key string) *Pending {
	return &Pending{ticket: c.table.Begin(key), timeout: c.timeout}
}

// Wait blocks until a height is selected or the timeout elapses.
func (p *Pending) Wait(ctx context.Context) (int, error) {
	h, err := p.ticket.Wait(ctx, p.timeout)
	switch {
	case err == nil:
		return h, nil
	case errors.Is(err, rendezvous.ErrTimeout):
		return 0, domain.ErrNoQualitySelected
	case errors.Is(err, rendezvous.ErrSuperseded):
		return 0, domain.ErrSelectionSuperseded
	case errors.Is(err, rendezvous.ErrCancelled):
		return 0, domain.ErrRequestCancelled
	default:
		return 0, err
	}
}

// Ask opens a selection, runs prompt to show the choices and waits.
func (c *Coordinator) Ask(ctx context.Context, key string, prompt func(ladder []int) error) (int, error) {
	p := c.Begin(key)
	if err := prompt(c.Ladder()); err != nil {
		p.ticket.Cancel()
		return 0, err
	}
	return p.Wait(ctx)
}

// Select delivers a choice to the selection pending for its key. It returns
// false for stale clicks and heights not on the ladder; the UI should still
// acknowledge those.
func (c *Coordinator) Select(choice domain.QualityChoice) bool {
	if !domain.OnLadder(c.ladder, choice.Height) {
		return false
	}
	return c.table.Resolve(choice.Key, choice.Height)
}

// Cancel drops the selection pending for key. Its waiter gets
// domain.ErrRequestCancelled.
func (c *Coordinator) Cancel(key string) bool {
	return c.table.Cancel(key)
}

// Awaiting reports whether key has an open selection.
func (c *Coordinator) Awaiting(key string) bool {
	return c.table.Pending(key)
}
