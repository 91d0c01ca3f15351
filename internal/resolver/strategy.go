package resolver

import (
	"context"
	"errors"
	"fmt"
)

// Strategy is one way of asking the extraction tool for a file.
type Strategy struct {
	Name   string
	Format string
	Merge  bool
}

// Strategies returns the ordered chain for a target height. Height 0 means
// the user did not pick one, so only the unconstrained selector runs.
func Strategies(height int) []Strategy {
	var chain []Strategy
	if height > 0 {
		chain = append(chain,
			Strategy{Name: "progressive", Format: fmt.Sprintf("best[height<=%d]", height)},
			Strategy{Name: "adaptive", Format: fmt.Sprintf("bestvideo[height<=%d]+bestaudio", height), Merge: true},
		)
	}
	return append(chain, Strategy{Name: "best", Format: "best"})
}

// AttemptError captures one strategy failure.
type AttemptError struct {
	Strategy string
	Err      error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

// AllStrategiesFailedError is returned when no strategy in the chain succeeded.
type AllStrategiesFailedError struct {
	Attempts []AttemptError
}

func (e *AllStrategiesFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all strategies failed"
	}
	return fmt.Sprintf("all strategies failed: %d attempt(s), last: %v", len(e.Attempts), e.Attempts[len(e.Attempts)-1])
}

// FirstSuccess runs attempt for each strategy in order and stops at the first
// one that returns no error. Failures are reported to onFail and collected.
// A cancelled context ends the chain immediately.
func FirstSuccess[T any](ctx context.Context, chain []Strategy, attempt func(context.Context, Strategy) (T, error), onFail func(Strategy, error)) (Strategy, T, error) {
	var zero T
	failed := &AllStrategiesFailedError{}

	for _, s := range chain {
		if err := ctx.Err(); err != nil {
			return Strategy{}, zero, interrupted(s, err)
		}

		res, err := attempt(ctx, s)
		if err == nil {
			return s, res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Strategy{}, zero, interrupted(s, ctxErr)
		}

		failed.Attempts = append(failed.Attempts, AttemptError{Strategy: s.Name, Err: err})
		if onFail != nil {
			onFail(s, err)
		}
	}

	return Strategy{}, zero, failed
}

// interrupted names the strategy that was running when ctx ended.
func interrupted(s Strategy, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: download timed out: %w", s.Name, err)
	}
	return fmt.Errorf("%s: %w", s.Name, err)
}
