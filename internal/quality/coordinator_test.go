package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datallboy/goytbot/internal/domain"
)

func TestAskReceivesSelection(t *testing.T) {
	c := New(nil, time.Second)

	var offered []int
	h, err := c.Ask(context.Background(), "chat-1", func(ladder []int) error {
		offered = ladder
		// Click arrives before Ask starts waiting
		if !c.Select(domain.QualityChoice{Key: "chat-1", Height: 720}) {
			t.Error("Select should succeed while awaiting")
		}
		return nil
	})
	if err != nil || h != 720 {
		t.Fatalf("Ask = %d, %v", h, err)
	}
	if len(offered) != 6 || offered[0] != 144 || offered[5] != 1080 {
		t.Fatalf("offered ladder = %v", offered)
	}
	if c.Awaiting("chat-1") {
		t.Fatal("selection must be cleared after it completes")
	}
}

func TestWaitTimesOut(t *testing.T) {
	c := New(nil, 20*time.Millisecond)
	p := c.Begin("chat-1")

	start := time.Now()
	if _, err := p.Wait(context.Background()); !errors.Is(err, domain.ErrNoQualitySelected) {
		t.Fatalf("expected ErrNoQualitySelected, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("Wait returned after %s, before the 20ms timeout", elapsed)
	}
	if c.Awaiting("chat-1") {
		t.Fatal("timed out selection must be removed")
	}
	if c.Select(domain.QualityChoice{Key: "chat-1", Height: 360}) {
		t.Fatal("stale click must be rejected")
	}
}

func TestSelectRejectsOffLadder(t *testing.T) {
	c := New([]int{360, 720}, time.Second)
	c.Begin("k")
	if c.Select(domain.QualityChoice{Key: "k", Height: 1080}) {
		t.Fatal("height not on ladder must be rejected")
	}
	if !c.Awaiting("k") {
		t.Fatal("rejected click must not consume the selection")
	}
}

func TestBeginReplacesPrior(t *testing.T) {
	c := New(nil, time.Second)
	first := c.Begin("k")
	c.Begin("k")

	if _, err := first.Wait(context.Background()); !errors.Is(err, domain.ErrSelectionSuperseded) {
		t.Fatalf("expected ErrSelectionSuperseded, got %v", err)
	}
}

func TestAskPromptFailure(t *testing.T) {
	c := New(nil, time.Second)
	boom := errors.New("send failed")
	if _, err := c.Ask(context.Background(), "k", func([]int) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected prompt error, got %v", err)
	}
	if c.Awaiting("k") {
		t.Fatal("selection must be dropped when the prompt fails")
	}
}

func TestAskPromptFailureSparesNewerSelection(t *testing.T) {
	c := New(nil, time.Second)
	boom := errors.New("send failed")

	var newer *Pending
	_, err := c.Ask(context.Background(), "k", func([]int) error {
		// A second request for the same chat starts before this prompt fails
		newer = c.Begin("k")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected prompt error, got %v", err)
	}
	if !c.Awaiting("k") {
		t.Fatal("newer selection was dropped by the older prompt failure")
	}
	if !c.Select(domain.QualityChoice{Key: "k", Height: 480}) {
		t.Fatal("Select should reach the newer selection")
	}
	if h, err := newer.Wait(context.Background()); err != nil || h != 480 {
		t.Fatalf("newer Wait = %d, %v", h, err)
	}
}

func TestCancelSelection(t *testing.T) {
	c := New(nil, time.Second)
	p := c.Begin("k")

	if !c.Cancel("k") {
		t.Fatal("Cancel should drop the open selection")
	}
	if c.Cancel("k") {
		t.Fatal("nothing left to cancel")
	}
	if _, err := p.Wait(context.Background()); !errors.Is(err, domain.ErrRequestCancelled) {
		t.Fatalf("expected ErrRequestCancelled, got %v", err)
	}
}
