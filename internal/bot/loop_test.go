package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"meanrev-bot/internal/audit"
	"meanrev-bot/internal/events"
)

type fakeEvaluator struct {
	mu     sync.Mutex
	tokens []string
	onEval func(token string) error
}

func (f *fakeEvaluator) EvaluateSymbol(_ context.Context, token string) error {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
	if f.onEval != nil {
		return f.onEval(token)
	}
	return nil
}

func (f *fakeEvaluator) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func newTestLoop(eval Evaluator) *Loop {
	return &Loop{
		Eval:      eval,
		Log:       audit.New(nil, nil),
		Portfolio: []string{"ADA", "PHB", "FET"},
	}
}

func TestStopTakesEffectBetweenSymbols(t *testing.T) {
	fake := &fakeEvaluator{}
	l := newTestLoop(fake)
	fake.onEval = func(token string) error {
		if token == "ADA" {
			// A stop issued while a symbol runs lets that symbol finish
			// and prevents the next one from starting.
			l.Stop()
		}
		return nil
	}

	l.Start()
	if err := l.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	if got := fake.seen(); len(got) != 1 || got[0] != "ADA" {
		t.Fatalf("evaluated %v, expected only ADA", got)
	}
}

func TestSymbolErrorDoesNotAbortPass(t *testing.T) {
	fake := &fakeEvaluator{}
	fake.onEval = func(token string) error {
		if token == "PHB" {
			return errors.New("exchange timeout")
		}
		return nil
	}
	l := newTestLoop(fake)

	l.Start()
	if err := l.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	if got := fake.seen(); len(got) != 3 {
		t.Fatalf("evaluated %v, expected the full portfolio", got)
	}
}

func TestCyclePanicIsContained(t *testing.T) {
	fake := &fakeEvaluator{}
	fake.onEval = func(token string) error {
		if token == "PHB" {
			panic("nil pointer somewhere deep")
		}
		return nil
	}
	l := newTestLoop(fake)

	l.Start()
	err := l.runCycle(context.Background())
	if err == nil || !strings.Contains(err.Error(), "cycle panic") {
		t.Fatalf("err=%v, expected cycle panic", err)
	}
}

func TestCanceledContextEndsPass(t *testing.T) {
	fake := &fakeEvaluator{}
	l := newTestLoop(fake)
	l.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.runCycle(ctx); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if got := fake.seen(); len(got) != 0 {
		t.Fatalf("evaluated %v after cancellation", got)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventBotState, 8)
	defer unsub()

	l := newTestLoop(&fakeEvaluator{})
	l.Bus = bus

	l.Start()
	l.Start()
	l.Stop()
	l.Stop()

	if l.Active() {
		t.Fatal("loop active after stop")
	}
	// Only the flag flips publish: one started, one stopped.
	var states []State
	for {
		select {
		case v := <-ch:
			states = append(states, v.(State))
			continue
		default:
		}
		break
	}
	if len(states) != 2 || !states[0].Active || states[1].Active {
		t.Fatalf("state events %v, expected active then inactive", states)
	}
}

func TestRunStaysIdleUntilStarted(t *testing.T) {
	fake := &fakeEvaluator{}
	l := newTestLoop(fake)
	l.IdlePoll = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if got := fake.seen(); len(got) != 0 {
		t.Fatalf("evaluated %v while stopped", got)
	}
}

func TestRunEvaluatesWhenStarted(t *testing.T) {
	fake := &fakeEvaluator{}
	l := newTestLoop(fake)
	l.IdlePoll = time.Millisecond

	passDone := make(chan struct{}, 1)
	fake.onEval = func(token string) error {
		if token == "FET" {
			l.Stop()
			select {
			case passDone <- struct{}{}:
			default:
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	l.Start()
	select {
	case <-passDone:
	case <-time.After(time.Second):
		t.Fatal("pass never reached the last symbol")
	}
	cancel()
	<-done

	got := fake.seen()
	if len(got) < 3 || got[0] != "ADA" || got[1] != "PHB" || got[2] != "FET" {
		t.Fatalf("evaluated %v, expected portfolio order", got)
	}
}
