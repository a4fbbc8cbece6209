// Package bot runs the control loop: a single cooperative worker that
// walks the portfolio in order, one symbol at a time, honoring an external
// run flag at every suspension point.
package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"meanrev-bot/internal/audit"
	"meanrev-bot/internal/events"
)

// Evaluator decides and executes for one symbol; implemented by trader.Engine.
type Evaluator interface {
	EvaluateSymbol(ctx context.Context, token string) error
}

// Loop schedules portfolio evaluation on a fixed cadence.
type Loop struct {
	Eval      Evaluator
	Log       *audit.Logger
	Bus       *events.Bus
	Portfolio []string

	SymbolDelay   time.Duration // between symbols within a pass
	CycleDelay    time.Duration // after a full pass
	IdlePoll      time.Duration // while stopped
	ErrorCooldown time.Duration // after a cycle-level failure

	active atomic.Bool
}

// State is published on the bus when the run flag flips.
type State struct {
	Active bool `json:"active"`
}

// Start raises the run flag; the loop picks it up within one idle poll.
func (l *Loop) Start() {
	if l.active.Swap(true) {
		return
	}
	l.Log.Info("COMMAND: Bot Started")
	l.publishState()
}

// Stop lowers the run flag. The symbol being evaluated runs to completion;
// no further symbol starts. In-flight orders are not cancelable.
func (l *Loop) Stop() {
	if !l.active.Swap(false) {
		return
	}
	l.Log.Info("COMMAND: Bot Stopped")
	l.publishState()
}

// Active reports the run flag; safe from any goroutine.
func (l *Loop) Active() bool {
	return l.active.Load()
}

// Run drives the loop until ctx is canceled. Strategy and I/O errors never
// terminate it: per-symbol failures are logged inside the pass, and
// runCycle's recover converts anything that escapes into an error followed
// by a cooldown.
func (l *Loop) Run(ctx context.Context) {
	l.Log.Info("Bot process initialized. Waiting for start command...")
	for {
		if ctx.Err() != nil {
			return
		}
		if !l.active.Load() {
			sleep(ctx, l.IdlePoll)
			continue
		}

		if err := l.runCycle(ctx); err != nil {
			l.Log.Error("Loop error: %v", err)
			sleep(ctx, l.ErrorCooldown)
			continue
		}
		sleep(ctx, l.CycleDelay)
	}
}

// runCycle walks the portfolio once. The run flag is checked before every
// symbol so a stop request takes effect mid-pass.
func (l *Loop) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	for _, token := range l.Portfolio {
		if ctx.Err() != nil || !l.active.Load() {
			break
		}
		if err := l.Eval.EvaluateSymbol(ctx, token); err != nil {
			// Contained at symbol scope; the pass moves on.
			l.Log.Error("%s evaluation error: %v", token, err)
		}
		sleep(ctx, l.SymbolDelay)
	}
	return nil
}

func (l *Loop) publishState() {
	if l.Bus != nil {
		l.Bus.Publish(events.EventBotState, State{Active: l.active.Load()})
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
