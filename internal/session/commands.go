package session

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/engine"
)

// Result is what a command changed.
type Result struct {
	Snapshot Snapshot
	Effects  []string
}

// Apply feeds ev to the input machine on the session goroutine.
func (s *Session) Apply(ctx context.Context, ev engine.Event) (Result, error) {
	var res Result
	err := s.Do(ctx, func() {
		st, fx := s.apply(ev)
		res = s.result(st, fx)
	})
	return res, err
}

// ToggleMode switches to mode, or back to none when mode is already active.
func (s *Session) ToggleMode(ctx context.Context, mode engine.Mode) (Result, error) {
	return s.Apply(ctx, engine.ToggleMode{Mode: mode})
}

// Reset clears every annotation, preview and selection.
func (s *Session) Reset(ctx context.Context) (Result, error) {
	return s.Apply(ctx, engine.Reset{})
}

// Select selects the annotation at index; a stale index changes nothing.
func (s *Session) Select(ctx context.Context, index int) (Result, error) {
	return s.Apply(ctx, engine.Select{Index: index})
}

// DeleteSelected removes the selected annotation.
func (s *Session) DeleteSelected(ctx context.Context) (Result, error) {
	return s.Apply(ctx, engine.DeleteSelected{})
}

// CopySelected starts placing a copy of the selected line.
func (s *Session) CopySelected(ctx context.Context) (Result, error) {
	return s.Apply(ctx, engine.CopySelected{})
}

// SwitchSymbol ends the current instrument session and starts a fresh one:
// mode, buffer, store and selection are reset and all series removed.
func (s *Session) SwitchSymbol(ctx context.Context, symbol string) (Result, error) {
	var res Result
	err := s.Do(ctx, func() {
		prev := s.id
		s.releaseCapture()
		s.symbol = symbol
		s.id = uuid.NewString()
		st, fx := s.apply(engine.Reset{})
		s.previewer.Clear()
		slog.Info("symbol switched", "symbol", symbol, "session_id", s.id, "previous_session_id", prev)
		res = s.result(st, fx)
	})
	return res, err
}

// Snapshot returns the current state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.Do(ctx, func() {
		snap = s.snapshot(s.machine.State(), s.machine.Annotations())
	})
	return snap, err
}

// Annotations returns the committed annotations in store order.
func (s *Session) Annotations(ctx context.Context) ([]annotation.Annotation, error) {
	var anns []annotation.Annotation
	err := s.Do(ctx, func() { anns = s.machine.Annotations() })
	return anns, err
}

func (s *Session) result(st engine.State, fx []engine.Effect) Result {
	res := Result{Snapshot: s.snapshot(st, s.machine.Annotations()), Effects: []string{}}
	for _, e := range fx {
		res.Effects = append(res.Effects, e.Kind.String())
	}
	return res
}
