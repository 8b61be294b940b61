package modelservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/threatmap/internal/apperr"
	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/session"
)

// SaveCurrentAsIteration stores a snapshot of the working session under
// name, replacing any earlier iteration of that name. The session itself is
// not changed, and a store failure is returned to the caller.
func (s *Service) SaveCurrentAsIteration(ctx context.Context, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Invalid("name", "cannot be blank")
	}

	s.mu.Lock()
	snap := s.state.Snapshot()
	s.mu.Unlock()

	data, err := session.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.store.UpsertIteration(ctx, name, description, data); err != nil {
		return fmt.Errorf("save iteration %q: %w", name, err)
	}
	slog.Info("iteration saved",
		slog.String("name", name),
		slog.Int("threats", len(snap.SelectedThreats)),
		slog.Int("mitigations", len(snap.SelectedMitigations)),
	)
	s.notify(IterationSaved, name)
	return nil
}

// LoadIterationByName replaces the working session with a saved iteration.
// Selections are restored as saved, even when the records have since been
// changed or deleted. A missing iteration leaves the session untouched.
func (s *Service) LoadIterationByName(ctx context.Context, name string) error {
	data, err := s.store.LoadIteration(ctx, name)
	if err != nil {
		return err
	}
	snap, err := session.DecodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("iteration %q: %w", name, err)
	}
	_ = s.withState(func(st *session.State) error {
		st.Restore(name, snap)
		return nil
	})
	s.notify(IterationLoaded, name)
	return nil
}

// ResetToDefault restores the built-in architecture and clears the selection
// and the current iteration.
func (s *Service) ResetToDefault() {
	_ = s.withState(func(st *session.State) error {
		st.Reset()
		return nil
	})
	s.notify(WorkspaceReset, "")
}

// ListIterations returns saved iterations, newest first.
func (s *Service) ListIterations(ctx context.Context) ([]models.IterationInfo, error) {
	return s.store.ListIterations(ctx)
}

// CurrentIteration returns the name of the loaded iteration, or "".
func (s *Service) CurrentIteration() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentIteration
}
