// Package modelservice coordinates the relation store and the working
// session. It validates user input, keeps the selection consistent with
// deletes, and manages saved iterations.
package modelservice

import (
	"sync"

	"github.com/starford/threatmap/internal/metrics"
	"github.com/starford/threatmap/internal/session"
	"github.com/starford/threatmap/internal/store"
)

// Change kinds passed to the ChangeFunc.
const (
	ThreatSaved       = "threat.saved"
	ThreatDeleted     = "threat.deleted"
	MitigationSaved   = "mitigation.saved"
	MitigationDeleted = "mitigation.deleted"
	SubdomainSaved    = "subdomain.saved"
	IterationSaved    = "iteration.saved"
	IterationLoaded   = "iteration.loaded"
	WorkspaceReset    = "workspace.reset"
	SelectionChanged  = "selection.changed"
	GraphChanged      = "graph.changed"
)

// ChangeFunc is called after every successful mutation, outside the
// service lock.
type ChangeFunc func(kind, id string)

// Service owns the working session and the store it is built from.
type Service struct {
	store    store.Store
	onChange ChangeFunc
	metrics  *metrics.Metrics

	mu    sync.Mutex
	state *session.State
}

// Option configures a Service.
type Option func(*Service)

// WithChangeFunc registers fn to be told about mutations.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(s *Service) { s.onChange = fn }
}

// WithMetrics records the selection size in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a service with the default working session.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, state: session.New()}
	for _, opt := range opts {
		opt(s)
	}
	s.recordSelection()
	return s
}

func (s *Service) notify(kind, id string) {
	if s.onChange != nil {
		s.onChange(kind, id)
	}
}

// withState runs fn with the session locked and updates the selection
// gauges afterwards.
func (s *Service) withState(fn func(st *session.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(s.state)
	s.recordSelectionLocked()
	return err
}

func (s *Service) recordSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordSelectionLocked()
}

func (s *Service) recordSelectionLocked() {
	if s.metrics != nil {
		s.metrics.SetSelection(len(s.state.SelectedThreats), len(s.state.SelectedMitigations))
	}
}
