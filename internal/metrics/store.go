package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/store"
)

type instrumentedStore struct {
	next    store.Store
	backend string
	m       *Metrics
}

// InstrumentStore wraps next so that every call is counted and timed under
// the given backend label.
func InstrumentStore(next store.Store, backend string, m *Metrics) store.Store {
	return &instrumentedStore{next: next, backend: backend, m: m}
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, store.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	s.m.StoreOperations.WithLabelValues(s.backend, op, result).Inc()
	s.m.StoreDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStore) UpsertThreat(ctx context.Context, t models.Threat) (err error) {
	defer func(start time.Time) { s.observe("upsert_threat", start, err) }(time.Now())
	return s.next.UpsertThreat(ctx, t)
}

func (s *instrumentedStore) GetThreat(ctx context.Context, id string) (_ models.Threat, err error) {
	defer func(start time.Time) { s.observe("get_threat", start, err) }(time.Now())
	return s.next.GetThreat(ctx, id)
}

func (s *instrumentedStore) ListThreats(ctx context.Context) (_ []models.Threat, err error) {
	defer func(start time.Time) { s.observe("list_threats", start, err) }(time.Now())
	return s.next.ListThreats(ctx)
}

func (s *instrumentedStore) DeleteThreat(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe("delete_threat", start, err) }(time.Now())
	return s.next.DeleteThreat(ctx, id)
}

func (s *instrumentedStore) UpsertMitigation(ctx context.Context, m models.Mitigation) (err error) {
	defer func(start time.Time) { s.observe("upsert_mitigation", start, err) }(time.Now())
	return s.next.UpsertMitigation(ctx, m)
}

func (s *instrumentedStore) GetMitigation(ctx context.Context, id string) (_ models.Mitigation, err error) {
	defer func(start time.Time) { s.observe("get_mitigation", start, err) }(time.Now())
	return s.next.GetMitigation(ctx, id)
}

func (s *instrumentedStore) ListMitigationsForThreat(ctx context.Context, threatID string) (_ []models.Mitigation, err error) {
	defer func(start time.Time) { s.observe("list_mitigations_for_threat", start, err) }(time.Now())
	return s.next.ListMitigationsForThreat(ctx, threatID)
}

func (s *instrumentedStore) ListAllMitigations(ctx context.Context) (_ []models.MitigationWithThreat, err error) {
	defer func(start time.Time) { s.observe("list_all_mitigations", start, err) }(time.Now())
	return s.next.ListAllMitigations(ctx)
}

func (s *instrumentedStore) DeleteMitigation(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe("delete_mitigation", start, err) }(time.Now())
	return s.next.DeleteMitigation(ctx, id)
}

func (s *instrumentedStore) UpsertSubdomain(ctx context.Context, sd models.Subdomain) (err error) {
	defer func(start time.Time) { s.observe("upsert_subdomain", start, err) }(time.Now())
	return s.next.UpsertSubdomain(ctx, sd)
}

func (s *instrumentedStore) ListSubdomains(ctx context.Context, parent string) (_ []models.Subdomain, err error) {
	defer func(start time.Time) { s.observe("list_subdomains", start, err) }(time.Now())
	return s.next.ListSubdomains(ctx, parent)
}

func (s *instrumentedStore) UpsertIteration(ctx context.Context, name, description string, data []byte) (err error) {
	defer func(start time.Time) { s.observe("upsert_iteration", start, err) }(time.Now())
	return s.next.UpsertIteration(ctx, name, description, data)
}

func (s *instrumentedStore) LoadIteration(ctx context.Context, name string) (_ []byte, err error) {
	defer func(start time.Time) { s.observe("load_iteration", start, err) }(time.Now())
	return s.next.LoadIteration(ctx, name)
}

func (s *instrumentedStore) ListIterations(ctx context.Context) (_ []models.IterationInfo, err error) {
	defer func(start time.Time) { s.observe("list_iterations", start, err) }(time.Now())
	return s.next.ListIterations(ctx)
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
