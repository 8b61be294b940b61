// Package storetest holds the behavioural tests every store.Store backend
// must pass.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/store"
)

// Opener returns a fresh, empty store. The store is closed by the suite.
type Opener func(t *testing.T) store.Store

// Run executes the shared suite against the stores produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"UpsertThreatIsIdempotent", testUpsertThreatIsIdempotent},
		{"UpsertThreatOverwrites", testUpsertThreatOverwrites},
		{"StorePermitsUnknownValues", testStorePermitsUnknownValues},
		{"GetMissing", testGetMissing},
		{"ListThreatsOrderedByID", testListThreatsOrderedByID},
		{"DeleteThreatCascades", testDeleteThreatCascades},
		{"DeleteMissing", testDeleteMissing},
		{"DeleteMissingThreatRemovesOrphans", testDeleteMissingThreatRemovesOrphans},
		{"MitigationMovesBetweenThreats", testMitigationMovesBetweenThreats},
		{"ListAllMitigationsLeftJoin", testListAllMitigationsLeftJoin},
		{"DeleteMitigation", testDeleteMitigation},
		{"Subdomains", testSubdomains},
		{"IterationRoundTrip", testIterationRoundTrip},
		{"IterationOverwrite", testIterationOverwrite},
		{"IterationsNewestFirst", testIterationsNewestFirst},
		{"CanceledContext", testCanceledContext},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func threat(id, name string) models.Threat {
	return models.Threat{ID: id, Name: name, Description: "d", Severity: models.SeverityHigh, Domain: "Services"}
}

func mitigation(id, threatID, name string) models.Mitigation {
	return models.Mitigation{ID: id, ThreatID: threatID, Name: name, Status: models.StatusPlanned, Domain: "Services"}
}

func testUpsertThreatIsIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	in := threat("T1", "Phishing")
	require.NoError(t, s.UpsertThreat(ctx, in))
	require.NoError(t, s.UpsertThreat(ctx, in))

	got, err := s.ListThreats(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Phishing", got[0].Name)
	assert.Equal(t, models.SeverityHigh, got[0].Severity)
	assert.False(t, got[0].CreatedDate.IsZero(), "created date should be stamped")
}

func testUpsertThreatOverwrites(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertThreat(ctx, threat("T1", "before")))
	first, err := s.GetThreat(ctx, "T1")
	require.NoError(t, err)

	updated := threat("T1", "after")
	updated.Severity = models.SeverityCritical
	require.NoError(t, s.UpsertThreat(ctx, updated))

	got, err := s.GetThreat(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "after", got.Name)
	assert.Equal(t, models.SeverityCritical, got.Severity)
	assert.False(t, got.CreatedDate.Before(first.CreatedDate), "overwrite restamps the created date")
}

func testStorePermitsUnknownValues(t *testing.T, s store.Store) {
	ctx := context.Background()
	in := threat("T1", "odd")
	in.Severity = "Catastrophic"
	require.NoError(t, s.UpsertThreat(ctx, in))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M1", "NOPE", "orphan")))

	got, err := s.GetThreat(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, models.Severity("Catastrophic"), got.Severity)

	m, err := s.GetMitigation(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, "NOPE", m.ThreatID)
}

func testGetMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.GetThreat(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetMitigation(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.LoadIteration(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListThreatsOrderedByID(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, id := range []string{"T3", "T1", "T2"} {
		require.NoError(t, s.UpsertThreat(ctx, threat(id, id)))
	}
	got, err := s.ListThreats(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"T1", "T2", "T3"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func testDeleteThreatCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertThreat(ctx, threat("T1", "one")))
	require.NoError(t, s.UpsertThreat(ctx, threat("T2", "two")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M1", "T1", "a")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M2", "T1", "b")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M3", "T2", "c")))

	require.NoError(t, s.DeleteThreat(ctx, "T1"))

	_, err := s.GetThreat(ctx, "T1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	left, err := s.ListMitigationsForThreat(ctx, "T1")
	require.NoError(t, err)
	assert.Empty(t, left)

	all, err := s.ListAllMitigations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "M3", all[0].ID)
	assert.Equal(t, "two", all[0].ThreatName)
}

func testDeleteMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	assert.ErrorIs(t, s.DeleteThreat(ctx, "nope"), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteMitigation(ctx, "nope"), store.ErrNotFound)
}

func testDeleteMissingThreatRemovesOrphans(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M1", "ghost", "orphan")))
	require.NoError(t, s.UpsertThreat(ctx, threat("ghost2", "other")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M2", "ghost2", "kept")))

	assert.ErrorIs(t, s.DeleteThreat(ctx, "ghost"), store.ErrNotFound)

	left, err := s.ListMitigationsForThreat(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, left)
	_, err = s.GetMitigation(ctx, "M1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetMitigation(ctx, "M2")
	assert.NoError(t, err)
}

func testMitigationMovesBetweenThreats(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertThreat(ctx, threat("T1", "one")))
	require.NoError(t, s.UpsertThreat(ctx, threat("T2", "two")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M2", "T1", "b")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M1", "T1", "a")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M2", "T2", "b moved")))

	one, err := s.ListMitigationsForThreat(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "M1", one[0].ID)

	two, err := s.ListMitigationsForThreat(ctx, "T2")
	require.NoError(t, err)
	require.Len(t, two, 1)
	assert.Equal(t, "b moved", two[0].Name)

	require.NoError(t, s.DeleteThreat(ctx, "T1"))
	_, err = s.GetMitigation(ctx, "M2")
	assert.NoError(t, err, "moved mitigation must survive deleting its old threat")
}

func testListAllMitigationsLeftJoin(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertThreat(ctx, threat("T1", "Phishing")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M2", "T1", "Training")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M1", "GONE", "Orphan")))

	got, err := s.ListAllMitigations(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "M1", got[0].ID)
	assert.Empty(t, got[0].ThreatName)
	assert.Equal(t, "M2", got[1].ID)
	assert.Equal(t, "Phishing", got[1].ThreatName)
	assert.Equal(t, models.StatusPlanned, got[1].Status)
}

func testDeleteMitigation(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertThreat(ctx, threat("T1", "one")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M1", "T1", "a")))
	require.NoError(t, s.UpsertMitigation(ctx, mitigation("M2", "T1", "b")))

	require.NoError(t, s.DeleteMitigation(ctx, "M1"))

	got, err := s.ListMitigationsForThreat(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "M2", got[0].ID)
	_, err = s.GetThreat(ctx, "T1")
	assert.NoError(t, err, "deleting a mitigation keeps its threat")
}

func testSubdomains(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, sd := range []models.Subdomain{
		{ID: "S1", ParentDomain: "Services", Name: "Portal"},
		{ID: "S2", ParentDomain: "People", Name: "Staff"},
		{ID: "S3", ParentDomain: "Services", Name: "API"},
	} {
		require.NoError(t, s.UpsertSubdomain(ctx, sd))
	}
	require.NoError(t, s.UpsertSubdomain(ctx, models.Subdomain{ID: "S1", ParentDomain: "Services", Name: "Web Portal", Description: "renamed"}))

	all, err := s.ListSubdomains(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"S2", "S3", "S1"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "renamed", all[2].Description)

	services, err := s.ListSubdomains(ctx, "Services")
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "API", services[0].Name)

	none, err := s.ListSubdomains(ctx, "Unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testIterationRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	data := []byte(`{"domains":{},"interactions":[],"selected_threats":{},"selected_mitigations":{}}`)
	require.NoError(t, s.UpsertIteration(ctx, "v1", "first cut", data))

	got, err := s.LoadIteration(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	list, err := s.ListIterations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "v1", list[0].Name)
	assert.Equal(t, "first cut", list[0].Description)
	assert.False(t, list[0].CreatedDate.IsZero())
}

func testIterationOverwrite(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertIteration(ctx, "v1", "old", []byte(`{"a":1}`)))
	require.NoError(t, s.UpsertIteration(ctx, "v1", "new", []byte(`{"a":2}`)))

	got, err := s.LoadIteration(ctx, "v1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got))

	list, err := s.ListIterations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].Description)
}

func testIterationsNewestFirst(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, s.UpsertIteration(ctx, name, "", []byte(`{}`)))
	}
	list, err := s.ListIterations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"gamma", "beta", "alpha"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func testCanceledContext(t *testing.T, s store.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.UpsertThreat(ctx, threat("T1", "x")))

	_, err := s.GetThreat(context.Background(), "T1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
