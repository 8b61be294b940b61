package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/store"
	"github.com/starford/threatmap/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		db, err := OpenInMemory()
		require.NoError(t, err)
		return db
	})
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, db.UpsertThreat(ctx, models.Threat{ID: "T1", Name: "kept"}))
	require.NoError(t, db.UpsertMitigation(ctx, models.Mitigation{ID: "M1", ThreatID: "T1", Name: "m"}))
	require.NoError(t, db.UpsertIteration(ctx, "v1", "", []byte(`{}`)))
	require.NoError(t, db.Close())

	db, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer db.Close()

	th, err := db.GetThreat(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "kept", th.Name)

	ms, err := db.ListMitigationsForThreat(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, ms, 1)

	require.NoError(t, db.UpsertIteration(ctx, "v2", "", []byte(`{}`)))
	list, err := db.ListIterations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "v2", list[0].Name)
}

func TestThreatIDsSharingPrefix(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.UpsertThreat(ctx, models.Threat{ID: "A", Name: "a"}))
	require.NoError(t, db.UpsertThreat(ctx, models.Threat{ID: "A/B", Name: "ab"}))
	require.NoError(t, db.UpsertMitigation(ctx, models.Mitigation{ID: "M1", ThreatID: "A", Name: "m1"}))
	require.NoError(t, db.UpsertMitigation(ctx, models.Mitigation{ID: "M2", ThreatID: "A/B", Name: "m2"}))

	got, err := db.ListMitigationsForThreat(ctx, "A")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "M1", got[0].ID)

	require.NoError(t, db.DeleteThreat(ctx, "A"))
	_, err = db.GetMitigation(ctx, "M2")
	assert.NoError(t, err)
}
