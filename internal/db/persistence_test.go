package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"vessel-cbm-monitor/internal/models"
	"vessel-cbm-monitor/internal/store"
)

func seededStore() *store.Store {
	s := store.New()
	ts := time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC)
	s.Append(models.Reading{Vessel: "Aurora", EquipmentCode: "ME-01", Component: "Main Engine", MeasurementPoint: "DE", Parameter: models.ParamVelocity, Value: 3.2, Timestamp: ts})
	s.Append(models.Reading{Vessel: "Borealis", EquipmentCode: "FP-04", Component: "Fire Pump", Parameter: models.ParamRPM, Value: 1450, Timestamp: ts.Add(time.Hour)})
	return s
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(NewMemoryKV(), nil)

	src := seededStore()
	require.NoError(t, p.Save(ctx, src))

	dst := store.New()
	require.True(t, p.Load(ctx, dst))
	assert.Equal(t, src.All(), dst.All())
	assert.Equal(t, []string{"Aurora", "Borealis"}, dst.Vessels())
	assert.Equal(t, []string{"FP-04"}, dst.Index().OptionsFor(models.DimEquipmentCode, map[models.Dimension]string{models.DimVessel: "Borealis"}))
}

func TestPersistenceLoadMissingStartsEmpty(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewPersistence(NewMemoryKV(), zap.New(core))

	s := seededStore()
	assert.False(t, p.Load(context.Background(), s))
	assert.Zero(t, s.Len())
	assert.Equal(t, 1, logs.FilterMessage("no saved state").Len())
}

func TestPersistenceLoadCorruptStartsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, Scope, StateKey, []byte(`{"readings": [`)))

	core, logs := observer.New(zap.WarnLevel)
	p := NewPersistence(kv, zap.New(core))

	s := seededStore()
	assert.False(t, p.Load(ctx, s))
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Vessels())
	assert.Equal(t, 1, logs.FilterMessage("state corrupt, starting empty").Len())
}

func TestPersistenceClear(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	p := NewPersistence(kv, nil)
	require.NoError(t, p.Save(ctx, seededStore()))
	require.NoError(t, p.Clear(ctx))

	_, err := kv.Get(ctx, Scope, StateKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryKVCopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	value := []byte("abc")
	require.NoError(t, kv.Set(ctx, "s", "k", value))
	value[0] = 'x'

	got, err := kv.Get(ctx, "s", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	require.NoError(t, kv.Set(ctx, "s", "a", nil))
	keys, err := kv.Keys(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "k"}, keys)
}

func TestDatabaseKV(t *testing.T) {
	ctx := context.Background()
	database, err := New(filepath.Join(t.TempDir(), "cbm.db"))
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Get(ctx, Scope, StateKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, database.Set(ctx, Scope, "b", []byte("one")))
	require.NoError(t, database.Set(ctx, Scope, "a", []byte("two")))
	require.NoError(t, database.Set(ctx, Scope, "b", []byte("three")))
	require.NoError(t, database.Set(ctx, "other", "z", []byte("x")))

	got, err := database.Get(ctx, Scope, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), got)

	keys, err := database.Keys(ctx, Scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	stats, err := database.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["entries"])
	assert.Equal(t, int64(9), stats["bytes"])

	require.NoError(t, database.Delete(ctx, Scope, "a"))
	require.NoError(t, database.Delete(ctx, Scope, "missing"))
	keys, err = database.Keys(ctx, Scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestDatabaseBacksPersistence(t *testing.T) {
	ctx := context.Background()
	database, err := New(":memory:")
	require.NoError(t, err)
	defer database.Close()

	p := NewPersistence(database, nil)
	src := seededStore()
	require.NoError(t, p.Save(ctx, src))

	dst := store.New()
	require.True(t, p.Load(ctx, dst))
	assert.Equal(t, src.All(), dst.All())
}
