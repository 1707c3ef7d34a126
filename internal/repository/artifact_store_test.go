package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"StoreSales/internal/domain/models"
	domrepo "StoreSales/internal/domain/repository"
	"StoreSales/internal/services/oilmodel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lastDay = time.Date(2017, 8, 15, 0, 0, 0, 0, time.UTC)

func sampleSet() *domrepo.ArtifactSet {
	id := models.SeriesID{StoreNbr: 1, Family: "BREAD"}
	cov := models.CovariateSeries{
		{Date: lastDay.AddDate(0, 0, -1), OnPromotion: 1, OilPrice: 47.5, IsHoliday: 0},
		{Date: lastDay, OnPromotion: 0, OilPrice: 47.6, IsHoliday: 1},
	}
	target := models.TimeSeries{
		{Date: lastDay.AddDate(0, 0, -1), Value: 10},
		{Date: lastDay, Value: 12},
	}
	return &domrepo.ArtifactSet{
		Manifest: domrepo.ModelManifest{
			ModelID:         "lgbm-1",
			TrainedAt:       lastDay.Add(time.Hour),
			TrainedLastDate: lastDay,
			Series:          []models.SeriesID{id},
		},
		Oil: &oilmodel.ARModel{
			Lags:      2,
			Intercept: 0.5,
			Coef:      []float64{0.9, 0.05},
			Tail:      []float64{47.5, 47.6},
			LastDate:  lastDay,
		},
		Covariates: map[models.SeriesID]models.CovariateSeries{id: cov},
		Targets:    map[models.SeriesID]models.TimeSeries{id: target},
	}
}

func TestFileArtifactStoreSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	store := NewFileArtifactStore(dir)
	want := sampleSet()
	require.NoError(t, store.Save(context.Background(), want))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.Manifest, got.Manifest)
	assert.Equal(t, want.Oil, got.Oil)
	assert.Equal(t, want.Covariates, got.Covariates)
	assert.Equal(t, want.Targets, got.Targets)
	assert.Equal(t, lastDay, got.Oil.LastTrainedDate())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestFileArtifactStoreBundleLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewFileArtifactStore(dir).Save(context.Background(), sampleSet()))

	b, err := os.ReadFile(filepath.Join(dir, covariatesFile))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"store_nbr":1,"family":"BREAD","rows":[`)
}

func TestFileArtifactStoreMissing(t *testing.T) {
	_, err := NewFileArtifactStore(t.TempDir()).Load(context.Background())
	assert.ErrorIs(t, err, models.ErrArtifact)
}

func TestFileArtifactStoreRejectsGap(t *testing.T) {
	dir := t.TempDir()
	set := sampleSet()
	id := set.Manifest.Series[0]
	set.Targets[id] = models.TimeSeries{
		{Date: lastDay.AddDate(0, 0, -2), Value: 1},
		{Date: lastDay, Value: 2},
	}
	store := NewFileArtifactStore(dir)
	require.NoError(t, store.Save(context.Background(), set))

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, models.ErrArtifact)
}

func TestFileArtifactStoreRejectsBadOilModel(t *testing.T) {
	dir := t.TempDir()
	store := NewFileArtifactStore(dir)
	require.NoError(t, store.Save(context.Background(), sampleSet()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, oilModelFile), []byte(`{"lags":3,"coef":[1]}`), 0o644))

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, models.ErrArtifact)
}

type countingLoader struct {
	calls int
	err   error
	set   *domrepo.ArtifactSet
}

func (c *countingLoader) Load(context.Context) (*domrepo.ArtifactSet, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.set, nil
}

func TestCachedArtifactLoader(t *testing.T) {
	inner := &countingLoader{err: errors.New("disk")}
	loader := NewCachedArtifactLoader(inner)

	_, err := loader.Load(context.Background())
	require.Error(t, err)

	inner.err = nil
	inner.set = sampleSet()
	a, err := loader.Load(context.Background())
	require.NoError(t, err)
	b, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 2, inner.calls)

	loader.Invalidate()
	_, err = loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}
