package repository

import (
	"context"
	"time"

	"StoreSales/internal/domain/models"
	"StoreSales/internal/domain/service"
)

// ModelManifest describes one training run.
type ModelManifest struct {
	ModelID         string            `json:"model_id"`
	TrainedAt       time.Time         `json:"trained_at"`
	TrainedLastDate time.Time         `json:"trained_last_date"`
	Series          []models.SeriesID `json:"series"`
}

// Knows reports whether id was part of training.
func (m ModelManifest) Knows(id models.SeriesID) bool {
	for _, s := range m.Series {
		if s == id {
			return true
		}
	}
	return false
}

// ArtifactSet is everything produced by training and read at prediction
// time. Loaded sets are shared read-only and must never be mutated.
type ArtifactSet struct {
	Manifest   ModelManifest
	Oil        service.OilModel
	Covariates map[models.SeriesID]models.CovariateSeries
	Targets    map[models.SeriesID]models.TimeSeries
}

// ArtifactLoader acquires the artifact set for a request.
type ArtifactLoader interface {
	Load(ctx context.Context) (*ArtifactSet, error)
}

// ArtifactWriter persists a freshly trained artifact set.
type ArtifactWriter interface {
	Save(ctx context.Context, set *ArtifactSet) error
}
