package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"StoreSales/internal/domain/models"
	domrepo "StoreSales/internal/domain/repository"
	"StoreSales/internal/services/oilmodel"
)

const (
	manifestFile   = "manifest.json"
	oilModelFile   = "oil_model.json"
	covariatesFile = "covariates.json"
	targetsFile    = "targets.json"
)

type covariateEntry struct {
	StoreNbr int                    `json:"store_nbr"`
	Family   string                 `json:"family"`
	Rows     models.CovariateSeries `json:"rows"`
}

type targetEntry struct {
	StoreNbr int               `json:"store_nbr"`
	Family   string            `json:"family"`
	Rows     models.TimeSeries `json:"rows"`
}

// FileArtifactStore keeps the artifact set as JSON files in one directory.
type FileArtifactStore struct {
	dir string
}

func NewFileArtifactStore(dir string) *FileArtifactStore {
	return &FileArtifactStore{dir: dir}
}

// Load reads and validates every artifact. Any failure wraps ErrArtifact.
func (s *FileArtifactStore) Load(ctx context.Context) (*domrepo.ArtifactSet, error) {
	var manifest domrepo.ModelManifest
	if err := s.readJSON(manifestFile, &manifest); err != nil {
		return nil, err
	}

	var oil oilmodel.ARModel
	if err := s.readJSON(oilModelFile, &oil); err != nil {
		return nil, err
	}
	if oil.Lags <= 0 || len(oil.Coef) != oil.Lags || len(oil.Tail) != oil.Lags {
		return nil, fmt.Errorf("%w: %s: %d lags, %d coefficients, %d tail values",
			models.ErrArtifact, oilModelFile, oil.Lags, len(oil.Coef), len(oil.Tail))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var covEntries []covariateEntry
	if err := s.readJSON(covariatesFile, &covEntries); err != nil {
		return nil, err
	}
	covs := make(map[models.SeriesID]models.CovariateSeries, len(covEntries))
	for _, e := range covEntries {
		id := models.SeriesID{StoreNbr: e.StoreNbr, Family: e.Family}
		if err := e.Rows.Validate(); err != nil {
			return nil, fmt.Errorf("%w: covariates %s: %v", models.ErrArtifact, id, err)
		}
		covs[id] = e.Rows
	}

	var targetEntries []targetEntry
	if err := s.readJSON(targetsFile, &targetEntries); err != nil {
		return nil, err
	}
	targets := make(map[models.SeriesID]models.TimeSeries, len(targetEntries))
	for _, e := range targetEntries {
		id := models.SeriesID{StoreNbr: e.StoreNbr, Family: e.Family}
		if err := e.Rows.Validate(); err != nil {
			return nil, fmt.Errorf("%w: target %s: %v", models.ErrArtifact, id, err)
		}
		targets[id] = e.Rows
	}

	return &domrepo.ArtifactSet{
		Manifest:   manifest,
		Oil:        &oil,
		Covariates: covs,
		Targets:    targets,
	}, nil
}

// Save writes every artifact through a temp file and rename, so readers see
// either the old or the new file.
func (s *FileArtifactStore) Save(ctx context.Context, set *domrepo.ArtifactSet) error {
	if set == nil || set.Oil == nil {
		return fmt.Errorf("save artifacts: incomplete artifact set")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("save artifacts: %w", err)
	}

	ids := make([]models.SeriesID, 0, len(set.Covariates))
	for id := range set.Covariates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	covEntries := make([]covariateEntry, 0, len(ids))
	for _, id := range ids {
		covEntries = append(covEntries, covariateEntry{StoreNbr: id.StoreNbr, Family: id.Family, Rows: set.Covariates[id]})
	}

	ids = ids[:0]
	for id := range set.Targets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	targetEntries := make([]targetEntry, 0, len(ids))
	for _, id := range ids {
		targetEntries = append(targetEntries, targetEntry{StoreNbr: id.StoreNbr, Family: id.Family, Rows: set.Targets[id]})
	}

	// manifest last: a directory with a new manifest always has matching data
	files := []struct {
		name string
		v    interface{}
	}{
		{oilModelFile, set.Oil},
		{covariatesFile, covEntries},
		{targetsFile, targetEntries},
		{manifestFile, set.Manifest},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeJSON(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileArtifactStore) readJSON(name string, dest interface{}) error {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrArtifact, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrArtifact, name, err)
	}
	return nil
}

func (s *FileArtifactStore) writeJSON(name string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// CachedArtifactLoader loads the artifact set once and shares it. Failed
// loads are not remembered.
type CachedArtifactLoader struct {
	mu    sync.Mutex
	inner domrepo.ArtifactLoader
	set   *domrepo.ArtifactSet
}

func NewCachedArtifactLoader(inner domrepo.ArtifactLoader) *CachedArtifactLoader {
	return &CachedArtifactLoader{inner: inner}
}

func (c *CachedArtifactLoader) Load(ctx context.Context) (*domrepo.ArtifactSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set != nil {
		return c.set, nil
	}
	set, err := c.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, errors.New("artifact loader returned no set")
	}
	c.set = set
	return set, nil
}

// Invalidate drops the cached set; the next Load reads again.
func (c *CachedArtifactLoader) Invalidate() {
	c.mu.Lock()
	c.set = nil
	c.mu.Unlock()
}

var (
	_ domrepo.ArtifactLoader = (*FileArtifactStore)(nil)
	_ domrepo.ArtifactWriter = (*FileArtifactStore)(nil)
	_ domrepo.ArtifactLoader = (*CachedArtifactLoader)(nil)
)
