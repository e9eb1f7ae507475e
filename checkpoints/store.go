// Package checkpoints manages named, timestamped model snapshots on
// disk: a canonical "latest" slot plus a retention-pruned set of
// versioned snapshots.
package checkpoints

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tsawler/dialogtrain/dataset"
)

const (
	// LatestName is the canonical filename of the "latest" snapshot slot.
	LatestName = "model_latest.json"
	// SnapshotExt is the extension of every snapshot file.
	SnapshotExt = ".json"
)

// Model is the set of weight operations the store needs: durable
// save/load plus in-memory snapshot/restore for temporary weight swaps.
type Model interface {
	Save(path string) error
	Load(path string) error
	Snapshot() [][]float64
	Restore(snap [][]float64) error
}

// Evaluator scores a dataset with the model's current weights.
type Evaluator interface {
	EvaluateDataset(ds *dataset.Dataset, sampleSize int) (map[string]float64, error)
}

// ComparisonResult holds the metrics of one snapshot and, for every
// snapshot after the baseline, the signed per-metric difference
// against it.
type ComparisonResult struct {
	Metrics     map[string]float64 `json:"metrics"`
	Improvement map[string]float64 `json:"improvement,omitempty"`
}

// Store owns the on-disk snapshot set for one models directory.
type Store struct {
	dir       string
	maxModels int
	logger    *log.Logger

	// remove is swappable so retention tests can simulate deletion
	// failures.
	remove func(string) error
}

// NewStore creates the models directory if needed. maxModels bounds
// how many versioned snapshots Prune retains after a versioned save.
func NewStore(dir string, maxModels int, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	if maxModels <= 0 {
		maxModels = 5
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}
	return &Store{
		dir:       dir,
		maxModels: maxModels,
		logger:    logger.With("component", "checkpoints"),
		remove:    os.Remove,
	}, nil
}

// LatestPath returns the path of the canonical "latest" slot.
func (s *Store) LatestPath() string {
	return filepath.Join(s.dir, LatestName)
}

// SaveLatest persists the model into the canonical "latest" slot.
func (s *Store) SaveLatest(m Model) error {
	if err := m.Save(s.LatestPath()); err != nil {
		return fmt.Errorf("failed to save latest model: %w", err)
	}
	s.logger.Info("model saved", "path", s.LatestPath())
	return nil
}

// LoadLatest loads the canonical "latest" snapshot into the model.
func (s *Store) LoadLatest(m Model) error {
	if err := m.Load(s.LatestPath()); err != nil {
		return fmt.Errorf("failed to load latest model: %w", err)
	}
	return nil
}

// HasLatest reports whether a "latest" snapshot exists.
func (s *Store) HasLatest() bool {
	_, err := os.Stat(s.LatestPath())
	return err == nil
}

// SaveVersioned persists the model as a new versioned snapshot,
// distinct from the "latest" slot. An empty name is synthesized from
// the current timestamp; a name without the snapshot extension gets it
// appended. Retention pruning runs after a successful write.
func (s *Store) SaveVersioned(m Model, name string) (string, error) {
	if name == "" {
		name = fmt.Sprintf("model_%s%s", time.Now().Format("20060102_150405"), SnapshotExt)
	} else if !strings.HasSuffix(name, SnapshotExt) {
		name += SnapshotExt
	}
	if name == LatestName {
		return "", fmt.Errorf("%q is reserved for the latest slot", LatestName)
	}

	path := filepath.Join(s.dir, name)
	if err := m.Save(path); err != nil {
		return "", fmt.Errorf("failed to save model %s: %w", name, err)
	}
	s.logger.Info("model saved", "path", path)

	if err := s.Prune(s.maxModels); err != nil {
		return "", fmt.Errorf("failed to prune old models: %w", err)
	}
	return path, nil
}

// versioned lists versioned snapshot entries sorted by modification
// time, most recent first. Name order breaks ties so the result is
// deterministic.
func (s *Store) versioned() ([]os.FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	var infos []os.FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == LatestName || !strings.HasSuffix(name, SnapshotExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", name, err)
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].ModTime().Equal(infos[j].ModTime()) {
			return infos[i].ModTime().After(infos[j].ModTime())
		}
		return infos[i].Name() > infos[j].Name()
	})
	return infos, nil
}

// Prune deletes all but the max most recently modified versioned
// snapshots. Individual deletion failures are logged and skipped; they
// do not abort pruning of the remaining files.
func (s *Store) Prune(max int) error {
	infos, err := s.versioned()
	if err != nil {
		return err
	}
	if len(infos) <= max {
		return nil
	}

	for _, info := range infos[max:] {
		path := filepath.Join(s.dir, info.Name())
		if err := s.remove(path); err != nil {
			s.logger.Error("failed to remove old model", "path", path, "err", err)
			continue
		}
		s.logger.Info("removed old model", "path", path)
	}
	return nil
}

// List returns the names of all versioned snapshots, most recently
// modified first.
func (s *Store) List() ([]string, error) {
	infos, err := s.versioned()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

// resolve maps a bare snapshot name into the models directory. Paths
// that already point at a file are used as given.
func (s *Store) resolve(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(s.dir, path)
}

// Compare evaluates each snapshot path against testSet by temporarily
// loading its weights into the live model. The original weights are
// restored before Compare returns, on success and on failure alike.
// The first path is the baseline: every later result carries an
// Improvement map of signed per-metric deltas against it.
func (s *Store) Compare(m Model, eval Evaluator, paths []string, testSet *dataset.Dataset, sampleSize int) (map[string]*ComparisonResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no model paths to compare")
	}

	snap := m.Snapshot()
	defer func() {
		if err := m.Restore(snap); err != nil {
			s.logger.Error("failed to restore original weights", "err", err)
		}
	}()

	results := make(map[string]*ComparisonResult, len(paths))
	var baseline *ComparisonResult

	for i, path := range paths {
		if err := m.Load(s.resolve(path)); err != nil {
			return nil, fmt.Errorf("failed to load candidate %s: %w", path, err)
		}
		metrics, err := eval.EvaluateDataset(testSet, sampleSize)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate candidate %s: %w", path, err)
		}

		result := &ComparisonResult{Metrics: metrics}
		if i == 0 {
			baseline = result
		} else {
			result.Improvement = make(map[string]float64, len(metrics))
			for name, value := range metrics {
				result.Improvement[name] = value - baseline.Metrics[name]
			}
		}
		results[filepath.Base(path)] = result
	}

	return results, nil
}
