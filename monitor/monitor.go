// Package monitor accumulates, persists, and visualizes per-epoch
// training results.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
)

const (
	// LogFileName is the serialized training log inside the log directory.
	LogFileName = "training_log.json"
	// ProgressFileName is the rendered visualization inside the log directory.
	ProgressFileName = "training_progress.html"
)

// TrainingLog is the durable record of one training session.
type TrainingLog struct {
	RunID     string               `json:"run_id,omitempty"`
	Epochs    []int                `json:"epochs"`
	TrainLoss []float64            `json:"train_loss"`
	ValLoss   []float64            `json:"val_loss"`
	Metrics   map[string][]float64 `json:"metrics"`
	Tracked   []string             `json:"tracked_metrics"`
}

func newTrainingLog() *TrainingLog {
	return &TrainingLog{
		Epochs:    []int{},
		TrainLoss: []float64{},
		ValLoss:   []float64{},
		Metrics:   map[string][]float64{},
		Tracked:   []string{},
	}
}

// Monitor owns the current training log. It has exactly one writer:
// LogEpoch, called once per completed epoch. Every mutation is
// synchronously persisted before the visualization is regenerated, so
// a crash after epoch N leaves exactly N records on disk.
type Monitor struct {
	logDir string
	logger *log.Logger
	cur    *TrainingLog
	frozen bool
}

// New creates a Monitor writing into logDir. The directory is created
// if necessary. A log persisted by an earlier session is left on disk
// untouched until Reset or LogEpoch writes over it, so readers can
// still load the previous run's results.
func New(logDir string, logger *log.Logger) (*Monitor, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Monitor{
		logDir: logDir,
		logger: logger.With("component", "monitor"),
		cur:    newTrainingLog(),
	}, nil
}

// Reset clears all records and the tracked-metric set, and writes the
// empty log to disk.
func (m *Monitor) Reset() error {
	m.cur = newTrainingLog()
	m.frozen = false
	if err := m.save(); err != nil {
		return fmt.Errorf("failed to reset training log: %w", err)
	}
	return nil
}

// SetRunID stamps the current log with a session run identifier.
func (m *Monitor) SetRunID(id string) {
	m.cur.RunID = id
}

// Log returns the in-memory training log.
func (m *Monitor) Log() *TrainingLog {
	return m.cur
}

// LogEpoch appends one epoch record. Epoch indices are 1-based and
// must be gap-free. The tracked metric set freezes on the first
// non-empty validation; metric names appearing later are dropped. A
// "loss" metric also feeds the validation-loss series. Persistence
// failure is returned to the caller; a failed render is only logged.
func (m *Monitor) LogEpoch(epoch int, trainLoss float64, valMetrics map[string]float64) error {
	if epoch != len(m.cur.Epochs)+1 {
		err := fmt.Errorf("epoch %d out of sequence, expected %d", epoch, len(m.cur.Epochs)+1)
		m.logger.Error("failed to log epoch", "epoch", epoch, "err", err)
		return err
	}

	m.cur.Epochs = append(m.cur.Epochs, epoch)
	m.cur.TrainLoss = append(m.cur.TrainLoss, trainLoss)

	if len(valMetrics) > 0 {
		if !m.frozen {
			m.freezeTracked(valMetrics)
		}
		for _, name := range m.cur.Tracked {
			if value, ok := valMetrics[name]; ok {
				m.cur.Metrics[name] = append(m.cur.Metrics[name], value)
			}
		}
		for name := range valMetrics {
			if _, ok := m.cur.Metrics[name]; !ok {
				m.logger.Debug("dropping untracked metric", "metric", name, "epoch", epoch)
			}
		}
		if loss, ok := valMetrics["loss"]; ok {
			m.cur.ValLoss = append(m.cur.ValLoss, loss)
		}
	}

	if err := m.save(); err != nil {
		m.logger.Error("failed to persist epoch record", "epoch", epoch, "err", err)
		return fmt.Errorf("failed to persist epoch %d: %w", epoch, err)
	}

	if err := renderProgress(m.cur, filepath.Join(m.logDir, ProgressFileName)); err != nil {
		m.logger.Warn("failed to render training progress", "epoch", epoch, "err", err)
	}

	m.logger.Debug("logged epoch data", "epoch", epoch, "train_loss", trainLoss)
	return nil
}

// freezeTracked fixes the tracked metric names, in sorted order for
// reproducible serialization and rendering.
func (m *Monitor) freezeTracked(valMetrics map[string]float64) {
	names := make([]string, 0, len(valMetrics))
	for name := range valMetrics {
		names = append(names, name)
	}
	sort.Strings(names)
	m.cur.Tracked = names
	for _, name := range names {
		m.cur.Metrics[name] = []float64{}
	}
	m.frozen = true
}

// BestEpoch returns the 1-based epoch index with the highest recorded
// value of the named metric, taking the first occurrence on ties, or
// -1 when the metric has no values.
func (m *Monitor) BestEpoch(metric string) int {
	series := m.cur.Metrics[metric]
	if len(series) == 0 {
		return -1
	}
	best := 0
	for i, v := range series {
		if v > series[best] {
			best = i
		}
	}
	return best + 1
}

func (m *Monitor) save() error {
	path := filepath.Join(m.logDir, LogFileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m.cur); err != nil {
		return fmt.Errorf("failed to encode log: %w", err)
	}
	return nil
}

// LoadLog reads a previously serialized training log from logDir.
func LoadLog(logDir string) (*TrainingLog, error) {
	f, err := os.Open(filepath.Join(logDir, LogFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	var tl TrainingLog
	if err := json.NewDecoder(f).Decode(&tl); err != nil {
		return nil, fmt.Errorf("failed to decode log file: %w", err)
	}
	return &tl, nil
}
