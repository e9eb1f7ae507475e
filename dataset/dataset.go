// Package dataset loads and merges persisted conversation files into
// training sets.
package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrNoTrainingData is returned by Aggregate when no file in the
// directory could be loaded. Callers must treat it as fatal for a
// training run.
var ErrNoTrainingData = errors.New("no training data found")

// Sample is one unit of training text. Dialogue samples carry both
// sides of the exchange; plain-text samples only Text.
type Sample struct {
	Text string `json:"text"`
}

// Dataset is an ordered collection of samples.
type Dataset struct {
	Samples []Sample
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Samples)
}

// Concat appends all samples from other, preserving order.
func (d *Dataset) Concat(other *Dataset) {
	d.Samples = append(d.Samples, other.Samples...)
}

// dialogueFile is the on-disk structured conversation format.
type dialogueFile struct {
	Dialogues []dialogue `json:"dialogues"`
}

type dialogue struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// LoadJSON loads a structured conversation file. The file must contain
// a top-level "dialogues" key; each dialogue becomes one sample with
// both turns joined by a newline.
func LoadJSON(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var df dialogueFile
	if err := json.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	ds := &Dataset{}
	for _, dlg := range df.Dialogues {
		text := strings.TrimSpace(dlg.User) + "\n" + strings.TrimSpace(dlg.Assistant)
		ds.Samples = append(ds.Samples, Sample{Text: text})
	}
	return ds, nil
}

// LoadText loads a plain-text file, one sample per non-empty line.
func LoadText(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ds := &Dataset{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ds.Samples = append(ds.Samples, Sample{Text: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	return ds, nil
}

// LoadFile loads a dataset from a single file, dispatching on its
// extension. Only .json and .txt files are recognized.
func LoadFile(path string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	case ".txt":
		return LoadText(path)
	default:
		return nil, fmt.Errorf("unsupported dataset file %s", path)
	}
}

// hasDialoguesKey reports whether the JSON document at path contains a
// top-level "dialogues" key. Files without it are not conversation
// datasets and are skipped without an error.
func hasDialoguesKey(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, err
	}
	_, ok := doc["dialogues"]
	return ok, nil
}

// Aggregator discovers and merges conversation files from a directory.
type Aggregator struct {
	logger *log.Logger
}

// NewAggregator creates an Aggregator. A nil logger falls back to the
// default logger.
func NewAggregator(logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{logger: logger.With("component", "dataset")}
}

// Aggregate scans the direct entries of dir in lexical name order and
// merges every loadable conversation file into one dataset. Failures
// loading a single file are logged and skipped; they never abort
// aggregation of the remaining files. Returns ErrNoTrainingData when
// nothing could be loaded.
func (a *Aggregator) Aggregate(dir string) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	combined := &Dataset{}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)

		var ds *Dataset
		switch {
		case strings.HasSuffix(name, ".json"):
			ok, err := hasDialoguesKey(path)
			if err != nil {
				a.logger.Error("error loading file", "file", name, "err", err)
				continue
			}
			if !ok {
				continue
			}
			ds, err = LoadJSON(path)
			if err != nil {
				a.logger.Error("error loading file", "file", name, "err", err)
				continue
			}
		case strings.HasSuffix(name, ".txt"):
			ds, err = LoadText(path)
			if err != nil {
				a.logger.Error("error loading file", "file", name, "err", err)
				continue
			}
		default:
			continue
		}

		combined.Concat(ds)
		loaded++
	}

	if loaded == 0 {
		return nil, ErrNoTrainingData
	}

	a.logger.Info("aggregated conversation files", "files", loaded, "samples", combined.Len())
	return combined, nil
}
