package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "conv.json",
		`{"dialogues": [{"user": "hi there", "assistant": "hello"}, {"user": "bye", "assistant": "see you"}]}`)

	ds, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("Expected 2 samples, got %d", ds.Len())
	}
	if ds.Samples[0].Text != "hi there\nhello" {
		t.Errorf("Unexpected sample text: %q", ds.Samples[0].Text)
	}
}

func TestLoadTextSkipsEmptyLines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lines.txt", "first line\n\n  \nsecond line\n")

	ds, err := LoadText(path)
	if err != nil {
		t.Fatalf("LoadText failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("Expected 2 samples, got %d", ds.Len())
	}
}

func TestAggregateEmptyDirectory(t *testing.T) {
	agg := NewAggregator(nil)
	ds, err := agg.Aggregate(t.TempDir())
	if !errors.Is(err, ErrNoTrainingData) {
		t.Fatalf("Expected ErrNoTrainingData, got %v", err)
	}
	if ds != nil {
		t.Errorf("Expected nil dataset, got %d samples", ds.Len())
	}
}

func TestAggregateSkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"dialogues": [{"user": "q1", "assistant": "a1"}]}`)
	writeFile(t, dir, "b.json", `{not valid json`)
	writeFile(t, dir, "c.txt", "plain sample\n")

	agg := NewAggregator(nil)
	ds, err := agg.Aggregate(dir)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("Expected 2 samples from the 2 good files, got %d", ds.Len())
	}
}

func TestAggregateIgnoresJSONWithoutDialogues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{"setting": true}`)
	writeFile(t, dir, "conv.json", `{"dialogues": [{"user": "q", "assistant": "a"}]}`)

	agg := NewAggregator(nil)
	ds, err := agg.Aggregate(dir)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if ds.Len() != 1 {
		t.Fatalf("Expected 1 sample, got %d", ds.Len())
	}
}

func TestAggregateOrderIsLexical(t *testing.T) {
	dir := t.TempDir()
	// Write in reverse order; aggregation must still be a.txt first.
	writeFile(t, dir, "b.txt", "from b\n")
	writeFile(t, dir, "a.txt", "from a\n")

	agg := NewAggregator(nil)
	ds, err := agg.Aggregate(dir)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if ds.Samples[0].Text != "from a" || ds.Samples[1].Text != "from b" {
		t.Errorf("Expected lexical order, got %q then %q", ds.Samples[0].Text, ds.Samples[1].Text)
	}
}

func TestWatcherSignalsNewFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	writeFile(t, dir, "new.txt", "sample\n")

	select {
	case name := <-w.Changes:
		if filepath.Base(name) != "new.txt" {
			t.Errorf("Unexpected change notification: %s", name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for change notification")
	}
}
