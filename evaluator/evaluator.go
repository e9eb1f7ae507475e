// Package evaluator scores a model against held-out conversation
// datasets.
package evaluator

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/tsawler/dialogtrain/dataset"
	"github.com/tsawler/dialogtrain/model"
)

// Evaluator computes validation metrics for a ChatModel.
type Evaluator struct {
	model  *model.ChatModel
	logger *log.Logger
}

// New creates an Evaluator for the given model.
func New(m *model.ChatModel, logger *log.Logger) *Evaluator {
	if logger == nil {
		logger = log.Default()
	}
	return &Evaluator{model: m, logger: logger.With("component", "evaluator")}
}

// EvaluateDataset evaluates up to sampleSize samples and returns the
// metric mapping: mean cross-entropy loss, perplexity, and next-token
// accuracy. An empty dataset yields an empty mapping.
func (e *Evaluator) EvaluateDataset(ds *dataset.Dataset, sampleSize int) (map[string]float64, error) {
	if ds.Len() == 0 {
		return map[string]float64{}, nil
	}

	e.model.SetEval()
	tok := e.model.Tokenizer()

	n := ds.Len()
	if sampleSize > 0 && sampleSize < n {
		n = sampleSize
	}

	var pairs [][2]int
	for _, sample := range ds.Samples[:n] {
		pairs = append(pairs, tok.Pairs(sample.Text)...)
	}
	if len(pairs) == 0 {
		return map[string]float64{}, nil
	}

	loss, err := e.model.Loss(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate dataset: %w", err)
	}

	correct := 0
	for _, pair := range pairs {
		if e.model.Predict(pair[0]) == pair[1] {
			correct++
		}
	}

	metrics := map[string]float64{
		"loss":       loss,
		"perplexity": math.Exp(loss),
		"accuracy":   float64(correct) / float64(len(pairs)),
	}
	e.logger.Debug("dataset evaluated", "samples", n, "pairs", len(pairs), "loss", loss)
	return metrics, nil
}
