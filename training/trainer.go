package training

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/tsawler/dialogtrain/dataset"
	"github.com/tsawler/dialogtrain/model"
)

// Batch is one unit of optimization: the token pairs of a group of
// samples.
type Batch struct {
	Pairs [][2]int
}

// Trainer turns datasets into batches and runs single optimization
// steps against the model.
type Trainer struct {
	model     *model.ChatModel
	batchSize int
	logger    *log.Logger
}

// NewTrainer creates a Trainer producing batches of batchSize samples.
func NewTrainer(m *model.ChatModel, batchSize int, logger *log.Logger) *Trainer {
	if batchSize <= 0 {
		batchSize = 8
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Trainer{model: m, batchSize: batchSize, logger: logger.With("component", "trainer")}
}

// LoadJSONData loads a structured conversation file.
func (t *Trainer) LoadJSONData(path string) (*dataset.Dataset, error) {
	return dataset.LoadJSON(path)
}

// LoadTextData loads a plain-text file.
func (t *Trainer) LoadTextData(path string) (*dataset.Dataset, error) {
	return dataset.LoadText(path)
}

// Batches splits the dataset into batches in sample order. The same
// dataset always yields the same batch sequence.
func (t *Trainer) Batches(ds *dataset.Dataset) []Batch {
	tok := t.model.Tokenizer()

	var batches []Batch
	for start := 0; start < ds.Len(); start += t.batchSize {
		end := start + t.batchSize
		if end > ds.Len() {
			end = ds.Len()
		}
		var pairs [][2]int
		for _, sample := range ds.Samples[start:end] {
			pairs = append(pairs, tok.Pairs(sample.Text)...)
		}
		batches = append(batches, Batch{Pairs: pairs})
	}
	return batches
}

// TrainStep runs one forward/backward pass over the batch and returns
// its mean loss. Gradients accumulate into the model parameters; the
// caller owns zeroing and applying them.
func (t *Trainer) TrainStep(batch Batch) (float64, error) {
	loss, err := t.model.LossAndBackward(batch.Pairs)
	if err != nil {
		return 0, fmt.Errorf("training step failed: %w", err)
	}
	return loss, nil
}
