// Package model implements a small word-level neural language model
// used as the trainable collaborator of the training harness.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Parameter is one trainable tensor: a flat float64 buffer plus its
// accumulated gradient. Optimizers mutate Data in place.
type Parameter struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
	Grad  []float64 `json:"-"`
}

// ZeroGrad resets the accumulated gradient.
func (p *Parameter) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// ChatModel is an embedding + output-projection bigram language model.
// It predicts the next token from the previous one, which is enough
// structure to exercise a full optimization loop.
type ChatModel struct {
	tok *Tokenizer
	dim int

	emb  *Parameter // [vocab, dim] token embeddings
	out  *Parameter // [dim, vocab] output projection
	bias *Parameter // [vocab]

	training bool
	rng      *rand.Rand

	// Generation settings.
	Temperature float64
	MaxTokens   int
}

// New creates a ChatModel over the tokenizer's vocabulary with
// embedding dimension dim. Weights are initialized from seed so runs
// are reproducible.
func New(tok *Tokenizer, dim int, seed int64) *ChatModel {
	v := tok.VocabSize()
	rng := rand.New(rand.NewSource(seed))

	m := &ChatModel{
		tok:         tok,
		dim:         dim,
		rng:         rng,
		Temperature: 0.8,
		MaxTokens:   32,
	}
	m.emb = newParameter("embedding", []int{v, dim}, rng)
	m.out = newParameter("output", []int{dim, v}, rng)
	m.bias = &Parameter{Name: "bias", Shape: []int{v}, Data: make([]float64, v), Grad: make([]float64, v)}
	return m
}

func newParameter(name string, shape []int, rng *rand.Rand) *Parameter {
	n := 1
	for _, s := range shape {
		n *= s
	}
	data := make([]float64, n)
	scale := 0.1
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return &Parameter{Name: name, Shape: shape, Data: data, Grad: make([]float64, n)}
}

// Tokenizer returns the model's tokenizer.
func (m *ChatModel) Tokenizer() *Tokenizer {
	return m.tok
}

// Parameters enumerates all trainable parameters.
func (m *ChatModel) Parameters() []*Parameter {
	return []*Parameter{m.emb, m.out, m.bias}
}

// SetTrain switches the model to training mode.
func (m *ChatModel) SetTrain() { m.training = true }

// SetEval switches the model to evaluation mode.
func (m *ChatModel) SetEval() { m.training = false }

// logits computes the unnormalized next-token scores for prev.
func (m *ChatModel) logits(prev int) []float64 {
	v := m.tok.VocabSize()
	h := m.emb.Data[prev*m.dim : (prev+1)*m.dim]

	scores := make([]float64, v)
	copy(scores, m.bias.Data)
	for d := 0; d < m.dim; d++ {
		row := m.out.Data[d*v : (d+1)*v]
		floats.AddScaled(scores, h[d], row)
	}
	return scores
}

// Loss returns the mean cross-entropy of predicting next from prev
// over the given pairs. No gradients are touched.
func (m *ChatModel) Loss(pairs [][2]int) (float64, error) {
	if len(pairs) == 0 {
		return 0, fmt.Errorf("loss requires at least one token pair")
	}
	total := 0.0
	for _, pair := range pairs {
		scores := m.logits(pair[0])
		total += floats.LogSumExp(scores) - scores[pair[1]]
	}
	return total / float64(len(pairs)), nil
}

// LossAndBackward computes the mean cross-entropy over pairs and
// accumulates gradients into the parameters. The model must be in
// training mode.
func (m *ChatModel) LossAndBackward(pairs [][2]int) (float64, error) {
	if !m.training {
		return 0, fmt.Errorf("backward pass requires training mode")
	}
	if len(pairs) == 0 {
		return 0, fmt.Errorf("training step requires at least one token pair")
	}

	v := m.tok.VocabSize()
	inv := 1.0 / float64(len(pairs))
	total := 0.0

	for _, pair := range pairs {
		prev, next := pair[0], pair[1]
		scores := m.logits(prev)
		lse := floats.LogSumExp(scores)
		total += lse - scores[next]

		// dLogits = softmax(scores); dLogits[next] -= 1
		dlogits := make([]float64, v)
		for i, s := range scores {
			dlogits[i] = math.Exp(s-lse) * inv
		}
		dlogits[next] -= inv

		h := m.emb.Data[prev*m.dim : (prev+1)*m.dim]
		hGrad := m.emb.Grad[prev*m.dim : (prev+1)*m.dim]

		floats.Add(m.bias.Grad, dlogits)
		for d := 0; d < m.dim; d++ {
			outRow := m.out.Data[d*v : (d+1)*v]
			gradRow := m.out.Grad[d*v : (d+1)*v]
			floats.AddScaled(gradRow, h[d], dlogits)
			hGrad[d] += floats.Dot(outRow, dlogits)
		}
	}

	return total * inv, nil
}

// GenerateResponse samples a continuation of prompt, stopping at the
// end token or after MaxTokens words.
func (m *ChatModel) GenerateResponse(prompt string) (string, error) {
	ids := m.tok.Encode(prompt)
	prev := BosID
	if len(ids) > 0 {
		prev = ids[len(ids)-1]
	}

	var words []string
	for i := 0; i < m.MaxTokens; i++ {
		next := m.sample(prev)
		if next == EosID {
			break
		}
		if next > EosID && next < m.tok.VocabSize() {
			words = append(words, m.tok.Words[next])
		}
		prev = next
	}

	if len(words) == 0 {
		return "", fmt.Errorf("generation produced no tokens")
	}
	return strings.Join(words, " "), nil
}

// sample draws the next token from the temperature-scaled softmax
// distribution. In eval mode with zero temperature it is greedy.
func (m *ChatModel) sample(prev int) int {
	scores := m.logits(prev)
	if m.Temperature <= 0 {
		return argmax(scores)
	}

	scaled := make([]float64, len(scores))
	for i, s := range scores {
		scaled[i] = s / m.Temperature
	}
	lse := floats.LogSumExp(scaled)

	r := m.rng.Float64()
	acc := 0.0
	for i, s := range scaled {
		acc += math.Exp(s - lse)
		if r < acc {
			return i
		}
	}
	return len(scores) - 1
}

// Predict returns the most likely next token after prev.
func (m *ChatModel) Predict(prev int) int {
	return argmax(m.logits(prev))
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

// Snapshot returns a deep copy of the current weights, suitable for
// restoring after a temporary weight swap.
func (m *ChatModel) Snapshot() [][]float64 {
	params := m.Parameters()
	snap := make([][]float64, len(params))
	for i, p := range params {
		snap[i] = append([]float64{}, p.Data...)
	}
	return snap
}

// Restore copies a snapshot taken with Snapshot back into the model.
func (m *ChatModel) Restore(snap [][]float64) error {
	params := m.Parameters()
	if len(snap) != len(params) {
		return fmt.Errorf("snapshot has %d tensors, model has %d", len(snap), len(params))
	}
	for i, p := range params {
		if len(snap[i]) != len(p.Data) {
			return fmt.Errorf("snapshot tensor %s has %d values, expected %d", p.Name, len(snap[i]), len(p.Data))
		}
		copy(p.Data, snap[i])
	}
	return nil
}

// modelFile is the serialized form of a ChatModel.
type modelFile struct {
	Dim        int          `json:"dim"`
	Words      []string     `json:"words"`
	Parameters []*Parameter `json:"parameters"`
}

// Save writes the model weights and vocabulary to path.
func (m *ChatModel) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer f.Close()

	mf := modelFile{Dim: m.dim, Words: m.tok.Words, Parameters: m.Parameters()}
	encoder := json.NewEncoder(f)
	if err := encoder.Encode(mf); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Load replaces the model's weights and vocabulary with the contents
// of path. Parameter shapes must match the stored ones.
func (m *ChatModel) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()

	var mf modelFile
	if err := json.NewDecoder(f).Decode(&mf); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	if len(mf.Parameters) != 3 {
		return fmt.Errorf("model file has %d parameter tensors, expected 3", len(mf.Parameters))
	}

	m.dim = mf.Dim
	m.tok = &Tokenizer{Words: mf.Words}
	m.tok.buildIndex()

	for _, p := range mf.Parameters {
		p.Grad = make([]float64, len(p.Data))
	}
	m.emb, m.out, m.bias = mf.Parameters[0], mf.Parameters[1], mf.Parameters[2]
	return nil
}
