// Package training drives the epoch-level optimization loop and owns
// the session lifecycle: dataset aggregation, train steps, schedule
// steps, validation, metric logging, and checkpointing.
package training

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/tsawler/dialogtrain/checkpoints"
	"github.com/tsawler/dialogtrain/config"
	"github.com/tsawler/dialogtrain/dataset"
	"github.com/tsawler/dialogtrain/memory"
	"github.com/tsawler/dialogtrain/model"
	"github.com/tsawler/dialogtrain/monitor"
	"github.com/tsawler/dialogtrain/persona"
)

// Model is the trainable collaborator the session drives.
type Model interface {
	SetTrain()
	SetEval()
	Parameters() []*model.Parameter
	GenerateResponse(prompt string) (string, error)
	Save(path string) error
	Load(path string) error
	Snapshot() [][]float64
	Restore(snap [][]float64) error
}

// BatchTrainer yields batches and runs single optimization steps.
type BatchTrainer interface {
	Batches(ds *dataset.Dataset) []Batch
	TrainStep(batch Batch) (float64, error)
}

// Evaluator scores a dataset with the model's current weights.
type Evaluator interface {
	EvaluateDataset(ds *dataset.Dataset, sampleSize int) (map[string]float64, error)
}

// Collaborators is the explicit set of components a Session drives.
// The session owns references for its lifetime but never constructs
// collaborators mid-run.
type Collaborators struct {
	Model     Model
	Trainer   BatchTrainer
	Evaluator Evaluator
	Monitor   *monitor.Monitor
	Store     *checkpoints.Store
	Memory    memory.Store
	Persona   *persona.Persona
}

// Session orchestrates training runs and the chat surface over one
// model instance. It is single-threaded: one batch at a time, one
// epoch at a time, never two concurrent runs against the same model.
type Session struct {
	cfg        *config.Config
	model      Model
	trainer    BatchTrainer
	eval       Evaluator
	monitor    *monitor.Monitor
	store      *checkpoints.Store
	memory     memory.Store
	persona    *persona.Persona
	aggregator *dataset.Aggregator
	logger     *log.Logger
}

// NewSession wires a session from its collaborator set.
func NewSession(cfg *config.Config, collab Collaborators, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.Default()
	}
	if collab.Model == nil || collab.Trainer == nil || collab.Evaluator == nil {
		return nil, fmt.Errorf("session requires model, trainer, and evaluator collaborators")
	}
	if collab.Monitor == nil || collab.Store == nil {
		return nil, fmt.Errorf("session requires monitor and checkpoint store collaborators")
	}
	if collab.Memory == nil {
		collab.Memory = memory.NewVolatile()
	}
	if collab.Persona == nil {
		collab.Persona = persona.New()
	}

	return &Session{
		cfg:        cfg,
		model:      collab.Model,
		trainer:    collab.Trainer,
		eval:       collab.Evaluator,
		monitor:    collab.Monitor,
		store:      collab.Store,
		memory:     collab.Memory,
		persona:    collab.Persona,
		aggregator: dataset.NewAggregator(logger),
		logger:     logger.With("component", "session"),
	}, nil
}

// Run executes the full training loop for epochs epochs, validating
// against valSet when it is non-empty, and returns the training log.
// Partial progress already flushed to the monitor or checkpoint store
// survives a failed run.
func (s *Session) Run(epochs int, valSet *dataset.Dataset) (*monitor.TrainingLog, error) {
	s.logger.Info("starting training", "epochs", epochs)

	trainSet, err := s.aggregator.Aggregate(s.cfg.Paths.ConversationsDir)
	if err != nil {
		s.logger.Error("training aborted", "err", err)
		return nil, err
	}
	s.logger.Info("loaded training set", "samples", trainSet.Len())

	if err := s.monitor.Reset(); err != nil {
		return nil, err
	}
	s.monitor.SetRunID(uuid.NewString())

	if valSet.Len() > 0 {
		initMetrics, err := s.eval.EvaluateDataset(valSet, s.cfg.Training.EvalSampleSize)
		if err != nil {
			s.logger.Error("initial validation failed", "err", err)
			return nil, fmt.Errorf("initial validation failed: %w", err)
		}
		s.logger.Info("initial validation", "metrics", initMetrics)
	}

	opt := NewAdamW(s.model.Parameters(), s.cfg.Training.LearningRate, s.cfg.Training.WeightDecay)
	sched := NewCosineAnnealingLR(opt, epochs)

	for epoch := 1; epoch <= epochs; epoch++ {
		if err := s.runEpoch(epoch, trainSet, valSet, opt, sched); err != nil {
			s.logger.Error("epoch failed", "epoch", epoch, "err", err)
			return nil, fmt.Errorf("epoch %d failed: %w", epoch, err)
		}
	}

	bestEpoch := s.monitor.BestEpoch("accuracy")
	s.logger.Info("training complete", "best_epoch", bestEpoch)

	if err := s.Save(); err != nil {
		return nil, err
	}
	return s.monitor.Log(), nil
}

// runEpoch runs one full pass over the training set: batch steps,
// schedule step, optional validation, and exactly one monitor record.
func (s *Session) runEpoch(epoch int, trainSet, valSet *dataset.Dataset, opt Optimizer, sched *CosineAnnealingLR) error {
	s.model.SetTrain()
	totalLoss := 0.0

	for i, batch := range s.trainer.Batches(trainSet) {
		opt.ZeroGrad()
		loss, err := s.trainer.TrainStep(batch)
		if err != nil {
			s.logger.Error("batch step failed", "epoch", epoch, "batch", i, "err", err)
			return fmt.Errorf("batch %d: %w", i, err)
		}
		if err := opt.Step(); err != nil {
			s.logger.Error("optimizer step failed", "epoch", epoch, "batch", i, "err", err)
			return fmt.Errorf("optimizer step at batch %d: %w", i, err)
		}
		totalLoss += loss

		if i%50 == 0 {
			s.logger.Debug("batch complete", "epoch", epoch, "batch", i, "loss", loss)
		}
	}

	sched.Step()

	var valMetrics map[string]float64
	if valSet.Len() > 0 {
		var err error
		valMetrics, err = s.eval.EvaluateDataset(valSet, s.cfg.Training.EvalSampleSize)
		if err != nil {
			return fmt.Errorf("validation: %w", err)
		}
		s.logger.Info("validation", "epoch", epoch, "metrics", valMetrics)
	}

	if err := s.monitor.LogEpoch(epoch, totalLoss, valMetrics); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	s.logger.Info("epoch complete",
		"epoch", epoch,
		"avg_loss", totalLoss/float64(trainSet.Len()),
		"lr", opt.GetLR(),
	)
	return nil
}

// Evaluate scores the model on a dataset.
func (s *Session) Evaluate(ds *dataset.Dataset, sampleSize int) (map[string]float64, error) {
	if ds.Len() == 0 {
		return map[string]float64{}, nil
	}
	return s.eval.EvaluateDataset(ds, sampleSize)
}

// Chat generates a reply to the user input using remembered context.
// Generation errors degrade to a fallback reply instead of failing the
// conversation.
func (s *Session) Chat(input string) string {
	s.logger.Info("received user input", "input", input)

	recent, err := s.memory.Recent(s.cfg.Chat.ContextTurns)
	if err != nil {
		s.logger.Error("failed to load conversation context", "err", err)
	}

	var lines []string
	for _, it := range recent {
		lines = append(lines, it.UserInput, it.Response)
	}
	lines = append(lines, input)
	prompt := strings.Join(lines, "\n") + "\n" + s.cfg.Chat.SpeakerName + ":"

	response, err := s.model.GenerateResponse(prompt)
	if err != nil {
		s.logger.Error("generation failed", "err", err)
		return "Something went wrong while generating a reply"
	}

	clean := s.cleanResponse(response)
	if clean == "" {
		clean = "I cannot come up with a reply"
	}
	clean = s.persona.FormatResponse(clean)

	if err := s.memory.AddInteraction(input, clean); err != nil {
		s.logger.Error("failed to record interaction", "err", err)
	}
	return clean
}

// cleanResponse strips the speaker tag and anything past the first
// line of a raw generation.
func (s *Session) cleanResponse(response string) string {
	tag := s.cfg.Chat.SpeakerName + ":"
	parts := strings.Split(response, tag)
	clean := strings.TrimSpace(parts[len(parts)-1])
	if i := strings.IndexByte(clean, '\n'); i >= 0 {
		clean = clean[:i]
	}
	return strings.TrimSpace(clean)
}

// Save persists the model into the canonical "latest" snapshot slot.
func (s *Session) Save() error {
	if err := s.store.SaveLatest(s.model); err != nil {
		s.logger.Error("failed to save model", "err", err)
		return err
	}
	return nil
}

// Load restores the model from the "latest" slot when one exists.
func (s *Session) Load() error {
	if !s.store.HasLatest() {
		return nil
	}
	if err := s.store.LoadLatest(s.model); err != nil {
		s.logger.Error("failed to load saved model", "err", err)
		return err
	}
	s.logger.Info("loaded saved model", "path", s.store.LatestPath())
	return nil
}

// SaveModel persists a versioned snapshot under name (synthesized from
// the timestamp when empty) and returns its path.
func (s *Session) SaveModel(name string) (string, error) {
	path, err := s.store.SaveVersioned(s.model, name)
	if err != nil {
		s.logger.Error("manual save failed", "err", err)
		return "", err
	}
	return path, nil
}

// ListModels returns all versioned snapshot names, most recent first.
func (s *Session) ListModels() ([]string, error) {
	return s.store.List()
}

// CompareModels evaluates each snapshot against testSet, restoring the
// live weights afterwards.
func (s *Session) CompareModels(paths []string, testSet *dataset.Dataset) (map[string]*checkpoints.ComparisonResult, error) {
	return s.store.Compare(s.model, s.eval, paths, testSet, s.cfg.Training.EvalSampleSize)
}

// TrainingReport returns the last persisted training log, or nil when
// none exists yet.
func (s *Session) TrainingReport() (*monitor.TrainingLog, error) {
	tl, err := monitor.LoadLog(s.cfg.Paths.LogsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return tl, nil
}
