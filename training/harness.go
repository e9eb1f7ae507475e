package training

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/tsawler/dialogtrain/checkpoints"
	"github.com/tsawler/dialogtrain/config"
	"github.com/tsawler/dialogtrain/dataset"
	"github.com/tsawler/dialogtrain/evaluator"
	"github.com/tsawler/dialogtrain/memory"
	"github.com/tsawler/dialogtrain/model"
	"github.com/tsawler/dialogtrain/monitor"
	"github.com/tsawler/dialogtrain/persona"
)

// NewDefaultSession builds a Session with the full real collaborator
// set rooted at the configuration's directories: a word-level model
// (restored from the latest snapshot when one exists), trainer,
// evaluator, monitor, checkpoint store, and durable conversation
// memory. A memory store that cannot be opened degrades to a volatile
// one; every other construction failure is fatal.
func NewDefaultSession(cfg *config.Config, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.Default()
	}

	for _, dir := range []string{cfg.Paths.ModelsDir, cfg.Paths.LogsDir, cfg.Paths.ConversationsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	store, err := checkpoints.NewStore(cfg.Paths.ModelsDir, cfg.Training.MaxModels, logger)
	if err != nil {
		return nil, err
	}

	mon, err := monitor.New(cfg.Paths.LogsDir, logger)
	if err != nil {
		return nil, err
	}

	m, err := buildModel(cfg, store, logger)
	if err != nil {
		return nil, err
	}

	var mem memory.Store
	if sqlMem, err := memory.Open(cfg.Paths.MemoryPath); err != nil {
		logger.Error("failed to open conversation memory, continuing without history", "err", err)
		mem = memory.NewVolatile()
	} else {
		mem = sqlMem
	}

	p := persona.New()
	p.SetArchetype(cfg.Chat.Archetype)

	session, err := NewSession(cfg, Collaborators{
		Model:     m,
		Trainer:   NewTrainer(m, cfg.Training.BatchSize, logger),
		Evaluator: evaluator.New(m, logger),
		Monitor:   mon,
		Store:     store,
		Memory:    mem,
		Persona:   p,
	}, logger)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// buildModel restores the latest snapshot when one exists; otherwise
// it learns a fresh vocabulary from the conversation files and
// initializes new weights.
func buildModel(cfg *config.Config, store *checkpoints.Store, logger *log.Logger) (*model.ChatModel, error) {
	var texts []string
	if !store.HasLatest() {
		ds, err := dataset.NewAggregator(logger).Aggregate(cfg.Paths.ConversationsDir)
		if err != nil && !errors.Is(err, dataset.ErrNoTrainingData) {
			return nil, err
		}
		if ds != nil {
			for _, sample := range ds.Samples {
				texts = append(texts, sample.Text)
			}
		}
	}

	tok := model.NewTokenizer(texts, cfg.Training.MaxVocab)
	m := model.New(tok, cfg.Training.EmbeddingDim, cfg.Training.Seed)
	m.Temperature = cfg.Chat.Temperature

	if store.HasLatest() {
		if err := store.LoadLatest(m); err != nil {
			return nil, err
		}
		logger.Info("restored model", "path", store.LatestPath())
	}
	return m, nil
}
