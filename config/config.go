// Package config loads and persists the harness configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the application configuration.
type Config struct {
	Paths    PathsConfig    `toml:"paths"`
	Training TrainingConfig `toml:"training"`
	Chat     ChatConfig     `toml:"chat"`
}

// PathsConfig locates the on-disk artifact directories.
type PathsConfig struct {
	DataDir          string `toml:"data_dir"`          // Root data directory
	ModelsDir        string `toml:"models_dir"`        // Checkpoint snapshots
	LogsDir          string `toml:"logs_dir"`          // Training log + visualization
	ConversationsDir string `toml:"conversations_dir"` // Conversation dataset files
	MemoryPath       string `toml:"memory_path"`       // Interaction history database
}

// TrainingConfig holds the optimization hyperparameters.
type TrainingConfig struct {
	Epochs         int     `toml:"epochs"`           // Default epoch count
	LearningRate   float64 `toml:"learning_rate"`    // Base learning rate
	WeightDecay    float64 `toml:"weight_decay"`     // Decoupled weight decay
	BatchSize      int     `toml:"batch_size"`       // Samples per batch
	EmbeddingDim   int     `toml:"embedding_dim"`    // Model embedding width
	MaxVocab       int     `toml:"max_vocab"`        // Vocabulary cap (0 = unlimited)
	MaxModels      int     `toml:"max_models"`       // Versioned snapshots retained
	EvalSampleSize int     `toml:"eval_sample_size"` // Samples per evaluation
	Seed           int64   `toml:"seed"`             // Weight init seed
}

// ChatConfig holds the conversational settings.
type ChatConfig struct {
	SpeakerName  string  `toml:"speaker_name"`  // Tag prefixing model turns
	ContextTurns int     `toml:"context_turns"` // Remembered turns in the prompt
	Temperature  float64 `toml:"temperature"`   // Sampling temperature
	Archetype    string  `toml:"archetype"`     // Persona archetype name
}

// Default returns the default configuration rooted at dataDir.
func Default(dataDir string) *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:          dataDir,
			ModelsDir:        filepath.Join(dataDir, "models"),
			LogsDir:          filepath.Join(dataDir, "logs"),
			ConversationsDir: filepath.Join(dataDir, "conversations"),
			MemoryPath:       filepath.Join(dataDir, "memory.db"),
		},
		Training: TrainingConfig{
			Epochs:         3,
			LearningRate:   5e-5,
			WeightDecay:    0.01,
			BatchSize:      8,
			EmbeddingDim:   64,
			MaxVocab:       8192,
			MaxModels:      5,
			EvalSampleSize: 100,
			Seed:           1,
		},
		Chat: ChatConfig{
			SpeakerName:  "Sin",
			ContextTurns: 4,
			Temperature:  0.8,
			Archetype:    "neutral",
		},
	}
}

// Load reads a TOML configuration file. Missing fields keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default("data")
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path as TOML.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
