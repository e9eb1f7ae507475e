package training

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/dialogtrain/checkpoints"
	"github.com/tsawler/dialogtrain/config"
	"github.com/tsawler/dialogtrain/dataset"
	"github.com/tsawler/dialogtrain/model"
	"github.com/tsawler/dialogtrain/monitor"
)

// stubModel satisfies the Model interface with trivial state.
type stubModel struct {
	params   []*model.Parameter
	reply    string
	genErr   error
	training bool
}

func newStubModel() *stubModel {
	return &stubModel{
		params: []*model.Parameter{
			{Name: "w", Shape: []int{1}, Data: []float64{0}, Grad: []float64{0}},
		},
		reply: "Sin: hello friend",
	}
}

func (s *stubModel) SetTrain() { s.training = true }
func (s *stubModel) SetEval()  { s.training = false }

func (s *stubModel) Parameters() []*model.Parameter { return s.params }
func (s *stubModel) GenerateResponse(string) (string, error) {
	return s.reply, s.genErr
}
func (s *stubModel) Save(path string) error { return os.WriteFile(path, []byte("{}"), 0644) }
func (s *stubModel) Load(path string) error { return nil }
func (s *stubModel) Snapshot() [][]float64  { return [][]float64{{s.params[0].Data[0]}} }
func (s *stubModel) Restore(snap [][]float64) error {
	s.params[0].Data[0] = snap[0][0]
	return nil
}

// stubTrainer yields one batch per dataset and a fixed loss.
type stubTrainer struct {
	loss    float64
	stepErr error
	steps   int
}

func (s *stubTrainer) Batches(ds *dataset.Dataset) []Batch {
	return []Batch{{Pairs: [][2]int{{0, 1}}}}
}

func (s *stubTrainer) TrainStep(Batch) (float64, error) {
	s.steps++
	return s.loss, s.stepErr
}

// stubEvaluator counts calls and returns fixed metrics.
type stubEvaluator struct {
	calls   int
	metrics map[string]float64
	err     error
}

func (s *stubEvaluator) EvaluateDataset(ds *dataset.Dataset, sampleSize int) (map[string]float64, error) {
	s.calls++
	return s.metrics, s.err
}

func testSession(t *testing.T, trainer BatchTrainer, eval Evaluator) (*Session, *config.Config) {
	t.Helper()
	cfg := config.Default(t.TempDir())
	return testSessionWithConfig(t, cfg, trainer, eval), cfg
}

func testSessionWithConfig(t *testing.T, cfg *config.Config, trainer BatchTrainer, eval Evaluator) *Session {
	t.Helper()

	if err := os.MkdirAll(cfg.Paths.ConversationsDir, 0o755); err != nil {
		t.Fatalf("Failed to create conversations dir: %v", err)
	}

	mon, err := monitor.New(cfg.Paths.LogsDir, nil)
	if err != nil {
		t.Fatalf("Failed to create monitor: %v", err)
	}
	store, err := checkpoints.NewStore(cfg.Paths.ModelsDir, cfg.Training.MaxModels, nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	s, err := NewSession(cfg, Collaborators{
		Model:     newStubModel(),
		Trainer:   trainer,
		Evaluator: eval,
		Monitor:   mon,
		Store:     store,
	}, nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

func writeConversation(t *testing.T, cfg *config.Config) {
	t.Helper()
	path := filepath.Join(cfg.Paths.ConversationsDir, "conv.json")
	content := `{"dialogues": [{"user": "hi", "assistant": "hello"}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write conversation file: %v", err)
	}
}

func TestRunFailsWithoutTrainingData(t *testing.T) {
	s, _ := testSession(t, &stubTrainer{loss: 1.0}, &stubEvaluator{})

	_, err := s.Run(2, nil)
	if !errors.Is(err, dataset.ErrNoTrainingData) {
		t.Fatalf("Expected ErrNoTrainingData, got %v", err)
	}
}

func TestRunTwoEpochsWithValidation(t *testing.T) {
	trainer := &stubTrainer{loss: 1.0}
	eval := &stubEvaluator{metrics: map[string]float64{"accuracy": 0.5, "loss": 2.0}}
	s, cfg := testSession(t, trainer, eval)
	writeConversation(t, cfg)

	valSet := &dataset.Dataset{Samples: []dataset.Sample{{Text: "hi hello"}}}
	tl, err := s.Run(2, valSet)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(tl.Epochs) != 2 || tl.Epochs[0] != 1 || tl.Epochs[1] != 2 {
		t.Errorf("Expected epochs [1 2], got %v", tl.Epochs)
	}
	if len(tl.TrainLoss) != 2 || tl.TrainLoss[0] != 1.0 || tl.TrainLoss[1] != 1.0 {
		t.Errorf("Expected train_loss [1 1], got %v", tl.TrainLoss)
	}
	if len(tl.Metrics["accuracy"]) != 2 {
		t.Errorf("Expected 2 accuracy records, got %v", tl.Metrics["accuracy"])
	}
	// Baseline evaluation plus one per epoch.
	if eval.calls != 3 {
		t.Errorf("Expected 3 evaluator calls, got %d", eval.calls)
	}
	if trainer.steps != 2 {
		t.Errorf("Expected 2 train steps, got %d", trainer.steps)
	}
}

func TestRunWithoutValidationSkipsMetrics(t *testing.T) {
	eval := &stubEvaluator{metrics: map[string]float64{"accuracy": 0.5}}
	s, cfg := testSession(t, &stubTrainer{loss: 0.5}, eval)
	writeConversation(t, cfg)

	tl, err := s.Run(2, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if eval.calls != 0 {
		t.Errorf("Expected no evaluator calls, got %d", eval.calls)
	}
	if len(tl.Metrics) != 0 {
		t.Errorf("Expected no metrics, got %v", tl.Metrics)
	}
}

func TestRunSavesLatestSnapshot(t *testing.T) {
	s, cfg := testSession(t, &stubTrainer{loss: 1.0}, &stubEvaluator{})
	writeConversation(t, cfg)

	if _, err := s.Run(1, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ModelsDir, checkpoints.LatestName)); err != nil {
		t.Errorf("Latest snapshot not written: %v", err)
	}
}

func TestBatchFailureAbortsEpoch(t *testing.T) {
	trainer := &stubTrainer{loss: 1.0, stepErr: fmt.Errorf("simulated batch failure")}
	s, cfg := testSession(t, trainer, &stubEvaluator{})
	writeConversation(t, cfg)

	_, err := s.Run(2, nil)
	if err == nil {
		t.Fatal("Expected Run to fail on batch error")
	}
	// The failure happens in epoch 1: nothing may have been logged.
	tl, err := monitor.LoadLog(cfg.Paths.LogsDir)
	if err != nil {
		t.Fatalf("LoadLog failed: %v", err)
	}
	if len(tl.Epochs) != 0 {
		t.Errorf("Expected no epoch records after first-epoch failure, got %v", tl.Epochs)
	}
}

func TestChatFallsBackOnGenerationError(t *testing.T) {
	s, _ := testSession(t, &stubTrainer{loss: 1.0}, &stubEvaluator{})
	s.model.(*stubModel).genErr = fmt.Errorf("simulated generation failure")

	reply := s.Chat("hello")
	if reply != "Something went wrong while generating a reply" {
		t.Errorf("Unexpected fallback reply: %q", reply)
	}
}

func TestChatCleansSpeakerTag(t *testing.T) {
	s, _ := testSession(t, &stubTrainer{loss: 1.0}, &stubEvaluator{})
	s.model.(*stubModel).reply = "context stuff\nSin: hello friend\nmore noise"

	reply := s.Chat("hi")
	if reply != "hello friend" {
		t.Errorf("Expected cleaned reply, got %q", reply)
	}

	recent, err := s.memory.Recent(1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Response != "hello friend" {
		t.Errorf("Interaction not recorded: %+v", recent)
	}
}

func TestTrainingReportNilWhenAbsent(t *testing.T) {
	s, _ := testSession(t, &stubTrainer{loss: 1.0}, &stubEvaluator{})

	tl, err := s.TrainingReport()
	if err != nil {
		t.Fatalf("TrainingReport failed: %v", err)
	}
	if tl != nil {
		t.Errorf("Expected nil report, got %+v", tl)
	}
}

func TestTrainingReportAfterRun(t *testing.T) {
	s, cfg := testSession(t, &stubTrainer{loss: 2.0}, &stubEvaluator{})
	writeConversation(t, cfg)

	if _, err := s.Run(1, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	tl, err := s.TrainingReport()
	if err != nil {
		t.Fatalf("TrainingReport failed: %v", err)
	}
	if tl == nil || len(tl.Epochs) != 1 {
		t.Fatalf("Expected report with 1 epoch, got %+v", tl)
	}
	if tl.RunID == "" {
		t.Error("Expected report stamped with a run ID")
	}
}

func TestTrainingReportSurvivesRestart(t *testing.T) {
	cfg := config.Default(t.TempDir())
	first := testSessionWithConfig(t, cfg, &stubTrainer{loss: 1.0}, &stubEvaluator{})
	writeConversation(t, cfg)

	if _, err := first.Run(1, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A fresh session over the same directories must still see the
	// previous run's log.
	second := testSessionWithConfig(t, cfg, &stubTrainer{loss: 1.0}, &stubEvaluator{})
	tl, err := second.TrainingReport()
	if err != nil {
		t.Fatalf("TrainingReport failed: %v", err)
	}
	if tl == nil || len(tl.Epochs) != 1 {
		t.Fatalf("Expected the previous run's report after restart, got %+v", tl)
	}
}
