package training

import (
	"math"
	"testing"

	"github.com/tsawler/dialogtrain/model"
)

func testParams() []*model.Parameter {
	return []*model.Parameter{
		{Name: "w", Shape: []int{2}, Data: []float64{1.0, -1.0}, Grad: []float64{0.5, -0.5}},
	}
}

func TestAdamWStepMovesAgainstGradient(t *testing.T) {
	params := testParams()
	opt := NewAdamW(params, 0.1, 0)

	if err := opt.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if params[0].Data[0] >= 1.0 {
		t.Errorf("Positive gradient should decrease weight, got %f", params[0].Data[0])
	}
	if params[0].Data[1] <= -1.0 {
		t.Errorf("Negative gradient should increase weight, got %f", params[0].Data[1])
	}
}

func TestAdamWWeightDecayShrinksWeights(t *testing.T) {
	// Zero gradients isolate the decay term.
	params := []*model.Parameter{
		{Name: "w", Shape: []int{1}, Data: []float64{2.0}, Grad: []float64{0}},
	}
	opt := NewAdamW(params, 0.1, 0.5)

	if err := opt.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if params[0].Data[0] >= 2.0 {
		t.Errorf("Weight decay should shrink the weight, got %f", params[0].Data[0])
	}
}

func TestAdamWZeroGrad(t *testing.T) {
	params := testParams()
	opt := NewAdamW(params, 0.1, 0)

	// Non-finite gradients from a diverged step must be cleared too.
	params[0].Grad[0] = math.NaN()
	params[0].Grad[1] = math.Inf(1)

	opt.ZeroGrad()
	for _, g := range params[0].Grad {
		if g != 0 {
			t.Errorf("Expected zeroed gradient, got %f", g)
		}
	}
}

func TestAdamWLearningRateAccessors(t *testing.T) {
	opt := NewAdamW(testParams(), 0.1, 0)
	opt.SetLR(0.01)
	if opt.GetLR() != 0.01 {
		t.Errorf("Expected LR 0.01, got %f", opt.GetLR())
	}
}

func TestCosineAnnealingSchedule(t *testing.T) {
	opt := NewAdamW(testParams(), 1.0, 0)
	sched := NewCosineAnnealingLR(opt, 4)

	if sched.GetLR() != 1.0 {
		t.Errorf("Expected base LR before first step, got %f", sched.GetLR())
	}

	// Halfway through, cosine annealing reaches half the base rate.
	sched.Step()
	sched.Step()
	if math.Abs(opt.GetLR()-0.5) > 1e-9 {
		t.Errorf("Expected LR 0.5 at half schedule, got %f", opt.GetLR())
	}

	sched.Step()
	sched.Step()
	if opt.GetLR() != 0 {
		t.Errorf("Expected LR annealed to 0 at schedule end, got %f", opt.GetLR())
	}
}

func TestCosineAnnealingMonotoneDecrease(t *testing.T) {
	opt := NewAdamW(testParams(), 1.0, 0)
	sched := NewCosineAnnealingLR(opt, 10)

	prev := opt.GetLR()
	for i := 0; i < 10; i++ {
		sched.Step()
		if opt.GetLR() > prev {
			t.Fatalf("LR increased at step %d: %f -> %f", i+1, prev, opt.GetLR())
		}
		prev = opt.GetLR()
	}
}
