package training

import (
	"math"

	"github.com/tsawler/dialogtrain/model"
)

// Optimizer defines the methods that all optimizers must implement.
type Optimizer interface {
	Step() error      // Updates model parameters based on gradients
	ZeroGrad()        // Resets gradients to zero for all parameters
	GetLR() float64   // Gets current learning rate
	SetLR(lr float64) // Sets learning rate
}

// AdamW implements Adam with decoupled weight decay.
type AdamW struct {
	parameters   []*model.Parameter
	learningRate float64
	beta1        float64
	beta2        float64
	epsilon      float64
	weightDecay  float64

	step int
	m    [][]float64 // first moment per parameter
	v    [][]float64 // second moment per parameter
}

// NewAdamW creates an AdamW optimizer over the given parameters with
// standard Adam moment coefficients.
func NewAdamW(parameters []*model.Parameter, lr, weightDecay float64) *AdamW {
	opt := &AdamW{
		parameters:   parameters,
		learningRate: lr,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-8,
		weightDecay:  weightDecay,
		m:            make([][]float64, len(parameters)),
		v:            make([][]float64, len(parameters)),
	}
	for i, p := range parameters {
		opt.m[i] = make([]float64, len(p.Data))
		opt.v[i] = make([]float64, len(p.Data))
	}
	return opt
}

// Step performs a single optimization step. Weight decay is applied
// directly to the weights, decoupled from the gradient moments.
func (a *AdamW) Step() error {
	a.step++
	bc1 := 1 - math.Pow(a.beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.beta2, float64(a.step))

	for i, p := range a.parameters {
		m, v := a.m[i], a.v[i]
		for j, g := range p.Grad {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g

			mHat := m[j] / bc1
			vHat := v[j] / bc2

			p.Data[j] -= a.learningRate * (mHat/(math.Sqrt(vHat)+a.epsilon) + a.weightDecay*p.Data[j])
		}
	}
	return nil
}

// ZeroGrad resets gradients to zero for all parameters.
func (a *AdamW) ZeroGrad() {
	for _, p := range a.parameters {
		p.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *AdamW) GetLR() float64 {
	return a.learningRate
}

// SetLR sets the learning rate.
func (a *AdamW) SetLR(lr float64) {
	a.learningRate = lr
}
