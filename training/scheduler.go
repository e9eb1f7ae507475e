package training

import (
	"math"
)

// CosineAnnealingLR anneals the optimizer's learning rate from its
// base value down to etaMin over tMax epochs, following a half cosine.
// Step is called once per completed epoch.
type CosineAnnealingLR struct {
	optimizer Optimizer
	baseLR    float64
	tMax      int
	etaMin    float64
	epoch     int
}

// NewCosineAnnealingLR creates a schedule spanning tMax epochs,
// annealing to zero.
func NewCosineAnnealingLR(optimizer Optimizer, tMax int) *CosineAnnealingLR {
	if tMax <= 0 {
		tMax = 1
	}
	return &CosineAnnealingLR{
		optimizer: optimizer,
		baseLR:    optimizer.GetLR(),
		tMax:      tMax,
	}
}

// Step advances the schedule by one epoch and writes the new learning
// rate into the optimizer.
func (s *CosineAnnealingLR) Step() {
	s.epoch++
	s.optimizer.SetLR(s.lrAt(s.epoch))
}

func (s *CosineAnnealingLR) lrAt(epoch int) float64 {
	if epoch >= s.tMax {
		return s.etaMin
	}
	return s.etaMin + (s.baseLR-s.etaMin)*(1+math.Cos(math.Pi*float64(epoch)/float64(s.tMax)))/2
}

// GetLR returns the learning rate for the current epoch.
func (s *CosineAnnealingLR) GetLR() float64 {
	return s.lrAt(s.epoch)
}
