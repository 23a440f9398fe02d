package nn

import "math"

// Plateau reduces the optimizer's learning rate by a fixed factor once the
// validation loss has gone `patience` epochs without improving.
type Plateau struct {
	opt      *Adam
	patience int
	factor   float64
	minLR    float64

	best float64
	bad  int
}

func NewPlateau(opt *Adam, patience int, factor float64) *Plateau {
	return &Plateau{
		opt:      opt,
		patience: patience,
		factor:   factor,
		best:     math.Inf(1),
	}
}

// Step observes one epoch's validation loss; returns true when the learning
// rate was reduced.
func (p *Plateau) Step(valLoss float64) bool {
	if valLoss < p.best {
		p.best = valLoss
		p.bad = 0
		return false
	}

	p.bad++
	if p.bad <= p.patience {
		return false
	}

	p.bad = 0
	lr := p.opt.LR() * p.factor
	if lr < p.minLR {
		lr = p.minLR
	}
	p.opt.SetLR(lr)
	return true
}
