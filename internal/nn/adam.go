package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam with AMSGrad, matching the optimizer the models were tuned with.
type Adam struct {
	params []*Param

	lr      float64
	beta1   float64
	beta2   float64
	eps     float64
	amsgrad bool

	t    int
	m    []*mat.Dense
	v    []*mat.Dense
	vmax []*mat.Dense
}

func NewAdam(params []*Param, lr float64) *Adam {
	a := &Adam{
		params:  params,
		lr:      lr,
		beta1:   0.9,
		beta2:   0.999,
		eps:     1e-8,
		amsgrad: true,
		m:       make([]*mat.Dense, len(params)),
		v:       make([]*mat.Dense, len(params)),
		vmax:    make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		r, c := p.W.Dims()
		a.m[i] = mat.NewDense(r, c, nil)
		a.v[i] = mat.NewDense(r, c, nil)
		a.vmax[i] = mat.NewDense(r, c, nil)
	}
	return a
}

func (a *Adam) LR() float64      { return a.lr }
func (a *Adam) SetLR(lr float64) { a.lr = lr }

// Step applies one update from the accumulated gradients.
func (a *Adam) Step() {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for i, p := range a.params {
		w := p.W.RawMatrix().Data
		g := p.G.RawMatrix().Data
		m := a.m[i].RawMatrix().Data
		v := a.v[i].RawMatrix().Data
		vmax := a.vmax[i].RawMatrix().Data

		for j := range w {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g[j]
			v[j] = a.beta2*v[j] + (1-a.beta2)*g[j]*g[j]

			mhat := m[j] / bc1
			var denom float64
			if a.amsgrad {
				if v[j] > vmax[j] {
					vmax[j] = v[j]
				}
				denom = math.Sqrt(vmax[j]/bc2) + a.eps
			} else {
				denom = math.Sqrt(v[j]/bc2) + a.eps
			}
			w[j] -= a.lr * mhat / denom
		}
	}
}

// ZeroGrad clears all gradient accumulators.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		g := p.G.RawMatrix().Data
		for j := range g {
			g[j] = 0
		}
	}
}
