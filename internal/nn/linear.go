package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Linear is a fully connected layer y = xW + b.
type Linear struct {
	In, Out int
	Weight  *Param
	Bias    *Param

	x *mat.Dense // cached forward input
}

func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	std := math.Sqrt(2.0 / float64(in))
	return &Linear{
		In:     in,
		Out:    out,
		Weight: newParam(name+".weight", in, out, std, rng),
		Bias:   zeroParam(name+".bias", 1, out),
	}
}

func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	l.x = x
	n, _ := x.Dims()
	y := mat.NewDense(n, l.Out, nil)
	y.Mul(x, l.Weight.W)

	bias := l.Bias.W.RawRowView(0)
	for i := 0; i < n; i++ {
		row := y.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
	return y
}

func (l *Linear) Backward(dy *mat.Dense) *mat.Dense {
	var dw mat.Dense
	dw.Mul(l.x.T(), dy)
	l.Weight.G.Add(l.Weight.G, &dw)

	n, _ := dy.Dims()
	bg := l.Bias.G.RawRowView(0)
	for i := 0; i < n; i++ {
		row := dy.RawRowView(i)
		for j := range row {
			bg[j] += row[j]
		}
	}

	dx := mat.NewDense(n, l.In, nil)
	dx.Mul(dy, l.Weight.W.T())
	return dx
}

func (l *Linear) Params() []*Param {
	return []*Param{l.Weight, l.Bias}
}
