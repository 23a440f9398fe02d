package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RNN is a single-layer tanh recurrence over a feature sequence:
// h_t = tanh(x_t Wx + h_{t-1} Wh + b). Only the last hidden state is
// exposed; Backward runs full BPTT over the cached steps.
type RNN struct {
	In, Hidden int
	Wx         *Param // (In, Hidden)
	Wh         *Param // (Hidden, Hidden)
	Bias       *Param // (1, Hidden)

	xs []*mat.Dense // inputs per step (n, In)
	hs []*mat.Dense // hidden states h_0..h_T (n, Hidden)
}

func NewRNN(name string, in, hidden int, rng *rand.Rand) *RNN {
	return &RNN{
		In:     in,
		Hidden: hidden,
		Wx:     newParam(name+".wx", in, hidden, math.Sqrt(1.0/float64(in)), rng),
		Wh:     newParam(name+".wh", hidden, hidden, math.Sqrt(1.0/float64(hidden)), rng),
		Bias:   zeroParam(name+".bias", 1, hidden),
	}
}

// Forward consumes the sequence in temporal order and returns h_T.
func (r *RNN) Forward(xs []*mat.Dense) *mat.Dense {
	n, _ := xs[0].Dims()
	h := mat.NewDense(n, r.Hidden, nil)

	r.xs = xs
	r.hs = make([]*mat.Dense, 0, len(xs)+1)
	r.hs = append(r.hs, h)

	bias := r.Bias.W.RawRowView(0)
	for _, x := range xs {
		a := mat.NewDense(n, r.Hidden, nil)
		a.Mul(x, r.Wx.W)

		var rec mat.Dense
		rec.Mul(h, r.Wh.W)
		a.Add(a, &rec)

		for i := 0; i < n; i++ {
			row := a.RawRowView(i)
			for j := range row {
				row[j] = math.Tanh(row[j] + bias[j])
			}
		}
		h = a
		r.hs = append(r.hs, h)
	}
	return h
}

// Backward takes the gradient at h_T and returns the per-step input
// gradients, accumulating weight gradients along the way.
func (r *RNN) Backward(dhLast *mat.Dense) []*mat.Dense {
	n, _ := dhLast.Dims()
	steps := len(r.xs)
	dxs := make([]*mat.Dense, steps)

	dh := mat.NewDense(n, r.Hidden, nil)
	dh.Copy(dhLast)
	bg := r.Bias.G.RawRowView(0)

	for t := steps - 1; t >= 0; t-- {
		// through tanh: da = dh * (1 - h_t²)
		da := mat.NewDense(n, r.Hidden, nil)
		h := r.hs[t+1]
		for i := 0; i < n; i++ {
			dhRow := dh.RawRowView(i)
			hRow := h.RawRowView(i)
			daRow := da.RawRowView(i)
			for j := range daRow {
				daRow[j] = dhRow[j] * (1 - hRow[j]*hRow[j])
			}
		}

		var dwx mat.Dense
		dwx.Mul(r.xs[t].T(), da)
		r.Wx.G.Add(r.Wx.G, &dwx)

		var dwh mat.Dense
		dwh.Mul(r.hs[t].T(), da)
		r.Wh.G.Add(r.Wh.G, &dwh)

		for i := 0; i < n; i++ {
			row := da.RawRowView(i)
			for j := range row {
				bg[j] += row[j]
			}
		}

		dx := mat.NewDense(n, r.In, nil)
		dx.Mul(da, r.Wx.W.T())
		dxs[t] = dx

		dh = mat.NewDense(n, r.Hidden, nil)
		dh.Mul(da, r.Wh.W.T())
	}
	return dxs
}

func (r *RNN) Params() []*Param {
	return []*Param{r.Wx, r.Wh, r.Bias}
}
