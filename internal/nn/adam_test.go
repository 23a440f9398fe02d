package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAdamMinimizesQuadratic(t *testing.T) {
	// f(w) = w², df/dw = 2w
	p := &Param{
		Name: "w",
		W:    mat.NewDense(1, 1, []float64{3}),
		G:    mat.NewDense(1, 1, nil),
	}
	opt := NewAdam([]*Param{p}, 0.1)

	for i := 0; i < 200; i++ {
		p.G.Set(0, 0, 2*p.W.At(0, 0))
		opt.Step()
		opt.ZeroGrad()
	}

	assert.InDelta(t, 0, p.W.At(0, 0), 0.05)
}

func TestAdamMovesAgainstGradient(t *testing.T) {
	p := &Param{
		Name: "w",
		W:    mat.NewDense(1, 2, []float64{1, 1}),
		G:    mat.NewDense(1, 2, []float64{0.5, -0.5}),
	}
	opt := NewAdam([]*Param{p}, 0.01)
	opt.Step()

	assert.Less(t, p.W.At(0, 0), 1.0)
	assert.Greater(t, p.W.At(0, 1), 1.0)
}

func TestAdamZeroGrad(t *testing.T) {
	p := &Param{
		Name: "w",
		W:    mat.NewDense(2, 2, nil),
		G:    mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
	}
	opt := NewAdam([]*Param{p}, 0.01)
	opt.ZeroGrad()

	for _, v := range p.G.RawMatrix().Data {
		require.Zero(t, v)
	}
}

func TestPlateauReducesAfterPatience(t *testing.T) {
	opt := NewAdam(nil, 1.0)
	sched := NewPlateau(opt, 2, 0.5)

	assert.False(t, sched.Step(1.0)) // improvement
	assert.False(t, sched.Step(1.1)) // bad 1
	assert.False(t, sched.Step(1.2)) // bad 2
	assert.True(t, sched.Step(1.3))  // bad 3 > patience
	assert.InDelta(t, 0.5, opt.LR(), 1e-12)
}

func TestPlateauResetsOnImprovement(t *testing.T) {
	opt := NewAdam(nil, 1.0)
	sched := NewPlateau(opt, 1, 0.5)

	assert.False(t, sched.Step(1.0))
	assert.False(t, sched.Step(1.5)) // bad 1
	assert.False(t, sched.Step(0.9)) // improvement resets the counter
	assert.False(t, sched.Step(1.5)) // bad 1 again
	assert.InDelta(t, 1.0, opt.LR(), 1e-12)
}
