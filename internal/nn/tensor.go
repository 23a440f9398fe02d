package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense n-d array; 4-d (n, c, h, w) for image batches.
type Tensor struct {
	Data  []float64
	Shape []int
}

func NewTensor(shape ...int) *Tensor {
	size := 1
	for _, s := range shape {
		size *= s
	}
	return &Tensor{Data: make([]float64, size), Shape: shape}
}

// Param is one named trainable weight matrix with its gradient accumulator.
type Param struct {
	Name string
	W    *mat.Dense
	G    *mat.Dense
}

// newParam draws the weight from N(0, std²).
func newParam(name string, rows, cols int, std float64, rng *rand.Rand) *Param {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
	return &Param{
		Name: name,
		W:    mat.NewDense(rows, cols, data),
		G:    mat.NewDense(rows, cols, nil),
	}
}

func zeroParam(name string, rows, cols int) *Param {
	return &Param{
		Name: name,
		W:    mat.NewDense(rows, cols, nil),
		G:    mat.NewDense(rows, cols, nil),
	}
}
