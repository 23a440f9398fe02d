package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCrossEntropyUniformLogits(t *testing.T) {
	logits := mat.NewDense(2, 4, nil)

	loss, grad, err := CrossEntropy(logits, []int{0, 3})
	require.NoError(t, err)

	assert.InDelta(t, math.Log(4), loss, 1e-12)

	// each gradient row sums to zero: softmax mass minus the one-hot target
	for i := 0; i < 2; i++ {
		sum := 0.0
		for _, v := range grad.RawRowView(i) {
			sum += v
		}
		assert.InDelta(t, 0, sum, 1e-12)
	}
}

func TestCrossEntropyPrefersTrueClass(t *testing.T) {
	logits := mat.NewDense(1, 3, []float64{5, 0, 0})

	confident, _, err := CrossEntropy(logits, []int{0})
	require.NoError(t, err)
	wrong, _, err := CrossEntropy(logits, []int{1})
	require.NoError(t, err)

	assert.Less(t, confident, wrong)
}

func TestCrossEntropyNumericallyStable(t *testing.T) {
	logits := mat.NewDense(1, 2, []float64{1000, -1000})

	loss, grad, err := CrossEntropy(logits, []int{0})
	require.NoError(t, err)

	assert.False(t, math.IsNaN(loss))
	assert.False(t, math.IsInf(loss, 0))
	assert.InDelta(t, 0, loss, 1e-9)
	assert.False(t, math.IsNaN(grad.At(0, 1)))
}

func TestCrossEntropyRejectsBadLabels(t *testing.T) {
	logits := mat.NewDense(2, 3, nil)

	_, _, err := CrossEntropy(logits, []int{0})
	assert.Error(t, err, "label count mismatch")

	_, _, err = CrossEntropy(logits, []int{0, 3})
	assert.Error(t, err, "label out of range")

	_, _, err = CrossEntropy(logits, []int{0, -1})
	assert.Error(t, err, "negative label")
}

func TestArgmax(t *testing.T) {
	logits := mat.NewDense(3, 3, []float64{
		1, 2, 0,
		9, 1, 1,
		0, 0, 5,
	})
	assert.Equal(t, []int{1, 0, 2}, Argmax(logits))
}
