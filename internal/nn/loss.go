package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CrossEntropy computes mean softmax cross-entropy of logits (n, k) against
// integer labels and the gradient with respect to the logits.
func CrossEntropy(logits *mat.Dense, labels []int) (float64, *mat.Dense, error) {
	n, k := logits.Dims()
	if len(labels) != n {
		return 0, nil, fmt.Errorf("cross entropy: %d labels for %d logit rows", len(labels), n)
	}

	grad := mat.NewDense(n, k, nil)
	loss := 0.0
	for i := 0; i < n; i++ {
		label := labels[i]
		if label < 0 || label >= k {
			return 0, nil, fmt.Errorf("cross entropy: label %d out of range [0,%d)", label, k)
		}

		row := logits.RawRowView(i)
		maxv := row[0]
		for _, v := range row[1:] {
			if v > maxv {
				maxv = v
			}
		}
		sum := 0.0
		for _, v := range row {
			sum += math.Exp(v - maxv)
		}
		logSum := maxv + math.Log(sum)
		loss += logSum - row[label]

		gRow := grad.RawRowView(i)
		for j, v := range row {
			gRow[j] = math.Exp(v-logSum) / float64(n)
		}
		gRow[label] -= 1.0 / float64(n)
	}

	return loss / float64(n), grad, nil
}

// Argmax returns the predicted class per row of a logits matrix.
func Argmax(logits *mat.Dense) []int {
	n, _ := logits.Dims()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		row := logits.RawRowView(i)
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}
