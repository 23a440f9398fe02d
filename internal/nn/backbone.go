package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// FeatureExtractor turns a stack of frames (n, c, h, w) into one feature
// vector per frame (n, D). A frozen extractor (the ONNX-served backbone)
// reports no params and ignores Backward; the gradient stops at its output.
type FeatureExtractor interface {
	Name() string
	FeatureDim() int
	Forward(frames *Tensor) (*mat.Dense, error)
	Backward(dfeatures *mat.Dense)
	Params() []*Param
}

const convFeatureDim = 64

// ConvBackbone is the trainable per-frame feature extractor: three stride-2
// convolutions with ReLU, then global average pooling. It stands in for a
// fine-tunable pretrained backbone; weights can be preloaded from a
// checkpoint-format file.
type ConvBackbone struct {
	conv1, conv2, conv3 *Conv2d

	mask1, mask2, mask3 []bool
	pooled              *Tensor
}

func NewConvBackbone(rng *rand.Rand) *ConvBackbone {
	return &ConvBackbone{
		conv1: NewConv2d("backbone.conv1", 3, 16, 3, 2, 1, rng),
		conv2: NewConv2d("backbone.conv2", 16, 32, 3, 2, 1, rng),
		conv3: NewConv2d("backbone.conv3", 32, convFeatureDim, 3, 2, 1, rng),
	}
}

func (b *ConvBackbone) Name() string    { return "conv" }
func (b *ConvBackbone) FeatureDim() int { return convFeatureDim }

func (b *ConvBackbone) Forward(frames *Tensor) (*mat.Dense, error) {
	y1 := b.conv1.Forward(frames)
	b.mask1 = reluInPlace(y1.Data)

	y2 := b.conv2.Forward(y1)
	b.mask2 = reluInPlace(y2.Data)

	y3 := b.conv3.Forward(y2)
	b.mask3 = reluInPlace(y3.Data)

	b.pooled = y3
	return globalAvgPool(y3), nil
}

func (b *ConvBackbone) Backward(dfeatures *mat.Dense) {
	dy3 := globalAvgPoolBackward(dfeatures, b.pooled.Shape)
	reluBackward(dy3.Data, b.mask3)

	dy2 := b.conv3.Backward(dy3)
	reluBackward(dy2.Data, b.mask2)

	dy1 := b.conv2.Backward(dy2)
	reluBackward(dy1.Data, b.mask1)

	b.conv1.Backward(dy1)
}

func (b *ConvBackbone) Params() []*Param {
	var params []*Param
	params = append(params, b.conv1.Params()...)
	params = append(params, b.conv2.Params()...)
	params = append(params, b.conv3.Params()...)
	return params
}

func reluInPlace(data []float64) []bool {
	mask := make([]bool, len(data))
	for i, v := range data {
		if v > 0 {
			mask[i] = true
		} else {
			data[i] = 0
		}
	}
	return mask
}

func reluBackward(grad []float64, mask []bool) {
	for i := range grad {
		if !mask[i] {
			grad[i] = 0
		}
	}
}

// globalAvgPool reduces (n, c, h, w) to (n, c).
func globalAvgPool(x *Tensor) *mat.Dense {
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	plane := h * w
	out := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for ch := 0; ch < c; ch++ {
			sum := 0.0
			base := (i*c + ch) * plane
			for p := 0; p < plane; p++ {
				sum += x.Data[base+p]
			}
			row[ch] = sum / float64(plane)
		}
	}
	return out
}

func globalAvgPoolBackward(dy *mat.Dense, shape []int) *Tensor {
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	plane := h * w
	dx := NewTensor(n, c, h, w)
	for i := 0; i < n; i++ {
		row := dy.RawRowView(i)
		for ch := 0; ch < c; ch++ {
			g := row[ch] / float64(plane)
			base := (i*c + ch) * plane
			for p := 0; p < plane; p++ {
				dx.Data[base+p] = g
			}
		}
	}
	return dx
}
