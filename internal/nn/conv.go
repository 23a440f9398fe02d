package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Conv2d is a 2-d convolution over planar (c, h, w) images, implemented as
// an im2col matrix product so the heavy lifting stays in gonum.
type Conv2d struct {
	InC, OutC, Kernel, Stride, Pad int
	Weight                         *Param // (OutC, InC*K*K)
	Bias                           *Param // (1, OutC)

	// forward caches for the backward pass
	cols                 []*mat.Dense
	inH, inW, outH, outW int
	batch                int
}

func NewConv2d(name string, inC, outC, kernel, stride, pad int, rng *rand.Rand) *Conv2d {
	fanIn := inC * kernel * kernel
	std := math.Sqrt(2.0 / float64(fanIn))
	return &Conv2d{
		InC:    inC,
		OutC:   outC,
		Kernel: kernel,
		Stride: stride,
		Pad:    pad,
		Weight: newParam(name+".weight", outC, fanIn, std, rng),
		Bias:   zeroParam(name+".bias", 1, outC),
	}
}

func (c *Conv2d) outSize(h, w int) (int, int) {
	return (h+2*c.Pad-c.Kernel)/c.Stride + 1, (w+2*c.Pad-c.Kernel)/c.Stride + 1
}

// Forward maps (n, InC, h, w) to (n, OutC, outH, outW).
func (c *Conv2d) Forward(x *Tensor) *Tensor {
	n, h, w := x.Shape[0], x.Shape[2], x.Shape[3]
	outH, outW := c.outSize(h, w)
	c.batch, c.inH, c.inW, c.outH, c.outW = n, h, w, outH, outW
	c.cols = make([]*mat.Dense, n)

	imgLen := c.InC * h * w
	outLen := c.OutC * outH * outW
	out := NewTensor(n, c.OutC, outH, outW)
	bias := c.Bias.W.RawRowView(0)

	for i := 0; i < n; i++ {
		cols := c.im2col(x.Data[i*imgLen : (i+1)*imgLen])
		c.cols[i] = cols

		y := mat.NewDense(c.OutC, outH*outW, out.Data[i*outLen:(i+1)*outLen])
		y.Mul(c.Weight.W, cols)
		for oc := 0; oc < c.OutC; oc++ {
			row := y.RawRowView(oc)
			for j := range row {
				row[j] += bias[oc]
			}
		}
	}
	return out
}

// Backward accumulates weight gradients and returns the input gradient.
func (c *Conv2d) Backward(dy *Tensor) *Tensor {
	outLen := c.OutC * c.outH * c.outW
	imgLen := c.InC * c.inH * c.inW
	dx := NewTensor(c.batch, c.InC, c.inH, c.inW)
	bg := c.Bias.G.RawRowView(0)

	for i := 0; i < c.batch; i++ {
		dyMat := mat.NewDense(c.OutC, c.outH*c.outW, dy.Data[i*outLen:(i+1)*outLen])

		var dw mat.Dense
		dw.Mul(dyMat, c.cols[i].T())
		c.Weight.G.Add(c.Weight.G, &dw)

		for oc := 0; oc < c.OutC; oc++ {
			row := dyMat.RawRowView(oc)
			for j := range row {
				bg[oc] += row[j]
			}
		}

		var dcols mat.Dense
		dcols.Mul(c.Weight.W.T(), dyMat)
		c.col2im(&dcols, dx.Data[i*imgLen:(i+1)*imgLen])
	}
	return dx
}

func (c *Conv2d) Params() []*Param {
	return []*Param{c.Weight, c.Bias}
}

func (c *Conv2d) im2col(img []float64) *mat.Dense {
	k, s, p := c.Kernel, c.Stride, c.Pad
	outHW := c.outH * c.outW
	cols := mat.NewDense(c.InC*k*k, outHW, nil)
	data := cols.RawMatrix().Data

	for ch := 0; ch < c.InC; ch++ {
		plane := img[ch*c.inH*c.inW:]
		for ki := 0; ki < k; ki++ {
			for kj := 0; kj < k; kj++ {
				row := (ch*k+ki)*k + kj
				dst := data[row*outHW:]
				for oy := 0; oy < c.outH; oy++ {
					iy := oy*s + ki - p
					for ox := 0; ox < c.outW; ox++ {
						ix := ox*s + kj - p
						v := 0.0
						if iy >= 0 && iy < c.inH && ix >= 0 && ix < c.inW {
							v = plane[iy*c.inW+ix]
						}
						dst[oy*c.outW+ox] = v
					}
				}
			}
		}
	}
	return cols
}

func (c *Conv2d) col2im(dcols *mat.Dense, dimg []float64) {
	k, s, p := c.Kernel, c.Stride, c.Pad
	outHW := c.outH * c.outW
	data := dcols.RawMatrix().Data

	for ch := 0; ch < c.InC; ch++ {
		plane := dimg[ch*c.inH*c.inW:]
		for ki := 0; ki < k; ki++ {
			for kj := 0; kj < k; kj++ {
				row := (ch*k+ki)*k + kj
				src := data[row*outHW:]
				for oy := 0; oy < c.outH; oy++ {
					iy := oy*s + ki - p
					if iy < 0 || iy >= c.inH {
						continue
					}
					for ox := 0; ox < c.outW; ox++ {
						ix := ox*s + kj - p
						if ix < 0 || ix >= c.inW {
							continue
						}
						plane[iy*c.inW+ix] += src[oy*c.outW+ox]
					}
				}
			}
		}
	}
}
