package mlp

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// network is a dense ReLU stack with a softmax output. All weights and biases live in one
// flat parameter vector so the optimizer can treat them as a single point.
type network struct {
	sizes   []int
	offsets []layerOffset
	nParams int
}

type layerOffset struct {
	w, b int
}

func newNetwork(sizes []int) *network {
	n := &network{sizes: sizes}
	off := 0
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		n.offsets = append(n.offsets, layerOffset{w: off, b: off + in*out})
		off += in*out + out
	}
	n.nParams = off
	return n
}

func (n *network) layers() int { return len(n.sizes) - 1 }

func (n *network) weightSlice(params []float64, l int) []float64 {
	o := n.offsets[l]
	return params[o.w : o.w+n.sizes[l]*n.sizes[l+1]]
}

func (n *network) weights(params []float64, l int) *mat.Dense {
	return mat.NewDense(n.sizes[l], n.sizes[l+1], n.weightSlice(params, l))
}

func (n *network) bias(params []float64, l int) []float64 {
	o := n.offsets[l]
	return params[o.b : o.b+n.sizes[l+1]]
}

// initParams draws Glorot-uniform weights and biases.
func (n *network) initParams(seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	params := make([]float64, n.nParams)
	for l := 0; l < n.layers(); l++ {
		bound := math.Sqrt(6 / float64(n.sizes[l]+n.sizes[l+1]))
		for _, s := range [][]float64{n.weightSlice(params, l), n.bias(params, l)} {
			for i := range s {
				s[i] = (2*rng.Float64() - 1) * bound
			}
		}
	}
	return params
}

// forward returns the input followed by each layer's output. Hidden outputs are
// post-ReLU; the last entry holds raw logits.
func (n *network) forward(params []float64, x *mat.Dense) []*mat.Dense {
	acts := make([]*mat.Dense, n.layers()+1)
	acts[0] = x
	for l := 0; l < n.layers(); l++ {
		b := n.bias(params, l)
		hidden := l < n.layers()-1
		z := new(mat.Dense)
		z.Mul(acts[l], n.weights(params, l))
		z.Apply(func(_, j int, v float64) float64 {
			v += b[j]
			if hidden && v < 0 {
				return 0
			}
			return v
		}, z)
		acts[l+1] = z
	}
	return acts
}

// objective returns mean cross-entropy plus an L2 penalty of alpha/(2n)·‖W‖². When grad
// is non-nil it receives the gradient with respect to params.
func (n *network) objective(params, grad []float64, x *mat.Dense, labels []int, alpha float64) float64 {
	rows, _ := x.Dims()
	acts := n.forward(params, x)
	out := acts[len(acts)-1]
	scale := 1 / float64(rows)

	loss := 0.0
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		peak := floats.Max(row)
		sum := 0.0
		zy := row[labels[i]] - peak
		for j, v := range row {
			row[j] = math.Exp(v - peak)
			sum += row[j]
		}
		loss -= zy - math.Log(sum)
		floats.Scale(1/sum, row)
	}
	loss *= scale

	penalty := 0.0
	for l := 0; l < n.layers(); l++ {
		w := n.weightSlice(params, l)
		penalty += floats.Dot(w, w)
	}
	loss += 0.5 * alpha * scale * penalty

	if grad == nil {
		return loss
	}

	// out now holds probabilities; turn it into dL/dz for the output layer.
	delta := out
	for i := 0; i < rows; i++ {
		delta.Set(i, labels[i], delta.At(i, labels[i])-1)
	}
	delta.Scale(scale, delta)

	for l := n.layers() - 1; l >= 0; l-- {
		in, width := n.sizes[l], n.sizes[l+1]
		o := n.offsets[l]
		gw := mat.NewDense(in, width, grad[o.w:o.w+in*width])
		gw.Mul(acts[l].T(), delta)
		floats.AddScaled(grad[o.w:o.w+in*width], alpha*scale, n.weightSlice(params, l))

		gb := grad[o.b : o.b+width]
		for j := range gb {
			gb[j] = 0
		}
		for i := 0; i < rows; i++ {
			floats.Add(gb, delta.RawRowView(i))
		}

		if l == 0 {
			break
		}
		prev := acts[l]
		next := new(mat.Dense)
		next.Mul(delta, n.weights(params, l).T())
		next.Apply(func(i, j int, v float64) float64 {
			if prev.At(i, j) <= 0 {
				return 0
			}
			return v
		}, next)
		delta = next
	}
	return loss
}

// argmax returns, per row of logits, the index of the largest value.
func argmax(logits *mat.Dense) []int {
	rows, _ := logits.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		out[i] = floats.MaxIdx(logits.RawRowView(i))
	}
	return out
}
