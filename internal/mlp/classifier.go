package mlp

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Config fixes the classifier architecture and optimizer.
type Config struct {
	HiddenLayers []int
	Alpha        float64
	Tol          float64
	MaxIter      int
	NoChange     int
	Seed         uint64
}

// DefaultConfig is three hidden layers of 30 ReLU units trained with L-BFGS.
func DefaultConfig() Config {
	return Config{
		HiddenLayers: []int{30, 30, 30},
		Alpha:        1e-3,
		Tol:          1e-8,
		MaxIter:      1000,
		NoChange:     100,
		Seed:         1,
	}
}

// Classifier is a multi-layer perceptron over a discrete label set. Every distinct value
// seen in the training labels becomes one class, and Predict only ever returns those.
type Classifier struct {
	cfg     Config
	net     *network
	params  []float64
	classes []float64
	status  optimize.Status
}

// NewClassifier returns an unfitted classifier.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classes returns the sorted label set learned by Fit.
func (c *Classifier) Classes() []float64 {
	return append([]float64(nil), c.classes...)
}

// Status reports how the last optimisation terminated.
func (c *Classifier) Status() optimize.Status { return c.status }

// Fit trains the network on x against labels y.
func (c *Classifier) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return ErrEmptyTraining
	}
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d samples, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	features := len(x[0])
	if features == 0 {
		return ErrNoFeatures
	}
	data, err := flatten(x, features)
	if err != nil {
		return err
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: label %v", ErrNonFinite, v)
		}
	}

	classes, labels := encodeLabels(y)
	if len(classes) < 2 {
		return fmt.Errorf("%w: got %d", ErrSingleClass, len(classes))
	}

	sizes := make([]int, 0, len(c.cfg.HiddenLayers)+2)
	sizes = append(sizes, features)
	sizes = append(sizes, c.cfg.HiddenLayers...)
	sizes = append(sizes, len(classes))
	net := newNetwork(sizes)
	xm := mat.NewDense(len(x), features, data)

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			return net.objective(p, nil, xm, labels, c.cfg.Alpha)
		},
		Grad: func(grad, p []float64) {
			net.objective(p, grad, xm, labels, c.cfg.Alpha)
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: c.cfg.Tol,
		MajorIterations:   c.cfg.MaxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   c.cfg.Tol,
			Iterations: c.cfg.NoChange,
		},
	}

	x0 := net.initParams(c.cfg.Seed)
	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if result == nil {
		return fmt.Errorf("mlp: optimise: %w", err)
	}
	// Line-search failures still leave a usable point; only a non-finite one is fatal.
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: optimiser diverged", ErrNonFinite)
		}
	}

	c.net = net
	c.params = result.X
	c.classes = classes
	c.status = result.Status
	return nil
}

// Predict returns one learned class per row of x.
func (c *Classifier) Predict(x [][]float64) ([]float64, error) {
	if c.net == nil {
		return nil, ErrNotFitted
	}
	if len(x) == 0 {
		return []float64{}, nil
	}
	features := c.net.sizes[0]
	if len(x[0]) != features {
		return nil, fmt.Errorf("%w: expected %d features, got %d", ErrShapeMismatch, features, len(x[0]))
	}
	data, err := flatten(x, features)
	if err != nil {
		return nil, err
	}
	acts := c.net.forward(c.params, mat.NewDense(len(x), features, data))
	idx := argmax(acts[len(acts)-1])
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = c.classes[k]
	}
	return out, nil
}

func flatten(rows [][]float64, width int) ([]float64, error) {
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %d", ErrNonFinite, i)
			}
		}
		data = append(data, row...)
	}
	return data, nil
}

func encodeLabels(y []float64) ([]float64, []int) {
	set := make(map[float64]struct{}, len(y))
	for _, v := range y {
		set[v] = struct{}{}
	}
	classes := make([]float64, 0, len(set))
	for v := range set {
		classes = append(classes, v)
	}
	sort.Float64s(classes)
	index := make(map[float64]int, len(classes))
	for i, v := range classes {
		index[v] = i
	}
	labels := make([]int, len(y))
	for i, v := range y {
		labels[i] = index[v]
	}
	return classes, labels
}
