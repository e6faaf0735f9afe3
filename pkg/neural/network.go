// Package neural implements the feed-forward softmax classifier used for
// property prediction. Matrix work is done with gonum; weights serialize to
// JSON so trained models can be persisted as plain artifact files.
package neural

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Adam optimizer constants
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
)

// Config holds the network architecture and training hyperparameters
type Config struct {
	HiddenSizes     []int   `json:"hidden_sizes"`
	LearningRate    float64 `json:"learning_rate"`
	Epochs          int     `json:"epochs"`
	BatchSize       int     `json:"batch_size"`
	ValidationSplit float64 `json:"validation_split"`
}

// DefaultConfig returns the standard architecture: two relu hidden layers of
// 64 and 32 units feeding a softmax output.
func DefaultConfig() Config {
	return Config{
		HiddenSizes:     []int{64, 32},
		LearningRate:    0.001,
		Epochs:          50,
		BatchSize:       32,
		ValidationSplit: 0.2,
	}
}

// layer is one dense layer with its Adam moment state
type layer struct {
	w  *mat.Dense // in x out
	b  []float64
	mw *mat.Dense
	vw *mat.Dense
	mb []float64
	vb []float64
}

// Network is a feed-forward classifier. After training the network is
// read-only: Predict never mutates it, so one loaded instance may be shared
// across concurrent callers.
type Network struct {
	inputSize  int
	outputSize int
	layers     []*layer
}

// New creates an untrained network with He-initialized weights
func New(inputSize, outputSize int, hiddenSizes []int, rng *rand.Rand) (*Network, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("input size must be positive, got %d", inputSize)
	}
	if outputSize <= 0 {
		return nil, fmt.Errorf("output size must be positive, got %d", outputSize)
	}

	sizes := append([]int{inputSize}, hiddenSizes...)
	sizes = append(sizes, outputSize)

	n := &Network{inputSize: inputSize, outputSize: outputSize}
	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]
		data := make([]float64, in*out)
		scale := math.Sqrt(2.0 / float64(in))
		for j := range data {
			data[j] = rng.NormFloat64() * scale
		}
		n.layers = append(n.layers, &layer{
			w:  mat.NewDense(in, out, data),
			b:  make([]float64, out),
			mw: mat.NewDense(in, out, nil),
			vw: mat.NewDense(in, out, nil),
			mb: make([]float64, out),
			vb: make([]float64, out),
		})
	}
	return n, nil
}

// InputSize returns the expected feature vector length
func (n *Network) InputSize() int { return n.inputSize }

// OutputSize returns the number of classes
func (n *Network) OutputSize() int { return n.outputSize }

// Predict runs one forward pass and returns the softmax probabilities
func (n *Network) Predict(x []float64) ([]float64, error) {
	if len(x) != n.inputSize {
		return nil, fmt.Errorf("expected %d features, got %d", n.inputSize, len(x))
	}
	out := n.forward(mat.NewDense(1, n.inputSize, append([]float64(nil), x...)))
	probs := make([]float64, n.outputSize)
	copy(probs, out.RawRowView(0))
	return probs, nil
}

// forward runs the batch through every layer, softmax on the last
func (n *Network) forward(x *mat.Dense) *mat.Dense {
	a := x
	for i, l := range n.layers {
		var z mat.Dense
		z.Mul(a, l.w)
		addBiasRows(&z, l.b)
		if i == len(n.layers)-1 {
			softmaxRows(&z)
		} else {
			reluInPlace(&z)
		}
		a = &z
	}
	return a
}

// FitResult reports the final losses of a training run
type FitResult struct {
	Epochs        int     `json:"epochs"`
	TrainLoss     float64 `json:"train_loss"`
	TrainAccuracy float64 `json:"train_accuracy"`
	ValLoss       float64 `json:"val_loss,omitempty"`
	ValAccuracy   float64 `json:"val_accuracy,omitempty"`
}

// Fit trains the network with minibatch Adam on categorical cross-entropy.
// labels are class indices into [0, OutputSize). Data is shuffled each epoch.
func (n *Network) Fit(x [][]float64, labels []int, cfg Config, rng *rand.Rand) (*FitResult, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("empty training data")
	}
	if len(x) != len(labels) {
		return nil, fmt.Errorf("feature rows and labels differ: %d vs %d", len(x), len(labels))
	}
	for i, row := range x {
		if len(row) != n.inputSize {
			return nil, fmt.Errorf("row %d: expected %d features, got %d", i, n.inputSize, len(row))
		}
	}
	for i, l := range labels {
		if l < 0 || l >= n.outputSize {
			return nil, fmt.Errorf("row %d: label index %d out of range", i, l)
		}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.001
	}

	// Hold out the validation split before training starts
	indices := rng.Perm(len(x))
	valCount := int(float64(len(x)) * cfg.ValidationSplit)
	if valCount >= len(x) {
		valCount = len(x) - 1
	}
	valIdx := indices[:valCount]
	trainIdx := indices[valCount:]

	step := 0
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(trainIdx), func(i, j int) {
			trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i]
		})

		for start := 0; start < len(trainIdx); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(trainIdx) {
				end = len(trainIdx)
			}
			batch := trainIdx[start:end]
			step++
			n.trainBatch(x, labels, batch, cfg.LearningRate, step)
		}
	}

	result := &FitResult{Epochs: cfg.Epochs}
	result.TrainLoss, result.TrainAccuracy = n.evaluate(x, labels, trainIdx)
	if len(valIdx) > 0 {
		result.ValLoss, result.ValAccuracy = n.evaluate(x, labels, valIdx)
	}
	return result, nil
}

// trainBatch runs forward and backward passes for one minibatch and applies
// an Adam update.
func (n *Network) trainBatch(x [][]float64, labels []int, batch []int, lr float64, step int) {
	m := len(batch)
	xb := mat.NewDense(m, n.inputSize, nil)
	yb := mat.NewDense(m, n.outputSize, nil)
	for i, idx := range batch {
		xb.SetRow(i, x[idx])
		yb.Set(i, labels[idx], 1)
	}

	// Forward, keeping every activation for backprop
	activations := []*mat.Dense{xb}
	a := xb
	for i, l := range n.layers {
		var z mat.Dense
		z.Mul(a, l.w)
		addBiasRows(&z, l.b)
		if i == len(n.layers)-1 {
			softmaxRows(&z)
		} else {
			reluInPlace(&z)
		}
		a = &z
		activations = append(activations, a)
	}

	// Softmax + cross-entropy gradient at the output: (P - Y) / m
	delta := &mat.Dense{}
	delta.Sub(activations[len(activations)-1], yb)
	delta.Scale(1/float64(m), delta)

	for i := len(n.layers) - 1; i >= 0; i-- {
		l := n.layers[i]
		prev := activations[i]

		var dw mat.Dense
		dw.Mul(prev.T(), delta)
		db := colSums(delta)

		if i > 0 {
			next := &mat.Dense{}
			next.Mul(delta, l.w.T())
			// Relu derivative gates on the previous activation: it is zero
			// exactly where the activation is zero
			next.Apply(func(r, c int, v float64) float64 {
				if prev.At(r, c) <= 0 {
					return 0
				}
				return v
			}, next)
			delta = next
		}

		adamUpdateDense(l.w, l.mw, l.vw, &dw, lr, step)
		adamUpdateSlice(l.b, l.mb, l.vb, db, lr, step)
	}
}

// evaluate computes mean cross-entropy loss and accuracy over the given rows
func (n *Network) evaluate(x [][]float64, labels []int, idx []int) (loss, accuracy float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	correct := 0
	for _, i := range idx {
		probs, _ := n.Predict(x[i])
		p := probs[labels[i]]
		if p < 1e-12 {
			p = 1e-12
		}
		loss += -math.Log(p)
		if argmax(probs) == labels[i] {
			correct++
		}
	}
	return loss / float64(len(idx)), float64(correct) / float64(len(idx))
}

// adamUpdateDense applies one Adam step to a weight matrix
func adamUpdateDense(w, m, v, grad *mat.Dense, lr float64, step int) {
	wd := w.RawMatrix().Data
	md := m.RawMatrix().Data
	vd := v.RawMatrix().Data
	gd := grad.RawMatrix().Data

	c1 := 1 - math.Pow(adamBeta1, float64(step))
	c2 := 1 - math.Pow(adamBeta2, float64(step))

	for i := range wd {
		g := gd[i]
		md[i] = adamBeta1*md[i] + (1-adamBeta1)*g
		vd[i] = adamBeta2*vd[i] + (1-adamBeta2)*g*g
		mhat := md[i] / c1
		vhat := vd[i] / c2
		wd[i] -= lr * mhat / (math.Sqrt(vhat) + adamEpsilon)
	}
}

// adamUpdateSlice applies one Adam step to a bias vector
func adamUpdateSlice(b, m, v, grad []float64, lr float64, step int) {
	c1 := 1 - math.Pow(adamBeta1, float64(step))
	c2 := 1 - math.Pow(adamBeta2, float64(step))

	for i := range b {
		g := grad[i]
		m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
		v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
		mhat := m[i] / c1
		vhat := v[i] / c2
		b[i] -= lr * mhat / (math.Sqrt(vhat) + adamEpsilon)
	}
}

// addBiasRows adds the bias vector to every row
func addBiasRows(z *mat.Dense, b []float64) {
	r, c := z.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			z.Set(i, j, z.At(i, j)+b[j])
		}
	}
}

// reluInPlace clamps negatives to zero
func reluInPlace(z *mat.Dense) {
	z.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}, z)
}

// softmaxRows applies a numerically stable softmax to each row
func softmaxRows(z *mat.Dense) {
	r, c := z.Dims()
	for i := 0; i < r; i++ {
		maxV := z.At(i, 0)
		for j := 1; j < c; j++ {
			if z.At(i, j) > maxV {
				maxV = z.At(i, j)
			}
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			e := math.Exp(z.At(i, j) - maxV)
			z.Set(i, j, e)
			sum += e
		}
		for j := 0; j < c; j++ {
			z.Set(i, j, z.At(i, j)/sum)
		}
	}
}

// colSums sums each column of a matrix
func colSums(m *mat.Dense) []float64 {
	r, c := m.Dims()
	sums := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sums[j] += m.At(i, j)
		}
	}
	return sums
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// layerJSON is the serialized form of one dense layer
type layerJSON struct {
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Weights []float64 `json:"weights"`
	Biases  []float64 `json:"biases"`
}

// networkJSON is the serialized form of a trained network
type networkJSON struct {
	InputSize  int         `json:"input_size"`
	OutputSize int         `json:"output_size"`
	Layers     []layerJSON `json:"layers"`
}

// MarshalJSON serializes the trained weights. Optimizer state is transient
// and not persisted.
func (n *Network) MarshalJSON() ([]byte, error) {
	out := networkJSON{InputSize: n.inputSize, OutputSize: n.outputSize}
	for _, l := range n.layers {
		r, c := l.w.Dims()
		data := make([]float64, r*c)
		copy(data, l.w.RawMatrix().Data)
		out.Layers = append(out.Layers, layerJSON{
			Rows:    r,
			Cols:    c,
			Weights: data,
			Biases:  append([]float64(nil), l.b...),
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a trained network from its serialized weights
func (n *Network) UnmarshalJSON(data []byte) error {
	var in networkJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to unmarshal network: %w", err)
	}
	if in.InputSize <= 0 || in.OutputSize <= 0 || len(in.Layers) == 0 {
		return fmt.Errorf("invalid serialized network")
	}

	n.inputSize = in.InputSize
	n.outputSize = in.OutputSize
	n.layers = nil
	for i, l := range in.Layers {
		if len(l.Weights) != l.Rows*l.Cols {
			return fmt.Errorf("layer %d: weight count %d does not match %dx%d", i, len(l.Weights), l.Rows, l.Cols)
		}
		if len(l.Biases) != l.Cols {
			return fmt.Errorf("layer %d: bias count %d does not match %d columns", i, len(l.Biases), l.Cols)
		}
		n.layers = append(n.layers, &layer{
			w:  mat.NewDense(l.Rows, l.Cols, append([]float64(nil), l.Weights...)),
			b:  append([]float64(nil), l.Biases...),
			mw: mat.NewDense(l.Rows, l.Cols, nil),
			vw: mat.NewDense(l.Rows, l.Cols, nil),
			mb: make([]float64, l.Cols),
			vb: make([]float64, l.Cols),
		})
	}
	return nil
}
