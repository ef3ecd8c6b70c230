package model

import (
	"fmt"
	"sync"

	"github.com/mrcloudchase/inference-runtime/gguf"
)

// Weights is the named-tensor registry a forward pass reads from. Tensor
// bytes are dequantized to f32 on first access and cached for the life of
// the model; this avoids paying the dequantization cost for tensors a given
// run never touches (e.g. output.weight when tied to token_embd.weight).
type Weights struct {
	file *gguf.File

	mu    sync.Mutex
	cache map[string][]float32
}

// NewWeights wraps a parsed GGUF file as a lazy weight registry.
func NewWeights(f *gguf.File) *Weights {
	return &Weights{file: f, cache: make(map[string][]float32)}
}

// NewWeightsFromMap builds a Weights registry directly from pre-dequantized
// tensors, for tests and fixtures that have no backing GGUF file.
func NewWeightsFromMap(tensors map[string][]float32) *Weights {
	cache := make(map[string][]float32, len(tensors))
	for k, v := range tensors {
		cache[k] = v
	}
	return &Weights{cache: cache}
}

// Get returns the dequantized f32 values of the named tensor, caching the
// result.
func (w *Weights) Get(name string) ([]float32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if v, ok := w.cache[name]; ok {
		return v, nil
	}
	if w.file == nil {
		return nil, &gguf.TensorNotFoundError{Name: name}
	}
	v, err := w.file.Dequantize(name)
	if err != nil {
		return nil, err
	}
	w.cache[name] = v
	return v, nil
}

// Has reports whether the underlying GGUF file declares a tensor by this
// name, without dequantizing it.
func (w *Weights) Has(name string) bool {
	if w.file == nil {
		_, ok := w.cache[name]
		return ok
	}
	_, err := w.file.TensorInfos.Get(name)
	return err == nil
}

// LayerName builds the blk.<i>.<suffix> tensor name used for per-layer
// weights.
func LayerName(layer int, suffix string) string {
	return fmt.Sprintf("blk.%d.%s", layer, suffix)
}

// Names of the whole-model tensors the forward pass reads directly.
const (
	TensorTokenEmbedding = "token_embd.weight"
	TensorOutputNorm     = "output_norm.weight"
	TensorOutput         = "output.weight"
)

// Output returns the output projection weight, tying it to the token
// embedding matrix (duplicating the buffer) when the model carries no
// separate output.weight tensor.
func (w *Weights) Output() ([]float32, error) {
	if w.Has(TensorOutput) {
		return w.Get(TensorOutput)
	}
	embd, err := w.Get(TensorTokenEmbedding)
	if err != nil {
		return nil, err
	}
	dup := make([]float32, len(embd))
	copy(dup, embd)
	return dup, nil
}
