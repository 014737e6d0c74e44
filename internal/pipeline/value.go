package pipeline

import (
	"sort"

	"github.com/samber/lo"
)

// Value is the runtime data flowing along pipeline edges. The engine never
// interprets values; it only assembles, passes and describes them.
type Value interface {
	// Describe returns the JSON-friendly snapshot used in execution
	// summaries.
	Describe() map[string]any
}

// Describe snapshots any value, treating nil as the none sentinel.
func Describe(v Value) map[string]any {
	if v == nil {
		return map[string]any{"type": "none"}
	}
	return v.Describe()
}

// Text is a plain string value.
type Text string

func (t Text) Describe() map[string]any {
	return map[string]any{"type": "str", "value": string(t)}
}

// Int is an integer scalar value.
type Int int64

func (i Int) Describe() map[string]any {
	return map[string]any{"type": "int", "value": int64(i)}
}

// Float is a floating-point scalar value.
type Float float64

func (f Float) Describe() map[string]any {
	return map[string]any{"type": "float", "value": float64(f)}
}

// Bool is a boolean scalar value.
type Bool bool

func (b Bool) Describe() map[string]any {
	return map[string]any{"type": "bool", "value": bool(b)}
}

// Record is a string-keyed mapping value, produced by descriptor-style nodes.
type Record map[string]any

func (r Record) Describe() map[string]any {
	keys := lo.Keys(r)
	sort.Strings(keys)
	return map[string]any{"type": "dict", "keys": keys, "size": len(r)}
}

// List is an ordered collection of values.
type List []Value

func (l List) Describe() map[string]any {
	return map[string]any{"type": "list", "length": len(l)}
}

// Tensor dtype tokens.
const (
	DTypeFloat32 = "float32"
	DTypeUint8   = "uint8"
)

// Tensor is an n-dimensional numeric array in row-major layout. DType is
// metadata describing the logical element type; storage is always float64.
type Tensor struct {
	Shape []int
	Data  []float64
	DType string
}

// NewTensor allocates a zero-filled tensor of the given shape.
func NewTensor(shape []int, dtype string) *Tensor {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, size),
		DType: dtype,
	}
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	size := 1
	for _, dim := range t.Shape {
		size *= dim
	}
	return size
}

// NDim returns the number of dimensions.
func (t *Tensor) NDim() int {
	return len(t.Shape)
}

// At3 reads the element at (c, y, x) of a rank-3 tensor.
func (t *Tensor) At3(c, y, x int) float64 {
	return t.Data[(c*t.Shape[1]+y)*t.Shape[2]+x]
}

// Set3 writes the element at (c, y, x) of a rank-3 tensor.
func (t *Tensor) Set3(c, y, x int, v float64) {
	t.Data[(c*t.Shape[1]+y)*t.Shape[2]+x] = v
}

// Stats returns the minimum, maximum and mean over all elements. An empty
// tensor yields zeros.
func (t *Tensor) Stats() (minVal, maxVal, mean float64) {
	if len(t.Data) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal = t.Data[0], t.Data[0]
	var sum float64
	for _, v := range t.Data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		sum += v
	}
	return minVal, maxVal, sum / float64(len(t.Data))
}

// Sum returns the total of all elements.
func (t *Tensor) Sum() float64 {
	var sum float64
	for _, v := range t.Data {
		sum += v
	}
	return sum
}

func (t *Tensor) Describe() map[string]any {
	minVal, maxVal, mean := t.Stats()
	return map[string]any{
		"type":  "ndarray",
		"shape": lo.ToAnySlice(t.Shape),
		"dtype": t.DType,
		"min":   minVal,
		"max":   maxVal,
		"mean":  mean,
	}
}

// Input carries the assembled predecessor outputs for one node invocation:
// absent for zero predecessors, a single direct value for one, and an ordered
// list for two or more.
type Input struct {
	values []Value
	list   bool
}

// NoInput is the absent-input sentinel for source nodes.
func NoInput() Input {
	return Input{}
}

// SingleInput wraps the sole predecessor's output.
func SingleInput(v Value) Input {
	return Input{values: []Value{v}}
}

// ListInput wraps multiple predecessor outputs in predecessor order.
func ListInput(vs []Value) Input {
	return Input{values: vs, list: true}
}

// IsNone reports whether no input was assembled.
func (in Input) IsNone() bool {
	return !in.list && len(in.values) == 0
}

// IsList reports whether the input is an ordered list of predecessor outputs.
func (in Input) IsList() bool {
	return in.list
}

// Len returns the number of carried values.
func (in Input) Len() int {
	return len(in.values)
}

// Single returns the direct value, or nil when the input is absent or a list.
func (in Input) Single() Value {
	if in.list || len(in.values) != 1 {
		return nil
	}
	return in.values[0]
}

// Values returns the carried values; a single direct value yields a
// one-element slice.
func (in Input) Values() []Value {
	return in.values
}
