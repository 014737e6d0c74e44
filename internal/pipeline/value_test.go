package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	t.Parallel()

	t.Run("Nil", func(t *testing.T) {
		assert.Equal(t, map[string]any{"type": "none"}, Describe(nil))
	})
	t.Run("Scalars", func(t *testing.T) {
		assert.Equal(t, map[string]any{"type": "str", "value": "hello"}, Describe(Text("hello")))
		assert.Equal(t, map[string]any{"type": "int", "value": int64(42)}, Describe(Int(42)))
		assert.Equal(t, map[string]any{"type": "float", "value": 1.5}, Describe(Float(1.5)))
		assert.Equal(t, map[string]any{"type": "bool", "value": true}, Describe(Bool(true)))
	})
	t.Run("Record", func(t *testing.T) {
		d := Describe(Record{"beta": 1, "alpha": 2})
		assert.Equal(t, "dict", d["type"])
		assert.Equal(t, []string{"alpha", "beta"}, d["keys"])
		assert.Equal(t, 2, d["size"])
	})
	t.Run("List", func(t *testing.T) {
		d := Describe(List{Text("a"), Int(1)})
		assert.Equal(t, "list", d["type"])
		assert.Equal(t, 2, d["length"])
	})
	t.Run("Tensor", func(t *testing.T) {
		tensor := NewTensor([]int{2, 2}, DTypeFloat32)
		copy(tensor.Data, []float64{0, 1, 2, 3})

		d := Describe(tensor)
		assert.Equal(t, "ndarray", d["type"])
		assert.Equal(t, []any{2, 2}, d["shape"])
		assert.Equal(t, "float32", d["dtype"])
		assert.Equal(t, 0.0, d["min"])
		assert.Equal(t, 3.0, d["max"])
		assert.Equal(t, 1.5, d["mean"])
	})
}

func TestTensor(t *testing.T) {
	t.Parallel()

	t.Run("NewTensorAllocates", func(t *testing.T) {
		tensor := NewTensor([]int{3, 4, 5}, DTypeFloat32)
		assert.Equal(t, 60, tensor.Size())
		assert.Len(t, tensor.Data, 60)
		assert.Equal(t, 3, tensor.NDim())
	})
	t.Run("At3Set3RoundTrip", func(t *testing.T) {
		tensor := NewTensor([]int{2, 3, 4}, DTypeFloat32)
		tensor.Set3(1, 2, 3, 7.25)
		assert.Equal(t, 7.25, tensor.At3(1, 2, 3))
		assert.Equal(t, 7.25, tensor.Data[(1*3+2)*4+3])
	})
	t.Run("Stats", func(t *testing.T) {
		tensor := NewTensor([]int{4}, DTypeFloat32)
		copy(tensor.Data, []float64{2, -1, 5, 2})

		minVal, maxVal, mean := tensor.Stats()
		assert.Equal(t, -1.0, minVal)
		assert.Equal(t, 5.0, maxVal)
		assert.Equal(t, 2.0, mean)
		assert.Equal(t, 8.0, tensor.Sum())
	})
}

func TestInput(t *testing.T) {
	t.Parallel()

	t.Run("None", func(t *testing.T) {
		in := NoInput()
		assert.True(t, in.IsNone())
		assert.False(t, in.IsList())
		assert.Zero(t, in.Len())
		assert.Nil(t, in.Single())
		assert.Empty(t, in.Values())
	})
	t.Run("Single", func(t *testing.T) {
		in := SingleInput(Text("x"))
		assert.False(t, in.IsNone())
		assert.False(t, in.IsList())
		require.Equal(t, 1, in.Len())
		assert.Equal(t, Text("x"), in.Single())
		assert.Equal(t, []Value{Text("x")}, in.Values())
	})
	t.Run("List", func(t *testing.T) {
		in := ListInput([]Value{Int(1), Int(2)})
		assert.True(t, in.IsList())
		assert.False(t, in.IsNone())
		assert.Equal(t, 2, in.Len())
		assert.Nil(t, in.Single())
		assert.Equal(t, []Value{Int(1), Int(2)}, in.Values())
	})
}
