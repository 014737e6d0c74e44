package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Func is the callback invoked for one node: it receives the assembled input
// and the node's params and returns the node's output value.
type Func func(in Input, params map[string]any) (Value, error)

// Unbounded marks a kind with no upper arity limit.
const Unbounded = -1

// Kind declares a node kind: a named callback with arity constraints.
// Kinds are immutable after registration.
type Kind struct {
	Name      string
	Fn        Func
	MinInputs int
	MaxInputs int
}

// ValidateArity checks an in-degree against the kind's bounds.
func (k *Kind) ValidateArity(n int, nodeID string) error {
	if n < k.MinInputs {
		return errorf("Node '%s' (kind='%s') expects >= %d input(s); got %d.", nodeID, k.Name, k.MinInputs, n)
	}
	if k.MaxInputs != Unbounded && n > k.MaxInputs {
		return errorf("Node '%s' (kind='%s') expects <= %d input(s); got %d.", nodeID, k.Name, k.MaxInputs, n)
	}
	return nil
}

// Registry maps kind names to their declarations. Registration happens once
// at startup; lookups are read-only thereafter.
type Registry struct {
	kinds map[string]*Kind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: map[string]*Kind{}}
}

// Register adds a kind, rejecting duplicate names.
func (r *Registry) Register(k *Kind) error {
	if _, ok := r.kinds[k.Name]; ok {
		return errorf("node kind '%s' is already registered", k.Name)
	}
	r.kinds[k.Name] = k
	return nil
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (*Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// Names returns the registered kind names in sorted order.
func (r *Registry) Names() []string {
	names := lo.Keys(r.kinds)
	sort.Strings(names)
	return names
}

var defaultRegistry = newBuiltinRegistry()

// DefaultRegistry returns the process-wide registry preloaded with the
// built-in kinds. Additional kinds may be registered at startup.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func newBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, k := range []*Kind{
		{Name: "identity", Fn: fnIdentity, MinInputs: 1, MaxInputs: 1},
		{Name: "dataset", Fn: fnDataset, MinInputs: 0, MaxInputs: 0},
		{Name: "concat", Fn: fnConcat, MinInputs: 2, MaxInputs: Unbounded},
		{Name: "segmentation", Fn: fnSegmentation, MinInputs: 1, MaxInputs: 1},
		{Name: "filter", Fn: fnFilter, MinInputs: 1, MaxInputs: 1},
		{Name: "structural-descriptor", Fn: fnStructuralDescriptor, MinInputs: 1, MaxInputs: 1},
		{Name: "simulation", Fn: fnSimulation, MinInputs: 1, MaxInputs: 1},
		{Name: "figure", Fn: fnFigure, MinInputs: 1, MaxInputs: 1},
		{Name: "text", Fn: fnText, MinInputs: 1, MaxInputs: Unbounded},
	} {
		if err := r.Register(k); err != nil {
			panic(err)
		}
	}
	return r
}

// fnIdentity passes the single input through unchanged.
func fnIdentity(in Input, _ map[string]any) (Value, error) {
	return in.Single(), nil
}

// fnDataset generates a deterministic random rank-3 tensor, float32-ranged
// in [0, 1), seeded by params.seed.
func fnDataset(_ Input, params map[string]any) (Value, error) {
	shape, err := paramShape(params, "shape", []int{6, 64, 64})
	if err != nil {
		return nil, err
	}
	seed, err := paramInt(params, "seed", 0, "seed must be an integer")
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	t := NewTensor(shape, DTypeFloat32)
	for i := range t.Data {
		t.Data[i] = float64(rng.Float32())
	}
	return t, nil
}

// fnConcat concatenates the input tensors along axis 0.
func fnConcat(in Input, _ map[string]any) (Value, error) {
	if !in.IsList() || in.Len() < 2 {
		return nil, errorf("concat expects a list of >=2 inputs")
	}
	tensors := make([]*Tensor, 0, in.Len())
	for _, v := range in.Values() {
		t, ok := v.(*Tensor)
		if !ok {
			return nil, errorf("concat expects tensor inputs")
		}
		tensors = append(tensors, t)
	}
	seen := map[[2]int]struct{}{}
	for _, t := range tensors {
		if t.NDim() >= 3 {
			seen[[2]int{t.Shape[1], t.Shape[2]}] = struct{}{}
		}
	}
	if len(seen) > 1 {
		return nil, errorf("concat inputs must share (Y, X) dimensions")
	}
	first := tensors[0]
	total := first.Shape[0]
	for _, t := range tensors[1:] {
		if t.NDim() != first.NDim() {
			return nil, errorf("concat inputs must share rank")
		}
		for i := 1; i < first.NDim(); i++ {
			if t.Shape[i] != first.Shape[i] {
				return nil, errorf("concat inputs must share trailing dimensions")
			}
		}
		total += t.Shape[0]
	}
	dtype := DTypeUint8
	for _, t := range tensors {
		if t.DType != DTypeUint8 {
			dtype = DTypeFloat32
			break
		}
	}
	shape := append([]int{total}, first.Shape[1:]...)
	out := NewTensor(shape, dtype)
	offset := 0
	for _, t := range tensors {
		offset += copy(out.Data[offset:], t.Data)
	}
	return out, nil
}

// fnSegmentation thresholds a tensor into a byte-valued 0/1 mask.
func fnSegmentation(in Input, params map[string]any) (Value, error) {
	t, ok := in.Single().(*Tensor)
	if !ok {
		return nil, errorf("segmentation expects a tensor input")
	}
	threshold, err := paramFloat(params, "threshold", 0.5, "threshold must be a number")
	if err != nil {
		return nil, err
	}
	out := NewTensor(t.Shape, DTypeUint8)
	for i, v := range t.Data {
		if v >= threshold {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// ensureImage validates and normalises image-like tensors to rank-3 (C, Y, X).
func ensureImage(in Input, kindName string) (*Tensor, error) {
	t, ok := in.Single().(*Tensor)
	if !ok {
		return nil, errorf("%s expects a tensor input", kindName)
	}
	if t.NDim() == 2 {
		t = &Tensor{Shape: []int{1, t.Shape[0], t.Shape[1]}, Data: t.Data, DType: t.DType}
	}
	if t.NDim() != 3 {
		return nil, errorf("%s expects a tensor shaped (C, Y, X)", kindName)
	}
	return t, nil
}

// fnFilter applies a spatial mean filter with an odd-sized kernel. Edges are
// padded by replication.
func fnFilter(in Input, params map[string]any) (Value, error) {
	arr, err := ensureImage(in, "filter")
	if err != nil {
		return nil, err
	}
	filterType := strings.ToLower(paramString(params, "filterType", "mean"))
	if filterType != "mean" && filterType != "average" {
		return nil, errorf("Unsupported filterType '%s'. Supported: mean/average.", filterType)
	}
	kernelSize, err := paramInt(params, "kernelSize", 3, "kernelSize must be an integer")
	if err != nil {
		return nil, err
	}
	if kernelSize <= 0 || kernelSize%2 == 0 {
		return nil, errorf("kernelSize must be a positive odd integer")
	}
	pad := kernelSize / 2
	channels, height, width := arr.Shape[0], arr.Shape[1], arr.Shape[2]
	out := NewTensor(arr.Shape, DTypeFloat32)
	area := float64(kernelSize * kernelSize)
	for c := 0; c < channels; c++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				var sum float64
				for dy := -pad; dy <= pad; dy++ {
					yy := clampIndex(y+dy, height)
					for dx := -pad; dx <= pad; dx++ {
						xx := clampIndex(x+dx, width)
						sum += arr.At3(c, yy, xx)
					}
				}
				out.Set3(c, y, x, sum/area)
			}
		}
	}
	return out, nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// fnStructuralDescriptor computes simple per-channel statistics used by
// downstream figure and text nodes.
func fnStructuralDescriptor(in Input, _ map[string]any) (Value, error) {
	arr, err := ensureImage(in, "structural-descriptor")
	if err != nil {
		return nil, err
	}
	channels := arr.Shape[0]
	plane := arr.Shape[1] * arr.Shape[2]
	means := make([]float64, channels)
	stds := make([]float64, channels)
	maxima := make([]float64, channels)
	minima := make([]float64, channels)
	for c := 0; c < channels; c++ {
		data := arr.Data[c*plane : (c+1)*plane]
		minV, maxV := data[0], data[0]
		var sum float64
		for _, v := range data {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
			sum += v
		}
		mean := sum / float64(plane)
		var variance float64
		for _, v := range data {
			d := v - mean
			variance += d * d
		}
		means[c] = mean
		stds[c] = math.Sqrt(variance / float64(plane))
		maxima[c] = maxV
		minima[c] = minV
	}
	return Record{
		"shape": append([]int(nil), arr.Shape...),
		"channel_stats": map[string]any{
			"mean": means,
			"std":  stds,
			"max":  maxima,
			"min":  minima,
		},
	}, nil
}

// fnSimulation produces a deterministic toy summary derived from the input
// tensor: a sine-modulated series plus total energy.
func fnSimulation(in Input, params map[string]any) (Value, error) {
	arr, err := ensureImage(in, "simulation")
	if err != nil {
		return nil, err
	}
	simType := paramString(params, "simulationType", "generic")
	steps, err := paramInt(params, "steps", 10, "steps must be an integer")
	if err != nil {
		return nil, err
	}
	if steps < 1 {
		steps = 1
	}
	if steps > 256 {
		steps = 256
	}
	_, _, amplitude := arr.Stats()
	series := make([]float64, steps)
	for i := range series {
		var lin float64
		if steps > 1 {
			lin = float64(i) / float64(steps-1)
		}
		series[i] = amplitude * math.Sin(2*math.Pi*lin)
	}
	return Record{
		"simulationType": simType,
		"steps":          steps,
		"series":         series,
		"energy":         arr.Sum(),
	}, nil
}

// fnFigure wraps a descriptor record into a renderable figure payload.
func fnFigure(in Input, params map[string]any) (Value, error) {
	record, ok := in.Single().(Record)
	if !ok {
		return nil, errorf("figure node expects a descriptor dictionary input")
	}
	title, ok := params["title"]
	if !ok {
		title = "Generated Figure"
	}
	subtitle, ok := params["subtitle"]
	if !ok {
		subtitle = "Auto summary"
	}
	return Record{
		"title":    title,
		"subtitle": subtitle,
		"data":     map[string]any(record),
	}, nil
}

// fnText aggregates upstream values into a printable log entry.
func fnText(in Input, params map[string]any) (Value, error) {
	entries := in.Values()
	serialized := make([]string, 0, len(entries))
	for _, entry := range entries {
		serialized = append(serialized, textEntry(entry))
	}
	prefix := paramString(params, "prefix", "LOG")
	return Text(prefix + ": " + strings.Join(serialized, " | ")), nil
}

func textEntry(v Value) string {
	switch t := v.(type) {
	case nil:
		return "none"
	case Text:
		return string(t)
	case Int:
		return strconv.FormatInt(int64(t), 10)
	case Float:
		return strconv.FormatFloat(float64(t), 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(t))
	case Record:
		return marshalSorted(map[string]any(t))
	default:
		return marshalSorted(v.Describe())
	}
}

// marshalSorted renders a mapping as JSON; encoding/json already emits map
// keys in sorted order.
func marshalSorted(m map[string]any) string {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(data)
}

func paramString(params map[string]any, key, fallback string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		// goccy/go-yaml decodes unsigned integer literals as uint64.
		return int(n), true
	case float64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func paramInt(params map[string]any, key string, fallback int, msg string) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	n, ok := coerceInt(v)
	if !ok {
		return 0, errorf("%s", msg)
	}
	return n, nil
}

func paramFloat(params map[string]any, key string, fallback float64, msg string) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, errorf("%s", msg)
		}
		return parsed, nil
	default:
		return 0, errorf("%s", msg)
	}
}

func paramShape(params map[string]any, key string, fallback []int) ([]int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, errorf("shape must be a list of positive integers")
	}
	shape := make([]int, 0, len(raw))
	for _, item := range raw {
		dim, ok := coerceInt(item)
		if !ok || dim <= 0 {
			return nil, errorf("shape must be a list of positive integers")
		}
		shape = append(shape, dim)
	}
	if len(shape) == 0 {
		return nil, errorf("shape must be a list of positive integers")
	}
	return shape, nil
}
