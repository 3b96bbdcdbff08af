package kernel

import (
	"errors"
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// maxRangeLen bounds the sequences np.arange and np.linspace may build.
const maxRangeLen = 1 << 22

var errEmpty = errors.New("empty sequence")

// floats converts numeric values to float64.
func floats(values []starlark.Value) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := starlark.AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("unsupported type %s in numeric reduction", v.Type())
		}
		out[i] = f
	}
	return out, nil
}

// sumValues adds values with Starlark arithmetic, so ints stay ints.
func sumValues(values []starlark.Value) (starlark.Value, error) {
	var total starlark.Value = starlark.MakeInt(0)
	for _, v := range values {
		next, err := starlark.Binary(syntax.PLUS, total, v)
		if err != nil {
			return nil, err
		}
		total = next
	}
	return total, nil
}

func meanValues(values []starlark.Value) (starlark.Value, error) {
	fs, err := floats(values)
	if err != nil {
		return nil, err
	}
	if len(fs) == 0 {
		return nil, errEmpty
	}
	var total float64
	for _, f := range fs {
		total += f
	}
	return starlark.Float(total / float64(len(fs))), nil
}

// stdValues is the population standard deviation.
func stdValues(values []starlark.Value) (starlark.Value, error) {
	fs, err := floats(values)
	if err != nil {
		return nil, err
	}
	if len(fs) == 0 {
		return nil, errEmpty
	}
	var mean float64
	for _, f := range fs {
		mean += f
	}
	mean /= float64(len(fs))
	var sq float64
	for _, f := range fs {
		sq += (f - mean) * (f - mean)
	}
	return starlark.Float(math.Sqrt(sq / float64(len(fs)))), nil
}

func minValues(values []starlark.Value) (starlark.Value, error) {
	return extreme(values, syntax.LT)
}

func maxValues(values []starlark.Value) (starlark.Value, error) {
	return extreme(values, syntax.GT)
}

func extreme(values []starlark.Value, op syntax.Token) (starlark.Value, error) {
	if len(values) == 0 {
		return nil, errEmpty
	}
	best := values[0]
	for _, v := range values[1:] {
		better, err := starlark.Compare(op, v, best)
		if err != nil {
			return nil, err
		}
		if better {
			best = v
		}
	}
	return best, nil
}

// newNumericModule builds the np alias.
func newNumericModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: aliasNumeric,
		Members: starlark.StringDict{
			"array":    builtin("array", npArray),
			"arange":   builtin("arange", npArange),
			"linspace": builtin("linspace", npLinspace),
			"sum":      builtin("sum", npReduce(sumValues)),
			"mean":     builtin("mean", npReduce(meanValues)),
			"std":      builtin("std", npReduce(stdValues)),
			"min":      builtin("min", npReduce(minValues)),
			"max":      builtin("max", npReduce(maxValues)),
			"sqrt":     builtin("sqrt", npSqrt),
			"pi":       starlark.Float(math.Pi),
			"e":        starlark.Float(math.E),
		},
	}
}

func npArray(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &data); err != nil {
		return nil, err
	}
	values, err := toValues(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.NewList(values), nil
}

func npReduce(fn func([]starlark.Value) (starlark.Value, error)) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var data starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &data); err != nil {
			return nil, err
		}
		values, err := toValues(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		v, err := fn(values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return v, nil
	}
}

func npSqrt(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want number", b.Name(), x.Type())
	}
	return starlark.Float(math.Sqrt(f)), nil
}

// npArange mirrors arange(stop) and arange(start, stop, step). The result
// holds ints when every argument is an int, floats otherwise.
func npArange(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, c, d starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &a, &c, &d); err != nil {
		return nil, err
	}
	start, stop, step := starlark.Value(starlark.MakeInt(0)), a, starlark.Value(starlark.MakeInt(1))
	if c != nil {
		start, stop = a, c
	}
	if d != nil {
		step = d
	}

	bounds := []starlark.Value{start, stop, step}
	allInts := true
	for _, v := range bounds {
		switch v.(type) {
		case starlark.Int:
		case starlark.Float:
			allInts = false
		default:
			return nil, fmt.Errorf("%s: got %s, want number", b.Name(), v.Type())
		}
	}

	fs, _ := floats(bounds)
	lo, hi, st := fs[0], fs[1], fs[2]
	if st == 0 {
		return nil, fmt.Errorf("%s: step must not be zero", b.Name())
	}
	span := math.Ceil((hi - lo) / st)
	if math.IsNaN(span) {
		return nil, fmt.Errorf("%s: bounds must be finite", b.Name())
	}
	if span > maxRangeLen {
		return nil, fmt.Errorf("%s: %g elements exceeds limit of %d", b.Name(), span, maxRangeLen)
	}
	n := 0
	if span > 0 {
		n = int(span)
	}

	out := make([]starlark.Value, n)
	for i := range out {
		x := lo + float64(i)*st
		if allInts {
			out[i] = starlark.MakeInt64(int64(x))
		} else {
			out[i] = starlark.Float(x)
		}
	}
	return starlark.NewList(out), nil
}

func npLinspace(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		start, stop starlark.Value
		num         = 50
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop, "num?", &num); err != nil {
		return nil, err
	}
	fs, err := floats([]starlark.Value{start, stop})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if num < 0 || num > maxRangeLen {
		return nil, fmt.Errorf("%s: num must be between 0 and %d", b.Name(), maxRangeLen)
	}

	out := make([]starlark.Value, num)
	for i := range out {
		if num == 1 {
			out[i] = starlark.Float(fs[0])
			break
		}
		out[i] = starlark.Float(fs[0] + (fs[1]-fs[0])*float64(i)/float64(num-1))
	}
	return starlark.NewList(out), nil
}
