package hostfuncs

import (
	"context"
	"math"
)

// ReduceRequest folds Values with Op (add, mul, min, max).
type ReduceRequest struct {
	Initial *float64  `json:"initial,omitempty"`
	Op      string    `json:"op"`
	Values  []float64 `json:"values"`
}

var reducers = map[string]func(a, b float64) float64{
	"add": func(a, b float64) float64 { return a + b },
	"mul": func(a, b float64) float64 { return a * b },
	"min": math.Min,
	"max": math.Max,
}

// FunctoolsBundle returns the members of the functools module.
func FunctoolsBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"reduce": NewJSONHandler(func(_ context.Context, req ReduceRequest) (FloatResponse, error) {
			fn, ok := reducers[req.Op]
			if !ok {
				return FloatResponse{}, argErrorf("unsupported reduce op %q", req.Op)
			}
			values := req.Values
			var acc float64
			switch {
			case req.Initial != nil:
				acc = *req.Initial
			case len(values) == 0:
				return FloatResponse{}, argErrorf("reduce() of empty iterable with no initial value")
			default:
				acc, values = values[0], values[1:]
			}
			for _, v := range values {
				acc = fn(acc, v)
			}
			return finite(acc)
		}),
	})
}

func functoolsModule() ModuleDef {
	return ModuleDef{
		Name:     "functools",
		Doc:      "higher-order reductions",
		New:      static(FunctoolsBundle()),
		Requests: map[string]any{"reduce": ReduceRequest{}},
	}
}
