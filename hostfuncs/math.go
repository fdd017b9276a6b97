package hostfuncs

import (
	"context"
	"math"
	"math/big"
)

// UnaryRequest carries a single float argument.
type UnaryRequest struct {
	X float64 `json:"x"`
}

// BinaryRequest carries two float arguments.
type BinaryRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LogRequest computes a logarithm. Base 0 means natural log.
type LogRequest struct {
	X    float64 `json:"x"`
	Base float64 `json:"base,omitempty"`
}

// IntPairRequest carries two integers.
type IntPairRequest struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
}

// FactorialRequest asks for n!.
type FactorialRequest struct {
	N int64 `json:"n"`
}

// FloatResponse carries a float result.
type FloatResponse struct {
	Value float64 `json:"value"`
}

// IntResponse carries an integer result.
type IntResponse struct {
	Value int64 `json:"value"`
}

// BigIntResponse carries an arbitrary-precision integer in decimal.
type BigIntResponse struct {
	Value string `json:"value"`
}

// ConstantsResponse lists the module constants.
type ConstantsResponse struct {
	Pi  float64 `json:"pi"`
	E   float64 `json:"e"`
	Tau float64 `json:"tau"`
}

// maxFactorial bounds factorial inputs.
const maxFactorial = 10000

func finite(v float64) (FloatResponse, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return FloatResponse{}, argErrorf("math domain error")
	}
	return FloatResponse{Value: v}, nil
}

func unary(fn func(float64) float64) HostFunc[UnaryRequest, FloatResponse] {
	return func(_ context.Context, req UnaryRequest) (FloatResponse, error) {
		return finite(fn(req.X))
	}
}

// MathBundle returns the members of the math module.
func MathBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"sqrt":  NewJSONHandler(unary(math.Sqrt)),
		"floor": NewJSONHandler(unary(math.Floor)),
		"ceil":  NewJSONHandler(unary(math.Ceil)),
		"fabs":  NewJSONHandler(unary(math.Abs)),
		"exp":   NewJSONHandler(unary(math.Exp)),
		"sin":   NewJSONHandler(unary(math.Sin)),
		"cos":   NewJSONHandler(unary(math.Cos)),
		"tan":   NewJSONHandler(unary(math.Tan)),
		"pow": NewJSONHandler(func(_ context.Context, req BinaryRequest) (FloatResponse, error) {
			return finite(math.Pow(req.X, req.Y))
		}),
		"hypot": NewJSONHandler(func(_ context.Context, req BinaryRequest) (FloatResponse, error) {
			return finite(math.Hypot(req.X, req.Y))
		}),
		"log": NewJSONHandler(func(_ context.Context, req LogRequest) (FloatResponse, error) {
			if req.X <= 0 {
				return FloatResponse{}, argErrorf("math domain error")
			}
			if req.Base == 0 {
				return finite(math.Log(req.X))
			}
			if req.Base <= 0 || req.Base == 1 {
				return FloatResponse{}, argErrorf("invalid logarithm base %v", req.Base)
			}
			return finite(math.Log(req.X) / math.Log(req.Base))
		}),
		"gcd": NewJSONHandler(func(_ context.Context, req IntPairRequest) (IntResponse, error) {
			a, b := req.A, req.B
			if a < 0 {
				a = -a
			}
			if b < 0 {
				b = -b
			}
			for b != 0 {
				a, b = b, a%b
			}
			return IntResponse{Value: a}, nil
		}),
		"factorial": NewJSONHandler(func(_ context.Context, req FactorialRequest) (BigIntResponse, error) {
			if req.N < 0 {
				return BigIntResponse{}, argErrorf("factorial() not defined for negative values")
			}
			if req.N > maxFactorial {
				return BigIntResponse{}, argErrorf("factorial() argument exceeds %d", maxFactorial)
			}
			v := new(big.Int).MulRange(1, req.N)
			return BigIntResponse{Value: v.String()}, nil
		}),
		"constants": NewJSONHandler(func(context.Context, struct{}) (ConstantsResponse, error) {
			return ConstantsResponse{Pi: math.Pi, E: math.E, Tau: 2 * math.Pi}, nil
		}),
	})
}

func mathModule() ModuleDef {
	return ModuleDef{
		Name: "math",
		Doc:  "floating point and integer math",
		New:  static(MathBundle()),
		Requests: map[string]any{
			"sqrt": UnaryRequest{}, "floor": UnaryRequest{}, "ceil": UnaryRequest{},
			"fabs": UnaryRequest{}, "exp": UnaryRequest{}, "sin": UnaryRequest{},
			"cos": UnaryRequest{}, "tan": UnaryRequest{},
			"pow": BinaryRequest{}, "hypot": BinaryRequest{},
			"log": LogRequest{}, "gcd": IntPairRequest{}, "factorial": FactorialRequest{},
		},
	}
}
