package hostfuncs

import (
	"context"
	"math/big"
)

// FractionRequest carries rationals as strings ("3/4", "0.75", "2").
type FractionRequest struct {
	A  string `json:"a"`
	B  string `json:"b,omitempty"`
	Op string `json:"op,omitempty"`

	// MaxDenominator bounds limit_denominator.
	MaxDenominator int64 `json:"max_denominator,omitempty"`
}

// FractionResponse is a normalized rational.
type FractionResponse struct {
	Numerator   string  `json:"numerator"`
	Denominator string  `json:"denominator"`
	String      string  `json:"string"`
	Float       float64 `json:"float"`
}

func parseRat(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, argErrorf("invalid literal for Fraction: %q", s)
	}
	return r, nil
}

func fractionResponse(r *big.Rat) FractionResponse {
	f, _ := r.Float64()
	return FractionResponse{
		Numerator:   r.Num().String(),
		Denominator: r.Denom().String(),
		String:      r.RatString(),
		Float:       f,
	}
}

// limitDenominator finds the closest rational with denominator at most max,
// using the continued fraction expansion.
func limitDenominator(r *big.Rat, max int64) *big.Rat {
	limit := big.NewInt(max)
	if r.Denom().Cmp(limit) <= 0 {
		return new(big.Rat).Set(r)
	}
	p0, q0, p1, q1 := big.NewInt(0), big.NewInt(1), big.NewInt(1), big.NewInt(0)
	n, d := new(big.Int).Set(r.Num()), new(big.Int).Set(r.Denom())
	for {
		a := new(big.Int).Div(n, d)
		q2 := new(big.Int).Add(q0, new(big.Int).Mul(a, q1))
		if q2.Cmp(limit) > 0 {
			break
		}
		p0, q0, p1, q1 = p1, q1, new(big.Int).Add(p0, new(big.Int).Mul(a, p1)), q2
		n, d = d, new(big.Int).Sub(n, new(big.Int).Mul(a, d))
		if d.Sign() == 0 {
			break
		}
	}
	k := new(big.Int).Div(new(big.Int).Sub(limit, q0), q1)
	bound1 := new(big.Rat).SetFrac(new(big.Int).Add(p0, new(big.Int).Mul(k, p1)), new(big.Int).Add(q0, new(big.Int).Mul(k, q1)))
	bound2 := new(big.Rat).SetFrac(p1, q1)

	d1 := new(big.Rat).Abs(new(big.Rat).Sub(bound2, r))
	d2 := new(big.Rat).Abs(new(big.Rat).Sub(bound1, r))
	if d1.Cmp(d2) <= 0 {
		return bound2
	}
	return bound1
}

// FractionsBundle returns the members of the fractions module.
func FractionsBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"fraction": NewJSONHandler(func(_ context.Context, req FractionRequest) (FractionResponse, error) {
			r, err := parseRat(req.A)
			if err != nil {
				return FractionResponse{}, err
			}
			return fractionResponse(r), nil
		}),
		"arith": NewJSONHandler(func(_ context.Context, req FractionRequest) (FractionResponse, error) {
			a, err := parseRat(req.A)
			if err != nil {
				return FractionResponse{}, err
			}
			b, err := parseRat(req.B)
			if err != nil {
				return FractionResponse{}, err
			}
			out := new(big.Rat)
			switch req.Op {
			case "add":
				out.Add(a, b)
			case "sub":
				out.Sub(a, b)
			case "mul":
				out.Mul(a, b)
			case "div":
				if b.Sign() == 0 {
					return FractionResponse{}, argErrorf("Fraction division by zero")
				}
				out.Quo(a, b)
			default:
				return FractionResponse{}, argErrorf("unsupported op %q", req.Op)
			}
			return fractionResponse(out), nil
		}),
		"limit_denominator": NewJSONHandler(func(_ context.Context, req FractionRequest) (FractionResponse, error) {
			r, err := parseRat(req.A)
			if err != nil {
				return FractionResponse{}, err
			}
			max := req.MaxDenominator
			if max == 0 {
				max = 1000000
			}
			if max < 1 {
				return FractionResponse{}, argErrorf("max_denominator should be at least 1")
			}
			return fractionResponse(limitDenominator(r, max)), nil
		}),
	})
}

func fractionsModule() ModuleDef {
	return ModuleDef{
		Name:     "fractions",
		Doc:      "exact rational arithmetic",
		New:      static(FractionsBundle()),
		Requests: requestsFor(FractionRequest{}, "fraction", "arith", "limit_denominator"),
	}
}
