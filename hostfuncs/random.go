package hostfuncs

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// RandomRequest drives the random members.
type RandomRequest struct {
	Items []any   `json:"items,omitempty"`
	Seed  *uint64 `json:"seed,omitempty"`
	A     float64 `json:"a,omitempty"`
	B     float64 `json:"b,omitempty"`
	K     int     `json:"k,omitempty"`
}

// ChoiceResponse carries one chosen item.
type ChoiceResponse struct {
	Item any `json:"item"`
}

// randomState is the generator behind one random module instance.
type randomState struct {
	rng *rand.Rand
	mu  sync.Mutex
}

func newRandomState(seed uint64) *randomState {
	return &randomState{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *randomState) reseed(seed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = newRandomState(seed).rng
}

func (s *randomState) with(fn func(r *rand.Rand)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.rng)
}

// RandomBundle returns the members of a random module instance seeded
// with seed. Instances do not share state.
func RandomBundle(seed uint64) HostFuncBundle {
	s := newRandomState(seed)
	return NewBundle(map[string]ByteHandler{
		"seed": NewJSONHandler(func(_ context.Context, req RandomRequest) (struct{}, error) {
			v := uint64(time.Now().UnixNano())
			if req.Seed != nil {
				v = *req.Seed
			}
			s.reseed(v)
			return struct{}{}, nil
		}),
		"random": NewJSONHandler(func(context.Context, RandomRequest) (FloatResponse, error) {
			var v float64
			s.with(func(r *rand.Rand) { v = r.Float64() })
			return FloatResponse{Value: v}, nil
		}),
		"uniform": NewJSONHandler(func(_ context.Context, req RandomRequest) (FloatResponse, error) {
			var v float64
			s.with(func(r *rand.Rand) { v = req.A + (req.B-req.A)*r.Float64() })
			return FloatResponse{Value: v}, nil
		}),
		"randint": NewJSONHandler(func(_ context.Context, req RandomRequest) (IntResponse, error) {
			a, b := int64(req.A), int64(req.B)
			if b < a {
				return IntResponse{}, argErrorf("empty range for randint(%d, %d)", a, b)
			}
			var v int64
			s.with(func(r *rand.Rand) { v = a + r.Int64N(b-a+1) })
			return IntResponse{Value: v}, nil
		}),
		"choice": NewJSONHandler(func(_ context.Context, req RandomRequest) (ChoiceResponse, error) {
			if len(req.Items) == 0 {
				return ChoiceResponse{}, argErrorf("cannot choose from an empty sequence")
			}
			var i int
			s.with(func(r *rand.Rand) { i = r.IntN(len(req.Items)) })
			return ChoiceResponse{Item: req.Items[i]}, nil
		}),
		"shuffle": NewJSONHandler(func(_ context.Context, req RandomRequest) (ItemsResponse, error) {
			items := append([]any{}, req.Items...)
			s.with(func(r *rand.Rand) {
				r.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
			})
			return ItemsResponse{Items: items}, nil
		}),
		"sample": NewJSONHandler(func(_ context.Context, req RandomRequest) (ItemsResponse, error) {
			if req.K < 0 || req.K > len(req.Items) {
				return ItemsResponse{}, argErrorf("sample larger than population or is negative")
			}
			var perm []int
			s.with(func(r *rand.Rand) { perm = r.Perm(len(req.Items)) })
			out := make([]any, req.K)
			for i := range out {
				out[i] = req.Items[perm[i]]
			}
			return ItemsResponse{Items: out}, nil
		}),
	})
}

func randomModule() ModuleDef {
	return ModuleDef{
		Name:     "random",
		Doc:      "pseudo-random numbers (not for security use)",
		Requests: requestsFor(RandomRequest{}, "seed", "random", "uniform", "randint", "choice", "shuffle", "sample"),
		New: func(context.Context) (HostFuncBundle, error) {
			return RandomBundle(uint64(time.Now().UnixNano())), nil
		},
	}
}
