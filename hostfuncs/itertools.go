package hostfuncs

import (
	"context"
)

// IterRequest drives the itertools members.
// Items feeds permutations and combinations, Lists feeds product and chain.
type IterRequest struct {
	Items  []any   `json:"items,omitempty"`
	Lists  [][]any `json:"lists,omitempty"`
	R      int     `json:"r,omitempty"`
	Repeat int     `json:"repeat,omitempty"`
}

// TuplesResponse carries generated tuples.
type TuplesResponse struct {
	Tuples [][]any `json:"tuples"`
}

// ItemsResponse carries a flat sequence.
type ItemsResponse struct {
	Items []any `json:"items"`
}

// maxIterResults bounds the number of tuples one call may generate.
const maxIterResults = 100000

func product(lists [][]any) ([][]any, error) {
	total := 1
	for _, l := range lists {
		total *= len(l)
		if total > maxIterResults {
			return nil, argErrorf("product exceeds %d results", maxIterResults)
		}
	}
	out := [][]any{{}}
	for _, l := range lists {
		next := make([][]any, 0, len(out)*len(l))
		for _, prefix := range out {
			for _, v := range l {
				t := make([]any, len(prefix), len(prefix)+1)
				copy(t, prefix)
				next = append(next, append(t, v))
			}
		}
		out = next
	}
	return out, nil
}

// choose emits index tuples of length r from n elements, ordered when
// ordered is set, in lexicographic order.
func choose(items []any, r int, ordered bool) ([][]any, error) {
	n := len(items)
	if r < 0 || r > n {
		return [][]any{}, nil
	}
	var out [][]any
	used := make([]bool, n)
	cur := make([]any, 0, r)
	var rec func(start int) bool
	rec = func(start int) bool {
		if len(cur) == r {
			if len(out) >= maxIterResults {
				return false
			}
			t := make([]any, r)
			copy(t, cur)
			out = append(out, t)
			return true
		}
		from := start
		if ordered {
			from = 0
		}
		for i := from; i < n; i++ {
			if used[i] {
				continue
			}
			used[i] = true
			cur = append(cur, items[i])
			ok := rec(i + 1)
			cur = cur[:len(cur)-1]
			used[i] = false
			if !ok {
				return false
			}
		}
		return true
	}
	if !rec(0) {
		return nil, argErrorf("result exceeds %d tuples", maxIterResults)
	}
	return out, nil
}

// ItertoolsBundle returns the members of the itertools module.
func ItertoolsBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"product": NewJSONHandler(func(_ context.Context, req IterRequest) (TuplesResponse, error) {
			lists := req.Lists
			if req.Repeat > 1 {
				lists = nil
				for i := 0; i < req.Repeat; i++ {
					lists = append(lists, req.Lists...)
				}
			}
			tuples, err := product(lists)
			return TuplesResponse{Tuples: tuples}, err
		}),
		"permutations": NewJSONHandler(func(_ context.Context, req IterRequest) (TuplesResponse, error) {
			r := req.R
			if r == 0 {
				r = len(req.Items)
			}
			tuples, err := choose(req.Items, r, true)
			return TuplesResponse{Tuples: tuples}, err
		}),
		"combinations": NewJSONHandler(func(_ context.Context, req IterRequest) (TuplesResponse, error) {
			tuples, err := choose(req.Items, req.R, false)
			return TuplesResponse{Tuples: tuples}, err
		}),
		"chain": NewJSONHandler(func(_ context.Context, req IterRequest) (ItemsResponse, error) {
			items := []any{}
			for _, l := range req.Lists {
				items = append(items, l...)
			}
			return ItemsResponse{Items: items}, nil
		}),
	})
}

func itertoolsModule() ModuleDef {
	return ModuleDef{
		Name:     "itertools",
		Doc:      "combinatoric iterators",
		New:      static(ItertoolsBundle()),
		Requests: requestsFor(IterRequest{}, "product", "permutations", "combinations", "chain"),
	}
}
