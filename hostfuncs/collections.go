package hostfuncs

import (
	"context"
	"fmt"
	"sort"
)

// CounterRequest counts Items. N limits most_common; 0 means all.
type CounterRequest struct {
	Items []any `json:"items"`
	N     int   `json:"n,omitempty"`
}

// CountEntry is one element and its count.
type CountEntry struct {
	Item  any `json:"item"`
	Count int `json:"count"`
}

// CounterResponse lists counts in first-seen order.
type CounterResponse struct {
	Counts []CountEntry `json:"counts"`
}

func countItems(items []any) []CountEntry {
	index := make(map[string]int)
	var counts []CountEntry
	for _, it := range items {
		key := fmt.Sprintf("%T:%v", it, it)
		if i, ok := index[key]; ok {
			counts[i].Count++
			continue
		}
		index[key] = len(counts)
		counts = append(counts, CountEntry{Item: it, Count: 1})
	}
	if counts == nil {
		counts = []CountEntry{}
	}
	return counts
}

// CollectionsBundle returns the members of the collections module.
func CollectionsBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"counter": NewJSONHandler(func(_ context.Context, req CounterRequest) (CounterResponse, error) {
			return CounterResponse{Counts: countItems(req.Items)}, nil
		}),
		"most_common": NewJSONHandler(func(_ context.Context, req CounterRequest) (CounterResponse, error) {
			counts := countItems(req.Items)
			sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
			if req.N > 0 && req.N < len(counts) {
				counts = counts[:req.N]
			}
			return CounterResponse{Counts: counts}, nil
		}),
	})
}

func collectionsModule() ModuleDef {
	return ModuleDef{
		Name:     "collections",
		Doc:      "container helpers",
		New:      static(CollectionsBundle()),
		Requests: requestsFor(CounterRequest{}, "counter", "most_common"),
	}
}
