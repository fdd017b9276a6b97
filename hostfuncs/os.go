package hostfuncs

import (
	"context"
	"io"
	"os"
	"sort"
)

// OSRequest drives the os members.
type OSRequest struct {
	Key  string `json:"key,omitempty"`
	Path string `json:"path,omitempty"`
}

// GetenvResponse carries an environment lookup.
type GetenvResponse struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// ReadFileResponse carries file contents, cut at the module's output bound.
type ReadFileResponse struct {
	Data      []byte `json:"data"`
	Truncated bool   `json:"truncated,omitempty"`
}

// OSBundle returns the members of the os module. It reaches the host
// environment and filesystem directly and is not allow-listed by default.
func OSBundle(maxRead int) HostFuncBundle {
	if maxRead <= 0 {
		maxRead = DefaultMaxOutputSize
	}
	return NewBundle(map[string]ByteHandler{
		"getenv": NewJSONHandler(func(_ context.Context, req OSRequest) (GetenvResponse, error) {
			v, ok := os.LookupEnv(req.Key)
			return GetenvResponse{Value: v, Found: ok}, nil
		}),
		"getcwd": NewJSONHandler(func(context.Context, OSRequest) (TextResponse, error) {
			wd, err := os.Getwd()
			if err != nil {
				return TextResponse{}, err
			}
			return TextResponse{Value: wd}, nil
		}),
		"listdir": NewJSONHandler(func(_ context.Context, req OSRequest) (ListResponse, error) {
			path := req.Path
			if path == "" {
				path = "."
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return ListResponse{}, argErrorf("%v", err)
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			sort.Strings(names)
			return ListResponse{Values: names}, nil
		}),
		"read_file": NewJSONHandler(func(_ context.Context, req OSRequest) (ReadFileResponse, error) {
			f, err := os.Open(req.Path)
			if err != nil {
				return ReadFileResponse{}, argErrorf("%v", err)
			}
			defer f.Close()

			buf := NewBoundedBuffer(maxRead)
			if _, err := io.Copy(buf, io.LimitReader(f, int64(maxRead)+1)); err != nil {
				return ReadFileResponse{}, err
			}
			return ReadFileResponse{Data: []byte(buf.String()), Truncated: buf.Truncated()}, nil
		}),
	})
}

func osModule(maxRead int) ModuleDef {
	return ModuleDef{
		Name:     "os",
		Doc:      "host environment and filesystem access",
		New:      static(OSBundle(maxRead)),
		Requests: requestsFor(OSRequest{}, "getenv", "getcwd", "listdir", "read_file"),
	}
}
