package hostfuncs

import (
	"context"
	"errors"
	"io/fs"

	"github.com/bmatcuk/doublestar/v4"
)

// GlobRequest matches Pattern against the module's filesystem, or against
// Name for match.
type GlobRequest struct {
	Pattern string `json:"pattern"`
	Name    string `json:"name,omitempty"`
}

// MatchedResponse reports a boolean match result.
type MatchedResponse struct {
	Matched bool `json:"matched"`
}

// maxGlobResults bounds glob listings.
const maxGlobResults = 10000

var errGlobLimit = errors.New("glob result limit reached")

// GlobBundle returns the members of the glob module over fsys.
// Paths are slash-separated and relative to the root of fsys; the module
// lists names only and never opens files for reading.
func GlobBundle(fsys fs.FS) HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"glob": NewJSONHandler(func(_ context.Context, req GlobRequest) (ListResponse, error) {
			if !doublestar.ValidatePattern(req.Pattern) {
				return ListResponse{}, argErrorf("invalid glob pattern %q", req.Pattern)
			}
			var matches []string
			err := doublestar.GlobWalk(fsys, req.Pattern, func(path string, _ fs.DirEntry) error {
				if len(matches) >= maxGlobResults {
					return errGlobLimit
				}
				matches = append(matches, path)
				return nil
			})
			if err != nil && !errors.Is(err, errGlobLimit) {
				return ListResponse{}, err
			}
			if matches == nil {
				matches = []string{}
			}
			return ListResponse{Values: matches}, nil
		}),
		"fnmatch": NewJSONHandler(func(_ context.Context, req GlobRequest) (MatchedResponse, error) {
			ok, err := doublestar.Match(req.Pattern, req.Name)
			if err != nil {
				return MatchedResponse{}, argErrorf("invalid glob pattern %q", req.Pattern)
			}
			return MatchedResponse{Matched: ok}, nil
		}),
	})
}

func globModule(fsys fs.FS) ModuleDef {
	return ModuleDef{
		Name:     "glob",
		Doc:      "pathname pattern expansion",
		New:      static(GlobBundle(fsys)),
		Requests: requestsFor(GlobRequest{}, "glob", "fnmatch"),
	}
}
