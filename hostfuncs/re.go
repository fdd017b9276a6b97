package hostfuncs

import (
	"context"
	"regexp"
)

// RegexRequest applies Pattern to String.
type RegexRequest struct {
	Pattern string `json:"pattern"`
	String  string `json:"string"`
	Repl    string `json:"repl,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// MatchResponse describes a match. Groups holds the submatches, Span the
// byte offsets of the whole match.
type MatchResponse struct {
	Match   string   `json:"match,omitempty"`
	Groups  []string `json:"groups,omitempty"`
	Span    []int    `json:"span,omitempty"`
	Matched bool     `json:"matched"`
}

// maxPatternLen bounds compiled patterns.
const maxPatternLen = 4096

func compilePattern(pattern string, anchor string) (*regexp.Regexp, error) {
	if len(pattern) > maxPatternLen {
		return nil, argErrorf("pattern longer than %d bytes", maxPatternLen)
	}
	expr := pattern
	switch anchor {
	case "start":
		expr = `\A(?:` + pattern + `)`
	case "full":
		expr = `\A(?:` + pattern + `)\z`
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, argErrorf("invalid pattern: %v", err)
	}
	return re, nil
}

func matcher(anchor string) HostFunc[RegexRequest, MatchResponse] {
	return func(_ context.Context, req RegexRequest) (MatchResponse, error) {
		re, err := compilePattern(req.Pattern, anchor)
		if err != nil {
			return MatchResponse{}, err
		}
		loc := re.FindStringSubmatchIndex(req.String)
		if loc == nil {
			return MatchResponse{}, nil
		}
		resp := MatchResponse{
			Matched: true,
			Match:   req.String[loc[0]:loc[1]],
			Span:    []int{loc[0], loc[1]},
		}
		for i := 2; i < len(loc); i += 2 {
			if loc[i] < 0 {
				resp.Groups = append(resp.Groups, "")
				continue
			}
			resp.Groups = append(resp.Groups, req.String[loc[i]:loc[i+1]])
		}
		return resp, nil
	}
}

// ReBundle returns the members of the re module. Patterns use RE2 syntax.
func ReBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"match":     NewJSONHandler(matcher("start")),
		"fullmatch": NewJSONHandler(matcher("full")),
		"search":    NewJSONHandler(matcher("")),
		"findall": NewJSONHandler(func(_ context.Context, req RegexRequest) (ListResponse, error) {
			re, err := compilePattern(req.Pattern, "")
			if err != nil {
				return ListResponse{}, err
			}
			n := req.Count
			if n <= 0 {
				n = -1
			}
			found := re.FindAllString(req.String, n)
			if found == nil {
				found = []string{}
			}
			return ListResponse{Values: found}, nil
		}),
		"sub": NewJSONHandler(func(_ context.Context, req RegexRequest) (TextResponse, error) {
			re, err := compilePattern(req.Pattern, "")
			if err != nil {
				return TextResponse{}, err
			}
			if req.Count <= 0 {
				return TextResponse{Value: re.ReplaceAllString(req.String, req.Repl)}, nil
			}
			n := 0
			out := re.ReplaceAllStringFunc(req.String, func(m string) string {
				if n >= req.Count {
					return m
				}
				n++
				return re.ReplaceAllString(m, req.Repl)
			})
			return TextResponse{Value: out}, nil
		}),
		"split": NewJSONHandler(func(_ context.Context, req RegexRequest) (ListResponse, error) {
			re, err := compilePattern(req.Pattern, "")
			if err != nil {
				return ListResponse{}, err
			}
			n := req.Count
			if n <= 0 {
				n = -1
			} else {
				n++
			}
			return ListResponse{Values: re.Split(req.String, n)}, nil
		}),
		"escape": NewJSONHandler(func(_ context.Context, req RegexRequest) (TextResponse, error) {
			return TextResponse{Value: regexp.QuoteMeta(req.String)}, nil
		}),
	})
}

func reModule() ModuleDef {
	return ModuleDef{
		Name: "re",
		Doc:  "regular expressions (RE2 syntax)",
		New:  static(ReBundle()),
		Requests: map[string]any{
			"match": RegexRequest{}, "fullmatch": RegexRequest{}, "search": RegexRequest{},
			"findall": RegexRequest{}, "sub": RegexRequest{}, "split": RegexRequest{},
			"escape": RegexRequest{},
		},
	}
}
