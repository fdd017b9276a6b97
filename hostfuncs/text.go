package hostfuncs

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TextRequest carries a string argument and optional parameters.
type TextRequest struct {
	S     string `json:"s"`
	Chars string `json:"chars,omitempty"`
	Sep   string `json:"sep,omitempty"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new,omitempty"`
	Sub   string `json:"sub,omitempty"`
	Count int    `json:"count,omitempty"`
}

// JoinRequest joins Parts with Sep.
type JoinRequest struct {
	Sep   string   `json:"sep"`
	Parts []string `json:"parts"`
}

// TextResponse carries a string result.
type TextResponse struct {
	Value string `json:"value"`
}

// ListResponse carries a list of strings.
type ListResponse struct {
	Values []string `json:"values"`
}

// StringConstants mirrors the character classes of the string module.
type StringConstants struct {
	ASCIILetters   string `json:"ascii_letters"`
	ASCIILowercase string `json:"ascii_lowercase"`
	ASCIIUppercase string `json:"ascii_uppercase"`
	Digits         string `json:"digits"`
	HexDigits      string `json:"hexdigits"`
	OctDigits      string `json:"octdigits"`
	Punctuation    string `json:"punctuation"`
	Whitespace     string `json:"whitespace"`
}

var stringConstants = StringConstants{
	ASCIILetters:   "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	ASCIILowercase: "abcdefghijklmnopqrstuvwxyz",
	ASCIIUppercase: "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	Digits:         "0123456789",
	HexDigits:      "0123456789abcdefABCDEF",
	OctDigits:      "01234567",
	Punctuation:    "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~",
	Whitespace:     " \t\n\r\x0b\x0c",
}

func textFunc(fn func(TextRequest) string) HostFunc[TextRequest, TextResponse] {
	return func(_ context.Context, req TextRequest) (TextResponse, error) {
		return TextResponse{Value: fn(req)}, nil
	}
}

// StringBundle returns the members of the string module.
func StringBundle() HostFuncBundle {
	title := cases.Title(language.Und)
	return NewBundle(map[string]ByteHandler{
		"constants": NewJSONHandler(func(context.Context, struct{}) (StringConstants, error) {
			return stringConstants, nil
		}),
		"upper": NewJSONHandler(textFunc(func(r TextRequest) string { return strings.ToUpper(r.S) })),
		"lower": NewJSONHandler(textFunc(func(r TextRequest) string { return strings.ToLower(r.S) })),
		"capwords": NewJSONHandler(textFunc(func(r TextRequest) string {
			words := strings.Fields(r.S)
			for i, w := range words {
				words[i] = title.String(w)
			}
			return strings.Join(words, " ")
		})),
		"strip": NewJSONHandler(textFunc(func(r TextRequest) string {
			if r.Chars == "" {
				return strings.TrimSpace(r.S)
			}
			return strings.Trim(r.S, r.Chars)
		})),
		"replace": NewJSONHandler(textFunc(func(r TextRequest) string {
			n := r.Count
			if n <= 0 {
				n = -1
			}
			return strings.Replace(r.S, r.Old, r.New, n)
		})),
		"split": NewJSONHandler(func(_ context.Context, r TextRequest) (ListResponse, error) {
			if r.Sep == "" {
				return ListResponse{Values: strings.Fields(r.S)}, nil
			}
			n := r.Count
			if n <= 0 {
				n = -1
			} else {
				n++
			}
			return ListResponse{Values: strings.SplitN(r.S, r.Sep, n)}, nil
		}),
		"join": NewJSONHandler(func(_ context.Context, r JoinRequest) (TextResponse, error) {
			return TextResponse{Value: strings.Join(r.Parts, r.Sep)}, nil
		}),
		"find": NewJSONHandler(func(_ context.Context, r TextRequest) (IntResponse, error) {
			return IntResponse{Value: int64(strings.Index(r.S, r.Sub))}, nil
		}),
	})
}

func stringModule() ModuleDef {
	return ModuleDef{
		Name: "string",
		Doc:  "string constants and helpers",
		New:  static(StringBundle()),
		Requests: map[string]any{
			"upper": TextRequest{}, "lower": TextRequest{}, "capwords": TextRequest{},
			"strip": TextRequest{}, "replace": TextRequest{}, "split": TextRequest{},
			"join": JoinRequest{}, "find": TextRequest{},
		},
	}
}
