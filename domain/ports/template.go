package ports

// TemplateEngine expands placeholders in a configuration document before it
// is validated. Missing variables must be an error, not an empty string.
type TemplateEngine interface {
	Render(raw []byte, vars map[string]any) ([]byte, error)
}
