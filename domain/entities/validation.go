package entities

// ValidationResult lists every schema violation in a document. Valid is true
// only when Errors is empty.
type ValidationResult struct {
	Errors []ValidationError
	Valid  bool
}

// ValidationError is one violation; Field is a JSON pointer, empty for the
// document root.
type ValidationError struct {
	Field   string
	Message string
}
