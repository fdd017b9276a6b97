package ports

// DocumentParser decodes a configuration document into out.
type DocumentParser interface {
	Parse(data []byte, out any) error
}
