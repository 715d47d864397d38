package ports

// PasteKind discriminates the three substitution channels a host editor
// feeds into a tool.
type PasteKind string

const (
	// PasteTag is an intercepted element matching the tool's declared tags
	PasteTag PasteKind = "tag"

	// PastePattern is pasted text matching a declared pattern
	PastePattern PasteKind = "pattern"

	// PasteFile is a pasted or dropped binary
	PasteFile PasteKind = "file"
)

// PasteEvent is one paste delivery. Exactly one payload field is meaningful,
// selected by Kind.
type PasteEvent struct {
	Kind PasteKind

	// HTML holds the intercepted element's markup for PasteTag
	HTML string

	// Text holds the matched text for PastePattern
	Text string

	// File holds the binary payload for PasteFile
	File *FileUpload
}

// PasteConfig declares what a tool wants intercepted. The host compiles
// Patterns itself; they are plain regexp sources.
type PasteConfig struct {
	Tags      []string          `json:"tags"`
	Patterns  map[string]string `json:"patterns"`
	MimeTypes []string          `json:"mimeTypes"`
}
