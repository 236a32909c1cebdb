package doc

// Identity names one document: the registered type key plus the key value.
//
// Within one session an identity resolves to at most one live instance;
// the session's identity map enforces that.
type Identity struct {
	// Type is the registered document type key (e.g. "widget").
	Type string

	// Key is the document key rendered as a string. Mappings for numeric
	// application keys format them at the extraction boundary so the rest
	// of the engine handles one key shape.
	Key string
}

// IsZero reports whether the identity carries no key.
func (id Identity) IsZero() bool {
	return id.Type == "" || id.Key == ""
}

func (id Identity) String() string {
	return id.Type + "/" + id.Key
}
