package memo

// Buffer is the editor-side accessor for a single buffer. Implementations
// bridge to whatever host delivers the events: the HTTP API binds one to a
// request/response pair, tests use an in-memory fake.
type Buffer interface {
	// Name returns the buffer's associated file name, or "" for an
	// unnamed/scratch buffer.
	Name() string
	// Filetype returns the buffer's current filetype value.
	Filetype() string
	// SetFiletype assigns the buffer's filetype property.
	SetFiletype(ft string) error
}
