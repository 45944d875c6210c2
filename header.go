// ABOUTME: HPROF dump preamble parser
// ABOUTME: Reads the format tag, identifier width, and creation timestamp

package hprof

// Header is the parsed HPROF preamble: a NUL-terminated format tag, the
// identifier width governing every subsequent decode, and the dump-creation
// timestamp.
type Header struct {
	// Tag is the format tag bytes, e.g. "JAVA PROFILE 1.0.2", without the
	// terminating NUL. It borrows from the mapped file.
	Tag []byte
	// IDWidth is 4 or 8, per spec.
	IDWidth IDWidth
	// TimestampMs is the dump-creation time, milliseconds since the Unix
	// epoch.
	TimestampMs uint64
	// BodyOffset is the absolute offset of the first top-level record.
	BodyOffset int
}

// ParseHeader parses the HPROF preamble at the start of buf.
func ParseHeader(buf []byte) (Header, error) {
	// The tag is read before the identifier width is known, so use a
	// bare cursor; cString doesn't depend on width.
	c := newCursor(buf, IDWidth8)

	tag, err := c.cString()
	if err != nil {
		return Header{}, err
	}

	rawWidth, err := c.u32()
	if err != nil {
		return Header{}, err
	}
	width := IDWidth(rawWidth)
	if width != IDWidth4 && width != IDWidth8 {
		return Header{}, ErrUnsupportedIDWidth
	}

	ts, err := c.u64()
	if err != nil {
		return Header{}, err
	}

	return Header{
		Tag:         tag,
		IDWidth:     width,
		TimestampMs: ts,
		BodyOffset:  c.off,
	}, nil
}
