package frame

// Source identifies which wire encoding a payload arrived in.
type Source int

const (
	// SourceInline is a data-URL style string: "<header>,<base64 body>".
	SourceInline Source = iota + 1
	// SourceUpload is a raw image file body.
	SourceUpload
)

func (s Source) String() string {
	switch s {
	case SourceInline:
		return "inline"
	case SourceUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// RawPayload is one undecoded frame. Exactly one of Text or Data is
// meaningful, selected by Source.
type RawPayload struct {
	Source Source
	Text   string
	Data   []byte
}

// Inline wraps a data-URL style frame string.
func Inline(text string) RawPayload {
	return RawPayload{Source: SourceInline, Text: text}
}

// Upload wraps raw image file bytes.
func Upload(data []byte) RawPayload {
	return RawPayload{Source: SourceUpload, Data: data}
}

// Empty reports whether the payload carries nothing to decode.
func (p RawPayload) Empty() bool {
	switch p.Source {
	case SourceInline:
		return p.Text == ""
	case SourceUpload:
		return len(p.Data) == 0
	default:
		return true
	}
}
