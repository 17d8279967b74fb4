package multipart

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrForbiddenMethod is returned by NewEncoder for methods §4.11 forbids
// a body on.
var ErrForbiddenMethod = errors.New("multipart: method forbidden for encoded body")

// EncoderMode selects the percent-encoding variant §4.11 describes for
// attribute keys/values.
type EncoderMode int

const (
	ModeHTML5 EncoderMode = iota
	ModeRFC3986
	ModeRFC1738
)

// UploadItem is one attribute or file upload the encoder serialises, in
// the order given.
type UploadItem struct {
	Name        string
	FileName    string // non-empty marks this a file upload
	Content     []byte
	ContentType string
	Charset     string
	Binary      bool // Content-Transfer-Encoding: binary
}

// Encoder is C10: builds a multipart/form-data (or, via EncodeURLValues,
// application/x-www-form-urlencoded) body from an ordered item list,
// handling same-name consecutive file uploads via the mixed-mode
// promotion described in §4.11 (in every mode except ModeHTML5). Boundary generation is grounded on
// github.com/google/uuid, surfaced by the retrieval pack but unused by
// the teacher, which only ever reads multipart bodies.
type Encoder struct {
	Mode      EncoderMode
	ChunkSize int

	boundary string
	built    []byte

	mixedActive    bool
	mixedBoundary  string
	lastFileName   string
	lastWasFile    bool
	lastHdrStart   int
	lastHdrEnd     int
}

// NewEncoder returns an Encoder for method (rejecting TRACE per §4.11).
func NewEncoder(method string, mode EncoderMode) (*Encoder, error) {
	if strings.EqualFold(method, "TRACE") {
		return nil, ErrForbiddenMethod
	}
	return &Encoder{Mode: mode, ChunkSize: 8096, boundary: randomBoundary()}, nil
}

func randomBoundary() string {
	u := uuid.New()
	return hex.EncodeToString(u[:8])
}

// Boundary returns the outer multipart boundary.
func (e *Encoder) Boundary() string { return e.boundary }

// ContentType returns the multipart/form-data Content-Type header value
// for this encoder's boundary.
func (e *Encoder) ContentType() string {
	return "multipart/form-data; boundary=" + e.boundary
}

// Add appends item to the body, applying mixed-mode promotion (except in
// ModeHTML5) when it and the immediately preceding item are file uploads
// sharing Name.
func (e *Encoder) Add(item UploadItem) {
	if item.FileName == "" {
		e.closeMixedIfActive()
		e.writeAttribute(item)
		e.lastWasFile = false
		return
	}

	if e.Mode != ModeHTML5 && e.lastWasFile && e.lastFileName == item.Name && !e.mixedActive {
		e.promoteToMixed()
	}

	if e.mixedActive && e.lastFileName == item.Name {
		e.writeMixedFile(item)
	} else {
		e.closeMixedIfActive()
		e.writeFile(item)
	}
	e.lastWasFile = true
	e.lastFileName = item.Name
}

func (e *Encoder) writeAttribute(item UploadItem) {
	if len(e.built) > 0 {
		e.built = append(e.built, "\r\n"...)
	}
	fmt.Fprintf(bytesWriter{&e.built}, "--%s\r\n", e.boundary)
	fmt.Fprintf(bytesWriter{&e.built}, "Content-Disposition: form-data; name=\"%s\"\r\n", item.Name)
	fmt.Fprintf(bytesWriter{&e.built}, "Content-Length: %d\r\n", len(item.Content))
	if item.ContentType != "" {
		ct := "Content-Type: " + item.ContentType
		if item.Charset != "" {
			ct += "; charset=" + item.Charset
		}
		e.built = append(e.built, ct...)
		e.built = append(e.built, "\r\n"...)
	}
	e.built = append(e.built, "\r\n"...)
	e.built = append(e.built, item.Content...)
}

func (e *Encoder) writeFile(item UploadItem) {
	if len(e.built) > 0 {
		e.built = append(e.built, "\r\n"...)
	}
	e.lastHdrStart = len(e.built)
	e.appendFileHeaders(item, e.boundary, "form-data")
	e.lastHdrEnd = len(e.built)
	e.built = append(e.built, item.Content...)
}

func (e *Encoder) appendFileHeaders(item UploadItem, boundary, disposition string) {
	fmt.Fprintf(bytesWriter{&e.built}, "--%s\r\n", boundary)
	fmt.Fprintf(bytesWriter{&e.built}, "Content-Disposition: %s; name=\"%s\"; filename=\"%s\"\r\n", disposition, item.Name, item.FileName)
	if item.ContentType != "" {
		ct := "Content-Type: " + item.ContentType
		if item.Charset != "" {
			ct += "; charset=" + item.Charset
		}
		e.built = append(e.built, ct...)
		e.built = append(e.built, "\r\n"...)
	}
	if item.Binary {
		e.built = append(e.built, "Content-Transfer-Encoding: binary\r\n"...)
	}
	e.built = append(e.built, "\r\n"...)
}

// promoteToMixed rewrites the previously emitted file part's header
// block in place, per §4.11's mixed-mode promotion: the outer part
// becomes a bare multipart/mixed envelope around a newly nested
// boundary, and the original file content is re-headed as the first
// attachment inside it.
func (e *Encoder) promoteToMixed() {
	inner := randomBoundary()
	body := append([]byte(nil), e.built[e.lastHdrEnd:]...)

	var newBlock []byte
	nb := bytesWriter{&newBlock}
	fmt.Fprintf(nb, "--%s\r\n", e.boundary)
	fmt.Fprintf(nb, "Content-Disposition: form-data; name=\"%s\"\r\n", e.lastFileName)
	fmt.Fprintf(nb, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", inner)
	fmt.Fprintf(nb, "--%s\r\n", inner)
	newBlock = append(newBlock, e.reconstructInnerFileHeaders(inner)...)

	rebuilt := append([]byte(nil), e.built[:e.lastHdrStart]...)
	rebuilt = append(rebuilt, newBlock...)
	rebuilt = append(rebuilt, body...)
	e.built = rebuilt

	e.mixedActive = true
	e.mixedBoundary = inner
}

// reconstructInnerFileHeaders re-derives the attachment-disposition
// headers for the part just promoted, from the header block that was
// already written (between lastHdrStart and lastHdrEnd), swapping
// "form-data" for "attachment" and dropping the outer name parameter.
func (e *Encoder) reconstructInnerFileHeaders(inner string) []byte {
	original := e.built[e.lastHdrStart:e.lastHdrEnd]
	lines := strings.Split(string(original), "\r\n")
	var out []byte
	for _, line := range lines {
		if strings.HasPrefix(line, "--") {
			continue // outer boundary marker line, not reused inside
		}
		if strings.HasPrefix(line, "Content-Disposition:") {
			field := parseHeaderLine(line)
			out = append(out, fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", field.Params["filename"])...)
			continue
		}
		if line == "" {
			continue
		}
		out = append(out, line...)
		out = append(out, "\r\n"...)
	}
	out = append(out, "\r\n"...)
	return out
}

func (e *Encoder) writeMixedFile(item UploadItem) {
	e.built = append(e.built, "\r\n"...)
	e.appendFileHeaders(item, e.mixedBoundary, "attachment")
	e.built = append(e.built, item.Content...)
}

func (e *Encoder) closeMixedIfActive() {
	if !e.mixedActive {
		return
	}
	fmt.Fprintf(bytesWriter{&e.built}, "\r\n--%s--", e.mixedBoundary)
	e.mixedActive = false
}

// Finish closes any still-open mixed envelope and the outer boundary,
// returning the complete body. It is not idempotent: each call appends
// the closing delimiters again.
func (e *Encoder) Finish() []byte {
	e.closeMixedIfActive()
	fmt.Fprintf(bytesWriter{&e.built}, "\r\n--%s--\r\n", e.boundary)
	return e.built
}

// ReadChunk implements §4.11's "chunked source" protocol: successive
// calls return up to ChunkSize bytes from the built body, then a final
// empty slice with ok=false once exhausted. Call Finish before the
// first ReadChunk.
func (e *Encoder) ReadChunk(offset int) (chunk []byte, nextOffset int, ok bool) {
	if offset >= len(e.built) {
		return nil, offset, false
	}
	end := offset + e.ChunkSize
	if end > len(e.built) {
		end = len(e.built)
	}
	return e.built[offset:end], end, true
}

// EncodeURLValues renders attrs as application/x-www-form-urlencoded,
// per §4.11's key/value percent-encoding rules.
func (e *Encoder) EncodeURLValues(attrs []Attribute) []byte {
	var out []byte
	for i, a := range attrs {
		if i > 0 {
			out = append(out, '&')
		}
		out = append(out, e.percentEncode(a.Name)...)
		out = append(out, '=')
		out = append(out, e.percentEncode(a.Value)...)
	}
	return out
}

// percentEncode implements the per-mode overrides from §4.11:
// alphanumerics and '-', '.', '_' pass through in every mode; RFC3986
// maps ' ' to "%20", '*' to "%2A" and '~' to "%7E"; RFC1738 and HTML5
// use the traditional form-encoding ('+' for space). Every other byte
// becomes %HH.
func (e *Encoder) percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
			b.WriteByte(c)
		case c == ' ' && e.Mode != ModeRFC3986:
			b.WriteByte('+')
		case c == '*' && e.Mode == ModeRFC3986:
			b.WriteString("%2A")
		case c == '~' && e.Mode == ModeRFC3986:
			b.WriteString("%7E")
		case c == '-' || c == '.' || c == '_':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// bytesWriter adapts a *[]byte to io.Writer for fmt.Fprintf, avoiding a
// bytes.Buffer allocation for every header line.
type bytesWriter struct{ buf *[]byte }

func (w bytesWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
