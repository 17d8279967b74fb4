package multipart

import (
	"mime"
	"strings"

	"github.com/pkg/errors"
)

// ErrMissingBoundary is returned by NewDecoderFromContentType when the
// Content-Type header carries no boundary parameter.
var ErrMissingBoundary = errors.New("multipart: missing boundary parameter")

// ErrMissingDisposition is the fatal error for a part with no
// Content-Disposition header, per §4.9.
var ErrMissingDisposition = errors.New("multipart: missing content-disposition")

type decState int

const (
	// stScanning covers NotStarted, Preamble, and HeaderDelimiter: the
	// decoder is searching for the next (outer) boundary marker,
	// discarding bytes ahead of it as preamble if current is nil, or
	// appending them to current's body otherwise.
	stScanning decState = iota
	stDisposition
	stMixedScanning
	stMixedDisposition
	stDone
)

// Decoder is C9: the incremental multipart/form-data state machine
// described in §4.9. Feed content chunks to it as they arrive; Next
// pops completed parts as they become available.
type Decoder struct {
	Boundary         string
	Charset          string
	DiscardThreshold int64
	Factory          *StorageFactory

	dash   []byte
	nlDash []byte

	state     decState
	buf       []byte
	pos       int
	eof       bool
	bodyTotal int64

	completed []*Part
	popped    int
	byName    map[string][]*Part
	current   *Part

	pendingHeaders []headerField

	mixedDash      []byte
	mixedNlDash    []byte
	mixedFieldName string
	mixedBodyTotal int64
}

// NewDecoderFromContentType parses contentType's boundary and optional
// charset parameters and returns a ready Decoder.
func NewDecoderFromContentType(contentType string, factory *StorageFactory) (*Decoder, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, err
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, ErrMissingBoundary
	}
	return NewDecoder(boundary, params["charset"], factory), nil
}

// NewDecoder returns a ready Decoder for the given boundary.
func NewDecoder(boundary, charset string, factory *StorageFactory) *Decoder {
	return &Decoder{
		Boundary:         boundary,
		Charset:          charset,
		DiscardThreshold: 10 * 1024 * 1024,
		Factory:          factory,
		dash:             []byte("--" + boundary),
		nlDash:           []byte("\r\n--" + boundary),
		byName:           make(map[string][]*Part),
	}
}

// Feed appends data to the decoder's buffer (last marks end-of-body) and
// drives the state machine as far forward as the available bytes allow.
func (d *Decoder) Feed(data []byte, last bool) error {
	if len(data) > 0 {
		d.buf = append(d.buf, data...)
	}
	if last {
		d.eof = true
	}
	for {
		progressed, err := d.step()
		if err != nil {
			return err
		}
		if !progressed {
			d.maybeCompact()
			return nil
		}
	}
}

func (d *Decoder) maybeCompact() {
	if int64(d.pos) < d.DiscardThreshold {
		return
	}
	d.buf = append([]byte(nil), d.buf[d.pos:]...)
	d.pos = 0
}

func (d *Decoder) step() (bool, error) {
	switch d.state {
	case stScanning:
		return d.stepScanning(&dashState{dash: d.dash, nlDash: d.nlDash, total: &d.bodyTotal}, false)
	case stDisposition:
		return d.stepDisposition(false)
	case stMixedScanning:
		return d.stepScanning(&dashState{dash: d.mixedDash, nlDash: d.mixedNlDash, total: &d.mixedBodyTotal}, true)
	case stMixedDisposition:
		return d.stepDisposition(true)
	case stDone:
		d.pos = len(d.buf)
		return false, nil
	}
	return false, nil
}

// dashState bundles one boundary level's matching state (outer or
// mixed/inner) for stepScanning.
type dashState struct {
	dash, nlDash []byte
	total        *int64
}

func (d *Decoder) stepScanning(ds *dashState, mixed bool) (bool, error) {
	res := scanUntilBoundary(d.buf[d.pos:], ds.dash, ds.nlDash, *ds.total, d.eof)
	if res.NeedMoreData {
		return false, nil
	}
	if !res.Found {
		if res.BodyLen == 0 {
			return false, nil
		}
		body := d.buf[d.pos : d.pos+res.BodyLen]
		if d.current != nil {
			if err := d.current.AddContent(body, false); err != nil {
				return false, err
			}
		}
		d.pos += res.BodyLen
		*ds.total += int64(res.BodyLen)
		return true, nil
	}

	body := d.buf[d.pos : d.pos+res.BodyLen]
	markerEnd := d.pos + res.BodyLen + res.MarkerLen
	line, next, ok := readLine(d.buf, markerEnd)
	if !ok {
		return false, nil
	}

	if d.current != nil {
		if err := d.current.AddContent(body, true); err != nil {
			return false, err
		}
		d.finalizePart(d.current, mixed)
		d.current = nil
	}

	closing := strings.TrimSpace(line) == "--"
	d.pos = next
	*ds.total = 0

	switch {
	case closing && mixed:
		d.state = stScanning
	case closing:
		d.state = stDone
	case mixed:
		d.pendingHeaders = nil
		d.state = stMixedDisposition
	default:
		d.pendingHeaders = nil
		d.state = stDisposition
	}
	return true, nil
}

func (d *Decoder) finalizePart(p *Part, mixed bool) {
	p.Completed = true
	d.completed = append(d.completed, p)
	d.byName[p.FieldName] = append(d.byName[p.FieldName], p)
}

func (d *Decoder) stepDisposition(mixed bool) (bool, error) {
	for {
		line, next, ok := readLine(d.buf, d.pos)
		if !ok {
			return false, nil
		}
		if line == "" {
			d.pos = next
			return true, d.startPart(mixed)
		}
		d.pendingHeaders = append(d.pendingHeaders, parseHeaderLine(line))
		d.pos = next
	}
}

func (d *Decoder) startPart(mixed bool) error {
	headers := d.pendingHeaders
	d.pendingHeaders = nil

	var disposition, contentType, cte string
	var declaredSize int64 = -1
	var fieldName, fileName string
	haveDisposition := false

	for _, h := range headers {
		switch strings.ToLower(h.Name) {
		case "content-disposition":
			haveDisposition = true
			disposition = strings.ToLower(h.Value)
			fieldName = h.Params["name"]
			fileName = h.Params["filename"]
		case "content-type":
			contentType = h.Raw
		case "content-transfer-encoding":
			cte = h.Value
		case "content-length":
			if n, err := parsePositiveInt64(h.Value); err == nil {
				declaredSize = n
			}
		}
	}

	if mixed {
		// Inner mixed parts use "attachment" dispositions per §4.9 but
		// share the outer field's name.
		fieldName = d.mixedFieldName
	} else if !haveDisposition {
		return ErrMissingDisposition
	} else if disposition != "form-data" && disposition != "attachment" && disposition != "file" {
		return ErrMissingDisposition
	}

	if !validTransferEncoding(cte) {
		return ErrBadTransferEncoding
	}

	if !mixed && isMultipartMixed(contentType) {
		boundary := mixedBoundaryOf(contentType)
		if boundary == "" {
			return ErrMissingBoundary
		}
		d.mixedDash = []byte("--" + boundary)
		d.mixedNlDash = []byte("\r\n--" + boundary)
		d.mixedFieldName = fieldName
		d.mixedBodyTotal = 0
		d.state = stMixedScanning
		return nil
	}

	part := d.Factory.NewPart(fieldName, fileName, contentType)
	part.TransferEncoding = cte
	part.DeclaredSize = declaredSize
	d.current = part

	if mixed {
		d.state = stMixedScanning
	} else {
		d.state = stScanning
	}
	return nil
}

func isMultipartMixed(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.EqualFold(mt, "multipart/mixed")
}

func mixedBoundaryOf(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["boundary"]
}

func parsePositiveInt64(s string) (int64, error) {
	var n int64
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.New("multipart: invalid content-length")
		}
		n = n*10 + int64(s[i]-'0')
	}
	if s == "" {
		return 0, errors.New("multipart: invalid content-length")
	}
	return n, nil
}

// HasNext reports whether another completed part is available; it never
// returns true before the final chunk has been fed, per §4.9's "Public
// iteration".
func (d *Decoder) HasNext() bool {
	return d.eof && d.state == stDone && d.popped < len(d.completed)
}

// Next pops and returns the next completed part.
func (d *Decoder) Next() *Part {
	if d.popped >= len(d.completed) {
		return nil
	}
	p := d.completed[d.popped]
	d.popped++
	return p
}

// CurrentPartial returns the part currently being accumulated, for
// progress UIs; nil between parts.
func (d *Decoder) CurrentPartial() *Part { return d.current }

// Parts returns every completed part for name, in arrival order.
func (d *Decoder) Parts(name string) []*Part { return d.byName[name] }

// Destroy releases the undecoded buffer, deletes every not-yet-popped
// part, and runs the storage factory's per-request cleanup sweep.
func (d *Decoder) Destroy() error {
	d.buf = nil
	for _, p := range d.completed[d.popped:] {
		_ = p.Delete()
	}
	if d.current != nil {
		_ = d.current.Delete()
	}
	if d.Factory != nil {
		return d.Factory.Cleanup()
	}
	return nil
}
