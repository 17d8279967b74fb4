package multipart

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/htmlindex"
)

// ErrMalformedEscape is returned when a %HH escape in a urlencoded body
// is not two valid hex digits, per §4.10.
var ErrMalformedEscape = errors.New("multipart: malformed percent-escape")

type urlState int

const (
	urlDisposition urlState = iota // awaiting '=' to end the key
	urlField                       // awaiting '&'/CRLF/LF to end the value
)

// URLEncodedDecoder is the §4.10 form-urlencoded decoder: a small state
// machine over "key=value(&key=value)*" driven incrementally off content
// chunks through the same Feed(data, last) call as C9's Decoder. Unlike
// C9 it has no per-item pop: decoded pairs are read back with
// Attributes.
type URLEncodedDecoder struct {
	Charset string

	state  urlState
	keyBuf []byte
	valBuf []byte
	attrs  []Attribute
}

// Attribute is one decoded key/value pair.
type Attribute struct {
	Name  string
	Value string
}

// NewURLEncodedDecoder returns a decoder that percent-decodes values
// using charset (empty defaults to UTF-8 passthrough).
func NewURLEncodedDecoder(charset string) *URLEncodedDecoder {
	return &URLEncodedDecoder{Charset: charset}
}

// Feed consumes one content chunk's bytes. On last=true, any pending
// attribute (possibly with an empty value) is flushed.
func (d *URLEncodedDecoder) Feed(data []byte, last bool) error {
	for _, b := range data {
		switch b {
		case '=':
			if d.state == urlDisposition {
				d.state = urlField
				continue
			}
			d.appendByte(b)
		case '&', '\n':
			if err := d.flush(); err != nil {
				return err
			}
		case '\r':
			// Swallowed: a well-formed body only carries '\r' as the
			// first half of a CRLF terminator, and '\n' alone already
			// triggers flush.
		default:
			d.appendByte(b)
		}
	}
	if last {
		return d.flush()
	}
	return nil
}

func (d *URLEncodedDecoder) appendByte(b byte) {
	if d.state == urlDisposition {
		d.keyBuf = append(d.keyBuf, b)
	} else {
		d.valBuf = append(d.valBuf, b)
	}
}

func (d *URLEncodedDecoder) flush() error {
	if len(d.keyBuf) == 0 && len(d.valBuf) == 0 && d.state == urlDisposition {
		return nil
	}
	key, err := d.decode(d.keyBuf)
	if err != nil {
		return err
	}
	val, err := d.decode(d.valBuf)
	if err != nil {
		return err
	}
	d.attrs = append(d.attrs, Attribute{Name: key, Value: val})
	d.keyBuf = nil
	d.valBuf = nil
	d.state = urlDisposition
	return nil
}

// decode percent-decodes b ('+' as space, '%HH' as the encoded byte) and
// applies Charset via htmlindex if set.
func (d *URLEncodedDecoder) decode(b []byte) (string, error) {
	raw, err := percentDecode(b)
	if err != nil {
		return "", err
	}
	if d.Charset == "" || strings.EqualFold(d.Charset, "utf-8") {
		return string(raw), nil
	}
	dec, err := htmlindex.Get(d.Charset)
	if err != nil {
		return "", errors.Wrapf(err, "multipart: unknown charset %q", d.Charset)
	}
	out, err := dec.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func percentDecode(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '+':
			out = append(out, ' ')
		case '%':
			if i+2 >= len(b) {
				return nil, ErrMalformedEscape
			}
			n, err := strconv.ParseUint(string(b[i+1:i+3]), 16, 8)
			if err != nil {
				return nil, ErrMalformedEscape
			}
			out = append(out, byte(n))
			i += 2
		default:
			out = append(out, b[i])
		}
	}
	return out, nil
}

// Attributes returns every decoded attribute so far.
func (d *URLEncodedDecoder) Attributes() []Attribute { return d.attrs }
