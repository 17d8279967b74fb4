package httpwire

import (
	"bytes"

	"github.com/pkg/errors"
)

// ErrFrameTooLong is returned when a line exceeds its configured byte cap
// before an LF is found; it is a "framing" error per §7 and is fatal for
// the current message.
var ErrFrameTooLong = errors.New("httpwire: frame too long")

// needMoreData is the sentinel returned by the line parsers (and, by
// extension, the decoder's state functions) meaning "leave the reader
// index where it is; call again once more bytes have arrived".
var needMoreData = errors.New("httpwire: need more data")

// LineParser accumulates bytes until it sees an LF, at which point it
// returns the line with any trailing CR and the LF itself stripped. It
// never looks past its Limit bytes without finding an LF.
//
// A partial line is kept in the parser across Parse calls until its LF
// arrives. The decoder calls Reset once before each request/status line
// and chunk-size line (initial-line use), and once before each header or
// trailer section (header-line use).
type LineParser struct {
	Limit int

	acc []byte // bytes accumulated so far, not yet terminated by LF
}

// Reset clears any partially accumulated line.
func (p *LineParser) Reset() { p.acc = p.acc[:0] }

// Parse consumes bytes from buf starting at *pos, looking for an LF. On
// success it returns the decoded line (CR and LF stripped) and advances
// *pos past the LF. On "need more data" it returns (nil, needMoreData),
// copies the unterminated bytes into the parser and advances *pos to
// len(buf), so a subsequent call with the following bytes resumes where
// this one stopped.
func (p *LineParser) Parse(buf []byte, pos *int) ([]byte, error) {
	rest := buf[*pos:]
	idx := bytes.IndexByte(rest, '\n')
	if idx == -1 {
		if p.Limit > 0 && len(p.acc)+len(rest) > p.Limit {
			return nil, ErrFrameTooLong
		}
		p.acc = append(p.acc, rest...)
		*pos = len(buf)
		return nil, needMoreData
	}

	line := rest[:idx]
	if p.Limit > 0 && len(p.acc)+len(line) > p.Limit {
		return nil, ErrFrameTooLong
	}
	*pos += idx + 1

	if len(p.acc) > 0 {
		line = append(p.acc, line...)
		p.acc = nil
	}
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, nil
}

// Len reports how many bytes are currently buffered without a terminating
// LF, used by callers enforcing a byte cap across Parse calls.
func (p *LineParser) Len() int { return len(p.acc) }

// skipControlOrSpace advances *pos past any leading ISO control or
// whitespace bytes, per §4.3's "Leading whitespace" rule. It returns the
// number of bytes skipped.
func skipControlOrSpace(buf []byte, pos *int) int {
	start := *pos
	for *pos < len(buf) {
		b := buf[*pos]
		if b > 0x20 && b != 0x7F {
			break
		}
		*pos++
	}
	return *pos - start
}

// splitInitialLineRaw splits line into exactly three whitespace-delimited
// fields, with the third field extending to the end of line (to capture a
// reason phrase, which may contain interior spaces). It reports ok=false
// if fewer than three fields are present, in which case §4.3's lenient
// recovery discards the line without emitting.
func splitInitialLineRaw(line []byte) (a, b, c []byte, ok bool) {
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	start := i
	for i < len(line) && line[i] != ' ' {
		i++
	}
	if i == start {
		return nil, nil, nil, false
	}
	a = line[start:i]

	for i < len(line) && line[i] == ' ' {
		i++
	}
	start = i
	for i < len(line) && line[i] != ' ' {
		i++
	}
	if i == start {
		return nil, nil, nil, false
	}
	b = line[start:i]

	for i < len(line) && line[i] == ' ' {
		i++
	}
	if i >= len(line) {
		return nil, nil, nil, false
	}
	c = line[i:]
	return a, b, c, true
}
