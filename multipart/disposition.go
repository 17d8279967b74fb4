package multipart

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrBadTransferEncoding is a fatal error per §4.9: Content-Transfer-Encoding
// must be one of 7bit, 8bit, binary.
var ErrBadTransferEncoding = errors.New("multipart: unsupported content-transfer-encoding")

// headerField is one "Name: value; param=x; param2=\"y\"" disposition
// line, split into its name and raw parameter segments.
type headerField struct {
	Name   string
	Value  string
	Raw    string // the full post-colon text, untouched, for callers needing a real mime.ParseMediaType
	Params map[string]string
}

// parseHeaderLine interprets one non-empty part header line (as produced
// by readLine), per §4.9 "Disposition parsing". The caller
// (Decoder.stepDisposition) collects lines until the blank line.
func parseHeaderLine(line string) headerField {
	colon := strings.IndexByte(line, ':')
	if colon == -1 {
		return headerField{Name: strings.TrimSpace(line), Params: map[string]string{}}
	}
	name := strings.TrimSpace(line[:colon])
	rest := line[colon+1:]

	segments := splitRespectingQuotes(rest, ';')
	value := strings.TrimSpace(segments[0])
	raw := strings.TrimSpace(rest)
	params := make(map[string]string, len(segments)-1)
	for _, seg := range segments[1:] {
		seg = strings.TrimSpace(seg)
		eq := strings.IndexByte(seg, '=')
		if eq == -1 {
			continue
		}
		pname := strings.ToLower(strings.TrimSpace(seg[:eq]))
		praw := strings.TrimSpace(seg[eq+1:])
		if pname == "filename" {
			params[pname] = unquoteKeepInner(praw)
			continue
		}
		params[pname] = sanitizeParamValue(praw)
	}
	return headerField{Name: name, Value: value, Raw: raw, Params: params}
}

// splitRespectingQuotes splits s on sep, treating double-quoted spans
// (where only '"' and '\\' are special, per §4.9) as atomic.
func splitRespectingQuotes(s string, sep byte) []string {
	var out []string
	start := 0
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inQuotes {
				i++ // skip the escaped byte
			}
		case '"':
			inQuotes = !inQuotes
		case sep:
			if !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// unquoteKeepInner strips one pair of surrounding double quotes (if
// present) and leaves the inner bytes untouched, per §4.9's "filename
// parameter's quoted value is kept as-is".
func unquoteKeepInner(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// sanitizeParamValue implements §4.9's non-filename parameter cleanup:
// ':', ',', '=', ';', TAB mapped to space, '"' removed, then trimmed.
func sanitizeParamValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ':', ',', '=', ';', '\t':
			b.WriteByte(' ')
		case '"':
			// dropped entirely
		default:
			b.WriteByte(s[i])
		}
	}
	return strings.TrimSpace(b.String())
}

// validTransferEncoding reports whether enc is one of the three values
// §4.9 permits for Content-Transfer-Encoding, or empty (header absent).
func validTransferEncoding(enc string) bool {
	switch strings.ToLower(enc) {
	case "", "7bit", "8bit", "binary":
		return true
	}
	return false
}
