// Package token implements C1: the ASCII-only identifier type with
// case-insensitive hashing, and the header-name/value validators from
// spec.md §3. It is the lowest leaf of the module — both the root
// httpwire package and the header package depend on it, and it depends on
// nothing else in this module.
package token

import "github.com/cespare/xxhash/v2"

// Name is an ASCII-only identifier, such as a header field name or a
// method token, compared and hashed case-insensitively per the §3 "Header
// name" invariant.
type Name struct {
	raw  string
	hash uint64
}

// New interns s as a Name. The original casing in String is preserved so
// on-wire emission can still honour caller-supplied casing where the spec
// allows it; only the hash is case-folded.
func New(s string) Name {
	return Name{raw: s, hash: hashLowerASCII(s)}
}

// String returns the identifier exactly as supplied to New.
func (n Name) String() string { return n.raw }

// IsZero reports whether n was never assigned (its zero value).
func (n Name) IsZero() bool { return n.raw == "" && n.hash == 0 }

// Hash returns a case-insensitive hash of n, suitable as a map key
// alongside Equal.
func (n Name) Hash() uint64 { return n.hash }

// Equal reports whether n and other are the same identifier, comparing
// case-insensitively.
func (n Name) Equal(other Name) bool {
	if n.hash != other.hash {
		return false
	}
	return EqualFold(n.raw, other.raw)
}

func hashLowerASCII(s string) uint64 {
	d := xxhash.New()
	buf := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		buf[i] = LowerASCII(s[i])
	}
	_, _ = d.Write(buf)
	return d.Sum64()
}

// LowerASCII folds b to lower case if it is an ASCII letter, leaving every
// other byte untouched.
func LowerASCII(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// EqualFold reports whether a and b are equal under ASCII case folding.
func EqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if LowerASCII(a[i]) != LowerASCII(b[i]) {
			return false
		}
	}
	return true
}

// forbiddenNameByte reports whether b is one of the octets §3 forbids in a
// header name: NUL, TAB, LF, VT, FF, CR, SP, ',', ':', ';', '=', or any
// byte above 0x7F.
func forbiddenNameByte(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x20, 0x2C, 0x3A, 0x3B, 0x3D:
		return true
	}
	return b > 0x7F
}

// ValidHeaderName reports whether s satisfies §3's header-name grammar: a
// non-empty ASCII string containing none of the forbidden bytes.
func ValidHeaderName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if forbiddenNameByte(s[i]) {
			return false
		}
	}
	return true
}

// ValidHeaderValue reports whether s satisfies §3's header-value grammar:
// no NUL/VT/FF; CR only when immediately followed by LF; LF only when
// immediately followed by SP or HT (obs-fold); and the value must not
// terminate in CR or LF.
func ValidHeaderValue(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch b {
		case 0x00, 0x0B, 0x0C:
			return false
		case '\r':
			if i == len(s)-1 || s[i+1] != '\n' {
				return false
			}
		case '\n':
			if i == 0 || s[i-1] != '\r' {
				return false
			}
			if i == len(s)-1 {
				return false
			}
			if s[i+1] != ' ' && s[i+1] != '\t' {
				return false
			}
		}
	}
	if len(s) > 0 {
		last := s[len(s)-1]
		if last == '\r' || last == '\n' {
			return false
		}
	}
	return true
}

// IsObsFoldContinuation reports whether b may begin an obs-fold
// continuation line (SP or HT), per §4.3 "Header folding".
func IsObsFoldContinuation(b byte) bool { return b == ' ' || b == '\t' }

// HeaderValueContainsToken reports whether v, a comma-separated header
// value, contains token after trimming optional whitespace around each
// comma-separated element, ASCII case-insensitively. This is the
// "ContainsSequence"-style helper referenced in spec.md §9's open
// question: it intentionally trims differently (OWS around each element)
// than a plain substring Contains, and the two must not be unified.
func HeaderValueContainsToken(v, tok string) bool {
	for _, part := range splitOWS(v, ',') {
		if EqualFold(part, tok) {
			return true
		}
	}
	return false
}

func splitOWS(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == sep {
			out = append(out, trimOWS(s[start:i]))
			start = i + 1
		}
	}
	return out
}

func trimOWS(s string) string {
	i, j := 0, len(s)
	for i < j && isOWS(s[i]) {
		i++
	}
	for j > i && isOWS(s[j-1]) {
		j--
	}
	return s[i:j]
}

func isOWS(b byte) bool { return b == ' ' || b == '\t' }
