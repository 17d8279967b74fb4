// Package header implements C2: an ordered, multi-valued header store with
// case-insensitive name comparison, plus a comma-folded single-field
// variant. It is grounded on the teacher's hdr package (itself a rewrite
// of net/textproto.MIMEHeader), generalized to preserve insertion order
// and to support the comma-fold wrapper described in spec.md §4.2.
package header

import "time"

// Common header names, interned as plain strings since Name wraps them
// lazily at Add/Set time; kept here for caller convenience, mirroring
// hdr/types_header.go's constant block.
const (
	Accept           = "Accept"
	AcceptEncoding   = "Accept-Encoding"
	Connection       = "Connection"
	ContentEncoding  = "Content-Encoding"
	ContentLength    = "Content-Length"
	ContentType      = "Content-Type"
	Date             = "Date"
	Expect           = "Expect"
	Host             = "Host"
	Server           = "Server"
	TransferEncoding = "Transfer-Encoding"
	Trailer          = "Trailer"
	Upgrade          = "Upgrade"
	UserAgent        = "User-Agent"
)

// TimeFormat is the wire format for the Date header, RFC 7231 §7.1.1.1.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// FormatDate renders t in the wire Date format (always GMT).
func FormatDate(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}
