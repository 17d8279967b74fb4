package multipart

import "bytes"

// scanResult is scanUntilBoundary's outcome for one call.
type scanResult struct {
	BodyLen      int  // bytes at the front of buf confirmed as body data
	MarkerLen    int  // length of the boundary marker immediately after BodyLen, if Found
	Found        bool // a boundary marker was confirmed right after BodyLen
	NeedMoreData bool // buf does not yet hold enough to decide
}

// scanUntilBoundary reports how many bytes at the front of buf are
// confirmed part-body data, and whether they are immediately followed by
// a boundary marker, given dashBoundary ("--boundary") and
// nlDashBoundary ("\r\n--boundary" or "\n--boundary"). eof indicates no
// further bytes are coming. total is the number of body bytes already
// flushed for the part under construction (0 accepts a bare dashBoundary
// with no preceding CRLF, i.e. the very first boundary of the message).
//
// Ported from the teacher's mime/utils.go scanUntilBoundary/matchAfterPrefix
// (itself a transcription of net/textproto's multipart reader), adapted
// from an io.Reader pull loop to the decoder's growable buffer.
func scanUntilBoundary(buf []byte, dashBoundary, nlDashBoundary []byte, total int64, eof bool) scanResult {
	if total == 0 && len(buf) >= len(dashBoundary) && bytes.Equal(buf[:len(dashBoundary)], dashBoundary) {
		switch matchAfterPrefix(buf, dashBoundary, eof) {
		case 1:
			return scanResult{BodyLen: 0, MarkerLen: len(dashBoundary), Found: true}
		case 0:
			return scanResult{NeedMoreData: true}
		default:
			return scanResult{}
		}
	}
	if total == 0 && len(dashBoundary) >= len(buf) && bytes.Equal(dashBoundary[:len(buf)], buf) {
		return scanResult{NeedMoreData: !eof}
	}

	if i := bytes.Index(buf, nlDashBoundary); i >= 0 {
		switch matchAfterPrefix(buf[i:], nlDashBoundary, eof) {
		case 1:
			return scanResult{BodyLen: i, MarkerLen: len(nlDashBoundary), Found: true}
		case 0:
			return scanResult{NeedMoreData: true}
		default:
			return scanResult{BodyLen: i}
		}
	}
	if i := bytes.LastIndexByte(buf, nlDashBoundary[0]); i >= 0 && len(nlDashBoundary) >= len(buf[i:]) && bytes.Equal(nlDashBoundary[:len(buf[i:])], buf[i:]) {
		return scanResult{BodyLen: i, NeedMoreData: !eof}
	}
	return scanResult{BodyLen: len(buf)}
}

// matchAfterPrefix reports whether buf (known to start with prefix)
// continues in a way that confirms (+1), rules out (-1), or leaves
// undecided (0, only when buf is exactly prefix-length and eof is
// false) a boundary match: a real boundary line is followed by '-',
// ' ', '\t', '\r', '\n', or end of input.
func matchAfterPrefix(buf, prefix []byte, eof bool) int {
	if len(buf) == len(prefix) {
		if eof {
			return 1
		}
		return 0
	}
	switch buf[len(prefix)] {
	case ' ', '\t', '\r', '\n', '-':
		return 1
	}
	return -1
}
