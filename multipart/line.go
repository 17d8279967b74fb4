package multipart

import "bytes"

// readLine scans buf[offset:] for a line ending in CRLF or a lone LF,
// per §4.9 "Line parsing". It returns the line content (without the
// terminator) and the offset just past the terminator, or ok=false if no
// complete line is present yet.
func readLine(buf []byte, offset int) (line string, next int, ok bool) {
	rest := buf[offset:]
	i := bytes.IndexByte(rest, '\n')
	if i == -1 {
		return "", 0, false
	}
	end := offset + i
	lineEnd := end
	if lineEnd > offset && buf[lineEnd-1] == '\r' {
		lineEnd--
	}
	return string(buf[offset:lineEnd]), end + 1, true
}
