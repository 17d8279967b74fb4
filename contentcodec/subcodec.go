package contentcodec

import (
	"bytes"
	"io"
)

// pipeDecoder adapts a pull-based io.Reader decompressor (gzip.Reader,
// flate, brotli, zstd all read lazily from an underlying reader) to the
// push-based SubDecoder contract. Input handed to Push is written into an
// io.Pipe; a background goroutine drives newReader's Read loop and
// forwards whatever comes out to a buffered channel, which Push/Finish
// drain without blocking the caller on exactly one pipe write worth of
// data.
type pipeDecoder struct {
	pw     *io.PipeWriter
	out    chan []byte
	errCh  chan error
	closed bool
}

func newPipeDecoder(newReader func(io.Reader) (io.Reader, error)) *pipeDecoder {
	pr, pw := io.Pipe()
	d := &pipeDecoder{pw: pw, out: make(chan []byte, 64), errCh: make(chan error, 1)}
	go d.run(pr, newReader)
	return d
}

func (d *pipeDecoder) run(pr io.Reader, newReader func(io.Reader) (io.Reader, error)) {
	r, err := newReader(pr)
	if err != nil {
		d.errCh <- err
		close(d.out)
		return
	}
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			d.out <- chunk
		}
		if err != nil {
			if err != io.EOF {
				d.errCh <- err
			}
			close(d.out)
			return
		}
	}
}

// Push writes in to the pipe (blocking until the reader goroutine has
// consumed it) and returns whatever decoded output is immediately
// available.
func (d *pipeDecoder) Push(in []byte) ([]byte, error) {
	if d.closed {
		return nil, io.ErrClosedPipe
	}
	if len(in) > 0 {
		if _, err := d.pw.Write(in); err != nil {
			return nil, err
		}
	}
	return d.drain(), d.pendingErr()
}

// Finish closes the pipe, drains every remaining decoded chunk, and
// surfaces a sub-codec error if the reader goroutine reported one.
func (d *pipeDecoder) Finish() ([]byte, error) {
	if !d.closed {
		d.closed = true
		d.pw.Close()
	}
	var out []byte
	for chunk := range d.out {
		out = append(out, chunk...)
	}
	return out, d.pendingErr()
}

func (d *pipeDecoder) drain() []byte {
	var out []byte
	for {
		select {
		case chunk, ok := <-d.out:
			if !ok {
				return out
			}
			out = append(out, chunk...)
		default:
			return out
		}
	}
}

func (d *pipeDecoder) pendingErr() error {
	select {
	case err := <-d.errCh:
		return err
	default:
		return nil
	}
}

// bufferedEncoder adapts a push-based io.WriteCloser compressor (every
// compress/* and brotli Writer buffers internally and only forwards
// completed blocks to its underlying writer) to the SubEncoder contract:
// Write never blocks on external input, so no goroutine is needed.
type bufferedEncoder struct {
	buf *bytes.Buffer
	w   io.WriteCloser
}

func newBufferedEncoder(newWriter func(io.Writer) io.WriteCloser) *bufferedEncoder {
	buf := &bytes.Buffer{}
	return &bufferedEncoder{buf: buf, w: newWriter(buf)}
}

func (e *bufferedEncoder) Push(in []byte) ([]byte, error) {
	if len(in) > 0 {
		if _, err := e.w.Write(in); err != nil {
			return nil, err
		}
	}
	return e.drain(), nil
}

func (e *bufferedEncoder) Finish() ([]byte, error) {
	if err := e.w.Close(); err != nil {
		return nil, err
	}
	return e.drain(), nil
}

func (e *bufferedEncoder) drain() []byte {
	if e.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	e.buf.Reset()
	return out
}
