package httpwire

import "sync/atomic"

// Buffer is a reference-counted byte arena, the systems-language
// replacement for the source's floating-refcount byte buffers (see
// DESIGN.md "Buffer"). The decoder
// produces every Buffer at refcount 1; any holder that keeps one past the
// call that handed it over must Retain it, and must Release exactly once
// when done. Buffer is not safe for concurrent use — ownership flows along
// a single pipeline, per §5's single-threaded cooperative model.
type Buffer struct {
	data []byte
	refs *int32
}

// NewBuffer wraps b (taking ownership of the slice) in a Buffer at
// refcount 1.
func NewBuffer(b []byte) *Buffer {
	refs := int32(1)
	return &Buffer{data: b, refs: &refs}
}

// EmptyBuffer is a package-level, never-released sentinel for the empty
// terminal chunk's payload; retaining/releasing it is a no-op.
var emptyBufferRefs = int32(1 << 30)
var EmptyBuffer = &Buffer{data: nil, refs: &emptyBufferRefs}

// Bytes returns the buffer's current contents. The slice is only valid
// until the buffer is released to refcount 0.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Len returns len(b.Bytes()).
func (b *Buffer) Len() int { return len(b.Bytes()) }

// Retain increments the reference count and returns b, so that
// `h := buf.Retain()` reads naturally at a handoff point.
func (b *Buffer) Retain() *Buffer {
	if b == nil || b == EmptyBuffer {
		return b
	}
	atomic.AddInt32(b.refs, 1)
	return b
}

// Release decrements the reference count, reporting whether this call
// dropped it to zero (in which case the backing array is no longer safe
// to read and callers should drop their slice header too).
func (b *Buffer) Release() bool {
	if b == nil || b == EmptyBuffer {
		return false
	}
	n := atomic.AddInt32(b.refs, -1)
	if n < 0 {
		panic("httpwire: Buffer released more times than retained")
	}
	if n == 0 {
		b.data = nil
		return true
	}
	return false
}

// RefCount returns the current reference count, for tests and
// diagnostics only.
func (b *Buffer) RefCount() int32 {
	if b == nil || b == EmptyBuffer {
		return 1
	}
	return atomic.LoadInt32(b.refs)
}

// CompositeBuffer concatenates the Bytes of one or more retained Buffers
// into a single owned Buffer and releases its inputs. This is how the
// aggregator (C6) builds its composite content view without needing a
// ring of partial buffers alive at once.
func CompositeBuffer(parts ...*Buffer) *Buffer {
	total := 0
	for _, p := range parts {
		total += p.Len()
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p.Bytes()...)
		p.Release()
	}
	return NewBuffer(out)
}
