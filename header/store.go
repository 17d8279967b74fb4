package header

import (
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/nicholaspei/httpwire/token"
)

// ErrInvalidName is returned by Add/Set when the supplied header name
// violates §3's header-name grammar.
var ErrInvalidName = errors.New("header: invalid header name")

// ErrInvalidValue is returned by Add/Set when the supplied header value
// violates §3's header-value grammar.
var ErrInvalidValue = errors.New("header: invalid header value")

type entry struct {
	name   token.Name
	values []string
}

// Store is an ordered, multi-valued header map (C2 "multi-value"
// variant): insertion order of distinct names is preserved for
// iteration, and repeated insertions of the same name append values
// rather than replacing them.
type Store struct {
	order   []entry
	index   map[uint64][]int // hash -> indices into order sharing that hash
}

// New returns an empty Store ready for use.
func New() *Store {
	return &Store{index: make(map[uint64][]int)}
}

func (s *Store) find(n token.Name) int {
	for _, i := range s.index[n.Hash()] {
		if s.order[i].name.Equal(n) {
			return i
		}
	}
	return -1
}

// Add appends value to name's value sequence, validating both per §3. It
// returns the store for chaining.
func (s *Store) Add(name, value string) (*Store, error) {
	if !token.ValidHeaderName(name) {
		return s, errors.Wrapf(ErrInvalidName, "%q", name)
	}
	if !token.ValidHeaderValue(value) {
		return s, errors.Wrapf(ErrInvalidValue, "%q: %q", name, value)
	}
	s.add(name, value)
	return s, nil
}

// add performs the append without validation; used internally once a
// value is already known-good (e.g. AddInt, AddDate).
func (s *Store) add(name, value string) {
	n := token.New(name)
	if i := s.find(n); i != -1 {
		s.order[i].values = append(s.order[i].values, value)
		return
	}
	idx := len(s.order)
	s.order = append(s.order, entry{name: n, values: []string{value}})
	s.index[n.Hash()] = append(s.index[n.Hash()], idx)
}

// AddUnchecked appends value to name's value sequence without validating
// either against §3's grammar. It exists for the decoder's
// ValidateHeaders=false leniency mode, where malformed-but-parseable
// input should still flow through rather than fail the message.
func (s *Store) AddUnchecked(name, value string) *Store {
	s.add(name, value)
	return s
}

// AddInt is Add(name, strconv.FormatInt(n, 10)).
func (s *Store) AddInt(name string, n int64) *Store {
	s.add(name, strconv.FormatInt(n, 10))
	return s
}

// AddDate is Add(name, FormatDate(t)).
func (s *Store) AddDate(name string, t time.Time) *Store {
	s.add(name, FormatDate(t))
	return s
}

// Set removes all existing entries for name, then appends value.
func (s *Store) Set(name, value string) (*Store, error) {
	if !token.ValidHeaderName(name) {
		return s, errors.Wrapf(ErrInvalidName, "%q", name)
	}
	if !token.ValidHeaderValue(value) {
		return s, errors.Wrapf(ErrInvalidValue, "%q: %q", name, value)
	}
	s.Remove(name)
	s.add(name, value)
	return s, nil
}

// SetAll removes all existing entries for name, then appends each of
// values in order.
func (s *Store) SetAll(name string, values []string) (*Store, error) {
	if !token.ValidHeaderName(name) {
		return s, errors.Wrapf(ErrInvalidName, "%q", name)
	}
	for _, v := range values {
		if !token.ValidHeaderValue(v) {
			return s, errors.Wrapf(ErrInvalidValue, "%q: %q", name, v)
		}
	}
	s.Remove(name)
	for _, v := range values {
		s.add(name, v)
	}
	return s, nil
}

// Remove deletes all entries for name.
func (s *Store) Remove(name string) *Store {
	n := token.New(name)
	if i := s.find(n); i != -1 {
		s.removeAt(i)
	}
	return s
}

func (s *Store) removeAt(i int) {
	h := s.order[i].name.Hash()
	s.order = append(s.order[:i], s.order[i+1:]...)
	// every later entry has shifted down by one, so rebuild the whole
	// index.
	delete(s.index, h)
	s.index = make(map[uint64][]int, len(s.index))
	for idx, e := range s.order {
		s.index[e.name.Hash()] = append(s.index[e.name.Hash()], idx)
	}
}

// Clear removes every entry.
func (s *Store) Clear() *Store {
	s.order = nil
	s.index = make(map[uint64][]int)
	return s
}

// Get returns the first value for name, or "" and false if absent.
func (s *Store) Get(name string) (string, bool) {
	i := s.find(token.New(name))
	if i == -1 || len(s.order[i].values) == 0 {
		return "", false
	}
	return s.order[i].values[0], true
}

// GetAll returns every value for name in insertion order, or nil if
// absent.
func (s *Store) GetAll(name string) []string {
	i := s.find(token.New(name))
	if i == -1 {
		return nil
	}
	return s.order[i].values
}

// ContainsOptions configures Store.Contains' optional value matching.
type ContainsOptions struct {
	// Value, if non-empty, requires that at least one value equal Value
	// (respecting IgnoreCase) be present.
	Value string
	// IgnoreCase makes Value matching case-insensitive and additionally
	// accepts Value as a comma-separated token within a value, after
	// trimming optional whitespace around each token (the
	// token.HeaderValueContainsToken rule).
	IgnoreCase bool
}

// Contains reports whether name is present, optionally requiring a
// matching value per opts.
func (s *Store) Contains(name string, opts ...ContainsOptions) bool {
	i := s.find(token.New(name))
	if i == -1 {
		return false
	}
	if len(opts) == 0 || opts[0].Value == "" {
		return true
	}
	o := opts[0]
	for _, v := range s.order[i].values {
		if o.IgnoreCase {
			if token.HeaderValueContainsToken(v, o.Value) {
				return true
			}
		} else if v == o.Value {
			return true
		}
	}
	return false
}

// Names returns every distinct header name in insertion order.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	for i, e := range s.order {
		out[i] = e.name.String()
	}
	return out
}

// Each calls fn once per (name, value) pair, in insertion order with
// values for a name emitted in the order they were added.
func (s *Store) Each(fn func(name, value string)) {
	for _, e := range s.order {
		for _, v := range e.values {
			fn(e.name.String(), v)
		}
	}
}

// Len returns the number of distinct names.
func (s *Store) Len() int { return len(s.order) }

// Clone returns a deep copy of s.
func (s *Store) Clone() *Store {
	out := New()
	for _, e := range s.order {
		vv := make([]string, len(e.values))
		copy(vv, e.values)
		idx := len(out.order)
		out.order = append(out.order, entry{name: e.name, values: vv})
		out.index[e.name.Hash()] = append(out.index[e.name.Hash()], idx)
	}
	return out
}

// Equal reports whether s and other contain the same set of (name, value)
// pairs, comparing names case-insensitively and values case-sensitively,
// per §4.2.
func (s *Store) Equal(other *Store) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, e := range s.order {
		a := append([]string(nil), e.values...)
		b := append([]string(nil), other.GetAll(e.name.String())...)
		if len(a) != len(b) {
			return false
		}
		sort.Strings(a)
		sort.Strings(b)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

// WriteSubset writes every (name, value) pair in insertion order as
// "name: value\r\n", skipping any name present (case-insensitively) in
// exclude. Unlike the teacher's hdr.Header.WriteSubset, order is
// insertion order rather than sorted, since the streaming encoder (C5)
// must reproduce the order headers were added for a faithful round-trip.
func (s *Store) WriteSubset(w interface{ WriteString(string) (int, error) }, exclude map[string]bool) error {
	for _, e := range s.order {
		skip := false
		for k, ex := range exclude {
			if ex && token.EqualFold(k, e.name.String()) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		for _, v := range e.values {
			if _, err := w.WriteString(e.name.String()); err != nil {
				return err
			}
			if _, err := w.WriteString(": "); err != nil {
				return err
			}
			if _, err := w.WriteString(v); err != nil {
				return err
			}
			if _, err := w.WriteString("\r\n"); err != nil {
				return err
			}
		}
	}
	return nil
}
