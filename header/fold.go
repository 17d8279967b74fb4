package header

import "strings"

// FoldedStore is the "single-field (comma-folded)" C2 variant: it wraps a
// plain Store and intercepts Add/Set/GetAll with escape/unescape logic so
// that at most one value entry ever exists per name, per §4.2, while
// GetAll still exposes the logical, unescaped list of values. This is
// deliberately a wrapper rather than a Store subtype, per DESIGN note
// "Comma-folded header store" in spec.md §9.
type FoldedStore struct {
	inner *Store
}

// NewFolded wraps an empty Store in a FoldedStore.
func NewFolded() *FoldedStore {
	return &FoldedStore{inner: New()}
}

// escapeCSV wraps v in double quotes (doubling any embedded quote) if v
// contains a comma, quote, CR, or LF; otherwise it returns v unchanged.
func escapeCSV(v string) string {
	if !strings.ContainsAny(v, ",\"\r\n") {
		return v
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(v); i++ {
		if v[i] == '"' {
			b.WriteByte('"')
		}
		b.WriteByte(v[i])
	}
	b.WriteByte('"')
	return b.String()
}

// unescapeCSVList splits a comma-folded value on unquoted commas,
// reversing escapeCSV for each element.
func unescapeCSVList(folded string) []string {
	if folded == "" {
		return nil
	}
	var out []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(folded); i++ {
		c := folded[i]
		switch {
		case inQuotes && c == '"':
			if i+1 < len(folded) && folded[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = false
			}
		case !inQuotes && c == '"':
			inQuotes = true
		case !inQuotes && c == ',':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}

// Add escapes value per the CSV rule and appends it to name's single
// folded entry, separated from any prior value by a single comma.
func (f *FoldedStore) Add(name, value string) (*FoldedStore, error) {
	escaped := escapeCSV(value)
	if prior, ok := f.inner.Get(name); ok {
		if _, err := f.inner.Set(name, prior+","+escaped); err != nil {
			return f, err
		}
		return f, nil
	}
	if _, err := f.inner.Set(name, escaped); err != nil {
		return f, err
	}
	return f, nil
}

// Set replaces name's folded entry with a single escaped value.
func (f *FoldedStore) Set(name, value string) (*FoldedStore, error) {
	if _, err := f.inner.Set(name, escapeCSV(value)); err != nil {
		return f, err
	}
	return f, nil
}

// GetAll returns the unescaped, comma-split list of values for name.
func (f *FoldedStore) GetAll(name string) []string {
	folded, ok := f.inner.Get(name)
	if !ok {
		return nil
	}
	return unescapeCSVList(folded)
}

// Remove deletes name's folded entry.
func (f *FoldedStore) Remove(name string) *FoldedStore {
	f.inner.Remove(name)
	return f
}

// Raw returns the underlying Store, whose GetAll(name) returns the single
// still-escaped entry rather than the logical value list.
func (f *FoldedStore) Raw() *Store { return f.inner }
