// Package kv implements an ordered, append-only (key, value) store used for
// headers, query parameters and path parameters alike. Lookups are linear
// rather than hashed: for the handful of entries a single HTTP message
// carries, a short scan beats a map both in allocations and in cache
// behaviour, and it keeps insertion order observable.
package kv

import "iter"

// Pair is a single (key, value) entry, kept exactly as received — no
// case-folding is performed anywhere in this package.
type Pair struct {
	Key, Value string
}

// Storage is an associative structure for (string, string) pairs. Lookup
// comparisons are byte-exact: callers that need case-insensitive header
// semantics must fold the case themselves before calling in.
type Storage struct {
	pairs      []Pair
	uniqueBuff []string
	valuesBuff []string
}

func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns an instance of Storage with pre-allocated underlying storage.
func NewPrealloc(n int) *Storage {
	return &Storage{
		pairs: make([]Pair, 0, n),
	}
}

// NewFromMap returns a new instance with already inserted values from a map.
// Maps are unordered, so the resulting pair order is unspecified.
func NewFromMap(m map[string]string) *Storage {
	s := NewPrealloc(len(m))

	for key, value := range m {
		s.Add(key, value)
	}

	return s
}

// Add appends a new pair. Later Add calls for an existing key do not
// overwrite earlier ones — Get always returns the FIRST match.
func (s *Storage) Add(key, value string) *Storage {
	s.pairs = append(s.pairs, Pair{Key: key, Value: value})
	return s
}

// Set removes every existing pair under key, then adds a single one.
func (s *Storage) Set(key, value string) *Storage {
	kept := s.pairs[:0]

	for _, pair := range s.pairs {
		if pair.Key != key {
			kept = append(kept, pair)
		}
	}

	s.pairs = append(kept, Pair{Key: key, Value: value})
	return s
}

// Value returns the first value corresponding to the key, or "" if absent.
func (s *Storage) Value(key string) string {
	return s.ValueOr(key, "")
}

// ValueOr returns the first value under key, or the given default.
func (s *Storage) ValueOr(key, or string) string {
	value, found := s.Get(key)
	if !found {
		return or
	}

	return value
}

// Get returns the first value under key, and whether it was found at all.
func (s *Storage) Get(key string) (value string, found bool) {
	for _, pair := range s.pairs {
		if pair.Key == key {
			return pair.Value, true
		}
	}

	return "", false
}

// Values returns every value stored under key. Returns nil if key is absent.
//
// WARNING: the returned slice is reused across calls; copy it if it must
// outlive the next Values/Keys call.
func (s *Storage) Values(key string) (values []string) {
	s.valuesBuff = s.valuesBuff[:0]

	for _, pair := range s.pairs {
		if pair.Key == key {
			s.valuesBuff = append(s.valuesBuff, pair.Value)
		}
	}

	if len(s.valuesBuff) == 0 {
		return nil
	}

	return s.valuesBuff
}

// Keys returns every unique key, in first-seen order.
//
// WARNING: the returned slice is reused across calls.
func (s *Storage) Keys() []string {
	s.uniqueBuff = s.uniqueBuff[:0]

	for _, pair := range s.pairs {
		if contains(s.uniqueBuff, pair.Key) {
			continue
		}

		s.uniqueBuff = append(s.uniqueBuff, pair.Key)
	}

	return s.uniqueBuff
}

// Iter returns an iterator over the pairs in insertion order.
func (s *Storage) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range s.pairs {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Has reports whether key is present at all.
func (s *Storage) Has(key string) bool {
	_, found := s.Get(key)
	return found
}

// Len returns the number of stored pairs (including duplicate keys).
func (s *Storage) Len() int {
	return len(s.pairs)
}

func (s *Storage) Empty() bool {
	return s.Len() == 0
}

// Clone creates a deep copy safe to retain independently of the source.
func (s *Storage) Clone() *Storage {
	return &Storage{
		pairs:      clone(s.pairs),
		uniqueBuff: clone(s.uniqueBuff),
		valuesBuff: clone(s.valuesBuff),
	}
}

// Expose exposes the underlying pairs slice. Mutating it invalidates the
// Storage's own invariants; prefer Add/Set.
func (s *Storage) Expose() []Pair {
	return s.pairs
}

// Clear drops every entry without releasing the underlying array.
func (s *Storage) Clear() *Storage {
	s.pairs = s.pairs[:0]
	return s
}

func contains(collection []string, key string) bool {
	for _, element := range collection {
		if element == key {
			return true
		}
	}

	return false
}

func clone[T any](source []T) []T {
	if len(source) == 0 {
		return nil
	}

	newSlice := make([]T, len(source))
	copy(newSlice, source)

	return newSlice
}
