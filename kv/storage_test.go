package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	build := func() *Storage {
		return New().
			Add("Foo", "bar").
			Add("Hello", "World").
			Add("Lorem", "ipsum").
			Add("hello", "Pavlo")
	}

	t.Run("lookup is case sensitive", func(t *testing.T) {
		kv := build()

		value, found := kv.Get("Hello")
		require.True(t, found)
		require.Equal(t, "World", value)

		value, found = kv.Get("HELLO")
		require.False(t, found)
		require.Equal(t, "", value)
	})

	t.Run("Get returns the first match", func(t *testing.T) {
		kv := New().Add("k", "first").Add("k", "second")
		require.Equal(t, "first", kv.Value("k"))
	})

	t.Run("Values collects every match", func(t *testing.T) {
		kv := New().Add("k", "a").Add("k", "b").Add("other", "c")
		require.Equal(t, []string{"a", "b"}, kv.Values("k"))
		require.Nil(t, kv.Values("missing"))
	})

	t.Run("Set replaces every existing entry under the key", func(t *testing.T) {
		kv := New().Add("k", "a").Add("k", "b").Add("other", "c").Set("k", "z")
		require.Equal(t, []string{"z"}, kv.Values("k"))
		require.Equal(t, "c", kv.Value("other"))
	})

	t.Run("Keys returns unique keys in first-seen order", func(t *testing.T) {
		kv := build()
		require.Equal(t, []string{"Foo", "Hello", "Lorem", "hello"}, kv.Keys())
	})

	t.Run("Clear empties the storage", func(t *testing.T) {
		kv := build()
		kv.Clear()
		require.True(t, kv.Empty())
		require.Equal(t, 0, kv.Len())
	})

	t.Run("Clone is independent of the source", func(t *testing.T) {
		kv := build()
		clone := kv.Clone()
		kv.Add("new", "entry")

		require.False(t, clone.Has("new"))
		require.True(t, kv.Has("new"))
	})

	t.Run("Iter walks pairs in insertion order", func(t *testing.T) {
		kv := New().Add("a", "1").Add("b", "2")

		var got []Pair
		for k, v := range kv.Iter() {
			got = append(got, Pair{k, v})
		}

		require.Equal(t, []Pair{{"a", "1"}, {"b", "2"}}, got)
	})
}
