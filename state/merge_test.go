package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMerge_NullDeletesLeaf(t *testing.T) {
	s := CachedState{"a": 1.0, "b": 2.0}
	got := s.Merge(CachedState{"a": nil})
	assert.Equal(t, CachedState{"b": 2.0}, got)
}

func TestMerge_NestedObjectMergesOneLevel(t *testing.T) {
	s := CachedState{"controller": map[string]any{"volume": 10.0, "muted": false}}
	got := s.Merge(CachedState{"controller": map[string]any{"muted": true}})
	want := CachedState{"controller": map[string]any{"volume": 10.0, "muted": true}}
	assert.Equal(t, want, got)
}

func TestMerge_ArraysAreLeavesNotMerged(t *testing.T) {
	s := CachedState{"tags": []any{"a", "b"}}
	got := s.Merge(CachedState{"tags": []any{"c"}})
	assert.Equal(t, CachedState{"tags": []any{"c"}}, got)
}

func TestMerge_DeeperThanOneLevelReplacesWholesale(t *testing.T) {
	s := CachedState{"a": map[string]any{"b": map[string]any{"c": 1.0, "d": 2.0}}}
	got := s.Merge(CachedState{"a": map[string]any{"b": map[string]any{"c": 99.0}}})
	// "b" is nested two levels down from the top Merge call, so the whole
	// "b" object is replaced, not merged: "d" does not survive.
	want := CachedState{"a": map[string]any{"b": map[string]any{"c": 99.0}}}
	assert.Equal(t, want, got)
}

// TestMerge_EmptyDiffIsIdentity and TestMerge_Idempotent are property P4.
func TestMerge_EmptyDiffIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := genCachedState(t)
		got := s.Merge(CachedState{})
		assert.Equal(t, s, got)
	})
}

func TestMerge_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := genCachedState(t)
		d := genLeafOnlyDiff(t)
		once := s.Merge(d)
		twice := once.Merge(d)
		assert.Equal(t, once, twice)
	})
}

func genCachedState(t *rapid.T) CachedState {
	n := rapid.IntRange(0, 4).Draw(t, "n")
	s := CachedState{}
	for i := 0; i < n; i++ {
		key := rapid.StringMatching(`[a-c]`).Draw(t, "key")
		s[key] = rapid.Float64Range(-10, 10).Draw(t, "val")
	}
	return s
}

// genLeafOnlyDiff draws a diff whose values are always leaves (never nested
// objects), matching P4's "leaf-only diff" precondition.
func genLeafOnlyDiff(t *rapid.T) CachedState {
	n := rapid.IntRange(0, 4).Draw(t, "dn")
	d := CachedState{}
	for i := 0; i < n; i++ {
		key := rapid.StringMatching(`[a-c]`).Draw(t, "dkey")
		if rapid.Bool().Draw(t, "isNull") {
			d[key] = nil
		} else {
			d[key] = rapid.Float64Range(-10, 10).Draw(t, "dval")
		}
	}
	return d
}
