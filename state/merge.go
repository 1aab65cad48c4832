package state

// CachedState is an opaque, dynamically-shaped object (server_state or
// group_state) mutated via an RFC-7396-flavored diff merge: null at a leaf
// deletes the key, an object value merges one level deep into an existing
// object value, anything else (including arrays, which are always treated
// as leaves) replaces wholesale.
type CachedState map[string]any

// Clone returns a deep copy, so a Snapshot handed to an Observer can't be
// mutated by a later Merge call.
func (c CachedState) Clone() CachedState {
	if c == nil {
		return nil
	}
	out := make(CachedState, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// Merge applies diff onto c following the three rules, applied recursively
// exactly one level deep (spec §4.B):
//
//  1. nil at a key deletes that key from the result.
//  2. an object value at a key whose existing value is also an object
//     triggers one recursive merge of that nested object (but that nested
//     merge does not itself recurse further — deeper nested objects are
//     replaced wholesale, matching "exactly one level").
//  3. anything else (including arrays) replaces the existing value.
//
// Merge(s, {}) == s and Merge(Merge(s, d), d) == Merge(s, d) for any
// leaf-only diff d (P4).
func (c CachedState) Merge(diff CachedState) CachedState {
	return mergeAt(c, diff, 1)
}

// mergeAt merges diff into existing, with depth remaining recursive
// applications of rule 2 still allowed (depth 0 means "replace nested
// objects wholesale instead of merging").
func mergeAt(existing CachedState, diff CachedState, depth int) CachedState {
	result := existing.Clone()
	if result == nil {
		result = CachedState{}
	}
	for k, dv := range diff {
		if dv == nil {
			delete(result, k)
			continue
		}
		if depth > 0 {
			if diffObj, ok := dv.(map[string]any); ok {
				if existingObj, ok := result[k].(map[string]any); ok {
					merged := mergeAt(CachedState(existingObj), CachedState(diffObj), depth-1)
					result[k] = map[string]any(merged)
					continue
				}
			}
		}
		result[k] = cloneValue(dv)
	}
	return result
}
