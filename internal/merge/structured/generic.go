package structured

import "fmt"

// keyCandidates is the ordered list of distinguishing keys tried when
// deciding whether an array is eligible for keyed merge.
var keyCandidates = []string{"id", "name", "key", "uuid"}

// MergeValues deep-merges overlay onto base:
//   - maps merge recursively, successor keys override predecessor keys
//   - scalars in the overlay replace scalars in the base
//   - a map/scalar type conflict resolves in favor of the overlay
//   - arrays of uniformly-keyed objects merge by key; everything else
//     is replaced wholesale by the overlay array (including empty,
//     which is an explicit clear, not a no-op)
func MergeValues(base, overlay interface{}) interface{} {
	if overlay == nil {
		return base
	}
	baseMap, baseIsMap := base.(map[string]interface{})
	overlayMap, overlayIsMap := overlay.(map[string]interface{})
	if baseIsMap && overlayIsMap {
		return mergeMaps(baseMap, overlayMap)
	}

	baseArr, baseIsArr := base.([]interface{})
	overlayArr, overlayIsArr := overlay.([]interface{})
	if baseIsArr && overlayIsArr {
		return mergeArrays(baseArr, overlayArr)
	}

	// Type conflict (map vs scalar, etc.) or either side a bare scalar:
	// overlay wins outright.
	return overlay
}

func mergeMaps(base, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if existing, ok := out[k]; ok {
			out[k] = MergeValues(existing, v)
		} else {
			out[k] = v
		}
	}
	return out
}

func mergeArrays(base, overlay []interface{}) []interface{} {
	if len(overlay) == 0 {
		// Explicit-empty-overlay rule: an empty overlay array clears
		// the field rather than being silently ignored.
		return []interface{}{}
	}

	key, ok := findDistinguishingKey(base, overlay)
	if !ok {
		return overlay
	}
	return mergeKeyedArrays(base, overlay, key)
}

// findDistinguishingKey returns the first candidate key (in
// keyCandidates order) present on every element of both base and
// overlay, or ok=false if no such key exists, in which case the
// caller must fall back to wholesale replacement.
func findDistinguishingKey(base, overlay []interface{}) (string, bool) {
	for _, cand := range keyCandidates {
		if allHaveKey(base, cand) && allHaveKey(overlay, cand) {
			return cand, true
		}
	}
	return "", false
}

func allHaveKey(items []interface{}, key string) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return false
		}
		if _, present := m[key]; !present {
			return false
		}
	}
	return true
}

func keyValue(m map[string]interface{}, key string) string {
	return fmt.Sprint(m[key])
}

// mergeKeyedArrays implements the keyed-array merge semantics:
// items sharing a key merge recursively, base-only items keep base
// order, overlay-only items append in overlay order, and duplicate
// keys within either side are deduplicated with last-occurrence winning.
func mergeKeyedArrays(base, overlay []interface{}, key string) []interface{} {
	baseDeduped, baseOrder := dedupByKey(base, key)
	overlayDeduped, overlayOrder := dedupByKey(overlay, key)

	var out []interface{}
	seen := make(map[string]bool)

	for _, k := range baseOrder {
		baseItem := baseDeduped[k]
		if overlayItem, ok := overlayDeduped[k]; ok {
			out = append(out, MergeValues(baseItem, overlayItem))
		} else {
			out = append(out, baseItem)
		}
		seen[k] = true
	}
	for _, k := range overlayOrder {
		if seen[k] {
			continue
		}
		out = append(out, overlayDeduped[k])
		seen[k] = true
	}
	return out
}

// dedupByKey collapses items sharing the same key value, keeping the
// last-occurring item's content but the first-occurring item's
// position, and returns the positional order of distinct keys.
func dedupByKey(items []interface{}, key string) (map[string]interface{}, []string) {
	values := make(map[string]interface{})
	var order []string
	for _, item := range items {
		m := item.(map[string]interface{})
		k := keyValue(m, key)
		if _, seen := values[k]; !seen {
			order = append(order, k)
		}
		values[k] = item
	}
	return values, order
}
