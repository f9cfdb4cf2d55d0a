package config

// DeepMerge merges overlay onto base, returning a new mapping. Nested
// mappings merge recursively; scalar and list values from the overlay
// replace the base value entirely. Neither input is mutated.
func DeepMerge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		bm, baseIsMap := out[k].(map[string]any)
		om, overlayIsMap := v.(map[string]any)
		if baseIsMap && overlayIsMap {
			out[k] = DeepMerge(bm, om)
		} else {
			out[k] = v
		}
	}
	return out
}

// setNested sets value at the dotted path inside doc, creating intermediate
// mappings as needed. Existing non-mapping intermediates are replaced.
// Used only for the fixed, known override paths.
func setNested(doc map[string]any, path []string, value any) {
	cur := doc
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
}
