package resolver

import "encoding/json"

// toJSONString renders an arbitrary resolved value (map/slice) as compact
// JSON for embedding inside a larger templated string.
func toJSONString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
