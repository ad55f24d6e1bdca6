package job

import "strings"

// NormalizePayload trims surrounding whitespace from every string value in
// a record's payload, recursing into nested maps and slices. Ported from
// the original implementation's normalize_dictionary/normalize_list
// (utils.py), which the original's message handling applied implicitly to
// every decoded job config before handing it to a plugin. The distilled
// spec treats the payload as wholly opaque, but a downstream plugin
// written against trimmed strings depends on this running once per
// ingested record.
func NormalizePayload(r *Record) {
	for k, v := range r.payload {
		r.payload[k] = normalizeValue(v)
	}
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]interface{}:
		for k, inner := range val {
			val[k] = normalizeValue(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = normalizeValue(inner)
		}
		return val
	default:
		return v
	}
}
