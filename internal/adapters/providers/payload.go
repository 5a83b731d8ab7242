package providers

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

// Provider payloads are decoded as map[string]any and picked apart with
// alias lists: each source spells the same field differently, and fields
// move between releases. The raw payload is stored verbatim alongside a
// schema version so parser changes can branch on version later.

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the first non-empty string at any of the paths.
func lookupStr(m map[string]any, paths ...string) string {
	for _, p := range paths {
		if v := lookupAny(m, p); v != nil {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// lookupFloat: number from several paths (float64/int/string like "8,0").
func lookupFloat(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func lookupInt(m map[string]any, paths ...string) *int {
	if f := lookupFloat(m, paths...); f != nil {
		n := int(*f)
		return &n
	}
	return nil
}

// lookupStrings: accept []any with either strings or {url/name} objects.
func lookupStrings(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		if raw, ok := lookupAny(m, k).([]any); ok {
			out := make([]string, 0, len(raw))
			for _, it := range raw {
				switch t := it.(type) {
				case string:
					if t != "" {
						out = append(out, t)
					}
				case map[string]any:
					if n, ok := t["name"].(string); ok && n != "" {
						out = append(out, n)
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// syntheticID derives a stable provider-side id when the source exposes
// none, so the exact-match path still works across fetches.
func syntheticID(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
