package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func asString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	case fmt.Stringer:
		return value.String()
	default:
		return ""
	}
}

// asNumber coerces JSON numbers and Go numerics. Strings are not numbers here.
func asNumber(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(v any) int {
	f, _ := asNumber(v)
	return int(f)
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// path walks nested maps: path(doc, "step1Data", "brandName").
func path(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		mm := asMap(cur)
		if mm == nil {
			return nil
		}
		cur = mm[k]
	}
	return cur
}

// idOf reads _id or id, accepting {"$oid": "..."} and populated refs.
func idOf(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case map[string]any:
		for _, k := range []string{"_id", "id", "$oid"} {
			if id := idOf(value[k]); id != "" {
				return id
			}
		}
	}
	return ""
}

// nameOf reads a display name from a plain string or an object with name/title.
func nameOf(v any) string {
	if s := strings.TrimSpace(asString(v)); s != "" {
		return s
	}
	m := asMap(v)
	for _, k := range []string{"name", "title", "categoryName", "brandName"} {
		if s := strings.TrimSpace(asString(m[k])); s != "" {
			return s
		}
	}
	return ""
}

func names(v any) []string {
	var out []string
	for _, it := range asSlice(v) {
		if n := nameOf(it); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func parsePercent(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
