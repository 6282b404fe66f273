package prompt

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// DecodeJSON unmarshals a model completion into v. Code fences and leading prose
// around the object are tolerated since not every model honours JSON mode.
func DecodeJSON(completion string, v any) error {
	s := strings.TrimSpace(completion)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndex(s, "}"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	if s == "" {
		return eris.New("prompt: empty completion")
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return eris.Wrap(err, "prompt: decode completion")
	}
	return nil
}

// Dedupe trims, drops empties and removes case-insensitive duplicates, keeping order.
func Dedupe(items []string, exclude ...string) []string {
	seen := make(map[string]bool, len(items)+len(exclude))
	for _, e := range exclude {
		seen[strings.ToLower(strings.TrimSpace(e))] = true
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		key := strings.ToLower(it)
		if it == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
