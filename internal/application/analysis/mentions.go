package analysis

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

// fold normalises text for mention matching: NFKC then Unicode case folding.
// Casers are stateful, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// CountMentions counts whole-word, case-insensitive occurrences of name in text.
// A match must not be preceded or followed by a letter or digit.
func CountMentions(text, name string) int {
	needle := fold(strings.TrimSpace(name))
	if needle == "" {
		return 0
	}
	return len(matchSpans(fold(text), needle))
}

type span struct{ start, end int }

func (a span) overlaps(b span) bool { return a.start < b.end && b.start < a.end }

func matchSpans(hay, needle string) []span {
	var out []span
	for off := 0; off < len(hay); {
		i := strings.Index(hay[off:], needle)
		if i < 0 {
			break
		}
		start := off + i
		end := start + len(needle)
		if boundaryBefore(hay, start) && boundaryAfter(hay, end) {
			out = append(out, span{start, end})
			off = end
			continue
		}
		_, size := utf8.DecodeRuneInString(hay[start:])
		off = start + size
	}
	return out
}

// countNames counts every name in text. Longer names claim their text first,
// so "Acme Cloud" is not also counted as "Acme".
func countNames(text string, names []string) map[string]int {
	hay := fold(text)
	type needle struct {
		name, folded string
	}
	needles := make([]needle, 0, len(names))
	for _, n := range names {
		if f := fold(strings.TrimSpace(n)); f != "" {
			needles = append(needles, needle{n, f})
		}
	}
	sort.SliceStable(needles, func(i, j int) bool { return len(needles[i].folded) > len(needles[j].folded) })

	counts := make(map[string]int, len(names))
	var claimed []span
	for _, nd := range needles {
	next:
		for _, m := range matchSpans(hay, nd.folded) {
			for _, c := range claimed {
				if m.overlaps(c) {
					continue next
				}
			}
			claimed = append(claimed, m)
			counts[nd.name]++
		}
	}
	return counts
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

// ExtractMentions counts the brand and every competitor across the session's
// text responses. Share of voice is left empty; see CalculateSOV.
func ExtractMentions(a *domain.Session) *domain.Results {
	names := append([]string{a.BrandName}, a.Competitors()...)
	r := &domain.Results{
		ShareOfVoice:  map[string]float64{},
		MentionCounts: make(map[string]int, len(names)),
		Competitors:   append([]string(nil), a.Competitors()...),
		Categories:    a.Categories(),
		BrandID:       uuid.NewSHA1(uuid.NameSpaceDNS, []byte(a.Domain)).String(),
	}
	for _, p := range a.Prompts() {
		r.Prompts = append(r.Prompts, p.PromptText)
	}
	for _, n := range names {
		r.MentionCounts[n] = 0
	}

	answered, visible := 0, 0
	for _, resp := range a.Responses() {
		if !resp.OK() {
			continue
		}
		answered++
		counts := countNames(resp.Value, names)
		for _, n := range names {
			c := counts[n]
			r.MentionCounts[n] += c
			r.TotalMentions += c
			if n == a.BrandName && c > 0 {
				visible++
			}
		}
	}
	if answered > 0 {
		r.AIVisibilityScore = round2(float64(visible) / float64(answered) * 100)
	}
	return r
}

// CalculateSOV fills share of voice from mention counts: count/total*100 rounded
// to 2 decimals, all zero when nothing was mentioned.
func CalculateSOV(r *domain.Results, brandName string) {
	total := 0
	for _, c := range r.MentionCounts {
		total += c
	}
	r.TotalMentions = total
	r.ShareOfVoice = make(map[string]float64, len(r.MentionCounts))
	for name, c := range r.MentionCounts {
		share := 0.0
		if total > 0 {
			share = round2(float64(c) / float64(total) * 100)
		}
		r.ShareOfVoice[name] = share
	}
	r.BrandShare = r.ShareOfVoice[brandName]
}

// Populate joins categories, prompts and responses into populatedCategories.
// Prompts whose category id is unknown are grouped under their category name.
func Populate(a *domain.Session) []domain.PopulatedCategory {
	byPrompt := make(map[string]domain.AIResponse, len(a.Responses()))
	for _, r := range a.Responses() {
		byPrompt[r.PromptID] = r
	}

	var out []domain.PopulatedCategory
	index := map[string]int{}
	add := func(id, name string) int {
		key := id
		if key == "" {
			key = "name:" + name
		}
		if i, ok := index[key]; ok {
			return i
		}
		out = append(out, domain.PopulatedCategory{ID: id, Name: name, Prompts: []domain.PopulatedPrompt{}})
		index[key] = len(out) - 1
		return len(out) - 1
	}
	if a.Step2Data != nil {
		for _, c := range a.Step2Data.Categories {
			add(c.ID, c.Name)
		}
	}

	for _, p := range a.Prompts() {
		i, ok := index[p.CategoryID]
		if !ok || p.CategoryID == "" {
			i = add(p.CategoryID, p.Category)
		}
		pp := domain.PopulatedPrompt{ID: p.ID, PromptText: p.PromptText}
		if r, ok := byPrompt[p.ID]; ok {
			pp.AIResponse = &r
		}
		out[i].Prompts = append(out[i].Prompts, pp)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
