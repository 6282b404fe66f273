// Package reconcile turns an analysis session document of loosely known shape
// into the dashboard view model. Documents written by this server carry typed
// {kind, value} responses; the field-name heuristics exist for older documents
// whose response fields sometimes hold the prompt text instead of the answer.
package reconcile

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// NoResponse is shown for prompts without a matching response.
const NoResponse = "No response available"

// Uncategorized groups prompts whose category cannot be resolved.
const Uncategorized = "Uncategorized"

const (
	minPromptRunes    = 10
	longResponseRunes = 1000
	emergencyRunes    = 500
	// a response must exceed the prompt text by this many characters
	responseMargin = 20
)

var (
	promptFields   = []string{"promptText", "text", "question", "prompt", "content", "query", "description", "title"}
	responseFields = []string{"responseText", "aiResponseText", "response", "content", "message", "text", "data"}
	validatedFlags = []string{"validated", "isValidated", "responseValidated", "isValidResponse"}

	hexID = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

// NormalizeShare coerces a raw share-of-voice value: a number, then a
// percentage string, then mentions/total*100, else 0. The result is clamped to
// be non-negative and rounded to 2 decimals.
func NormalizeShare(value any, mentions, total float64) float64 {
	v, ok := asNumber(value)
	if ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
		ok = false
	}
	if !ok {
		if s, isStr := value.(string); isStr {
			v, ok = parsePercent(s)
		}
	}
	if !ok {
		if total > 0 {
			v = mentions / total * 100
		} else {
			v = 0
		}
	}
	if v < 0 {
		v = 0
	}
	return round2(v)
}

// PromptText returns the first usable prompt text in priority order. Hex ids
// and values shorter than 10 characters are skipped. The fallback is a
// placeholder carrying the prompt id suffix, never empty.
func PromptText(prompt map[string]any) string {
	for _, f := range promptFields {
		s := strings.TrimSpace(asString(prompt[f]))
		if s == "" || hexID.MatchString(s) || utf8.RuneCountInString(s) < minPromptRunes {
			continue
		}
		return s
	}
	id := idOf(prompt)
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	if id == "" {
		id = "unknown"
	}
	return "Prompt text unavailable (" + id + ")"
}

// ResponseText extracts the answer for a prompt from a prompt or response
// record. Typed {kind:"text", value} responses are accepted as is; otherwise
// response fields are searched in priority order at the top level and one level
// under aiResponse.
func ResponseText(rec map[string]any, promptText string) (string, bool) {
	containers := []map[string]any{rec}
	if nested := asMap(rec["aiResponse"]); nested != nil {
		containers = append(containers, nested)
	}

	for _, c := range containers {
		if text, ok, typed := typedResponse(c); typed {
			return text, ok
		}
	}

	for _, f := range responseFields {
		for _, c := range containers {
			s := strings.TrimSpace(asString(c[f]))
			if s != "" && acceptResponse(c, s, promptText) {
				return s, true
			}
		}
	}
	// aiResponse sometimes is the plain answer string
	if s := strings.TrimSpace(asString(rec["aiResponse"])); s != "" && acceptResponse(rec, s, promptText) {
		return s, true
	}

	for _, c := range containers {
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s := strings.TrimSpace(asString(c[k]))
			if utf8.RuneCountInString(s) > emergencyRunes && s != strings.TrimSpace(promptText) {
				zap.L().Debug("response taken from fallback field", zap.String("field", k))
				return s, true
			}
		}
	}
	return "", false
}

// typedResponse reads the tagged union written by the server. typed is false
// when c does not carry one.
func typedResponse(c map[string]any) (text string, ok, typed bool) {
	kind := asString(c["kind"])
	if kind == "" {
		return "", false, false
	}
	value := strings.TrimSpace(asString(c["value"]))
	switch kind {
	case "text":
		return value, value != "", true
	case "error":
		return "", false, true
	}
	return "", false, false
}

func acceptResponse(c map[string]any, s, promptText string) bool {
	for _, f := range validatedFlags {
		if b, _ := c[f].(bool); b {
			return true
		}
	}
	n := utf8.RuneCountInString(s)
	if n > longResponseRunes {
		return true
	}
	p := strings.TrimSpace(promptText)
	return s != p && n > utf8.RuneCountInString(p)+responseMargin
}

// DistributePrompts spreads a flat prompt list over categories: every category
// gets ceil(P/C) prompts in order and the last takes whatever remains. No prompt
// is dropped or duplicated. With no categories the result is nil.
func DistributePrompts[T any](categories []string, prompts []T) [][]T {
	c := len(categories)
	if c == 0 {
		return nil
	}
	per := (len(prompts) + c - 1) / c
	out := make([][]T, c)
	for i := 0; i < c; i++ {
		start := min(i*per, len(prompts))
		end := min(start+per, len(prompts))
		if i == c-1 {
			end = len(prompts)
		}
		out[i] = prompts[start:end:end]
	}
	return out
}

// PromptView is one prompt row of the dashboard
type PromptView struct {
	ID       string
	Text     string
	Response string
	// Answered is false when Response holds the NoResponse placeholder
	Answered bool
}

// AttachResponses fills prompts that still lack an answer from response records,
// matched by promptId._id (or a plain promptId).
func AttachResponses(prompts []PromptView, responses []any) {
	byPrompt := make(map[string]map[string]any, len(responses))
	for _, r := range responses {
		rec := asMap(r)
		if rec == nil {
			continue
		}
		if id := idOf(rec["promptId"]); id != "" {
			byPrompt[id] = rec
		}
	}
	for i := range prompts {
		p := &prompts[i]
		if p.Answered {
			continue
		}
		if rec, ok := byPrompt[p.ID]; ok {
			if text, ok := ResponseText(rec, p.Text); ok {
				p.Response, p.Answered = text, true
				continue
			}
		}
		p.Response = NoResponse
	}
}

// ShareRow is one brand of the share-of-voice table
type ShareRow struct {
	Name     string
	Share    float64
	Mentions int
	IsBrand  bool
}

// CategoryView groups prompts; Expanded is the only UI state, collapsed by default.
type CategoryView struct {
	Name     string
	Prompts  []PromptView
	Expanded bool
}

// ViewModel is the normalised dashboard data of one analysis
type ViewModel struct {
	AnalysisID    string
	Domain        string
	Brand         string
	BrandShare    float64
	Visibility    float64
	ShareOfVoice  []ShareRow
	TotalMentions int
	Competitors   []string
	Categories    []*CategoryView
	Prompts       []PromptView
}

// Toggle flips the expanded state of a category and returns the new state.
func (v *ViewModel) Toggle(name string) bool {
	for _, c := range v.Categories {
		if strings.EqualFold(c.Name, name) {
			c.Expanded = !c.Expanded
			return c.Expanded
		}
	}
	return false
}

// Reconcile builds the view model from a session document and, optionally, the
// records of the responses endpoint.
func Reconcile(doc map[string]any, responses []any) *ViewModel {
	if inner := asMap(doc["data"]); inner != nil && doc["analysisResults"] == nil {
		doc = inner
	}
	results := asMap(doc["analysisResults"])

	v := &ViewModel{
		AnalysisID: firstNonEmpty(asString(doc["analysisId"]), idOf(doc)),
		Domain:     asString(doc["domain"]),
	}
	v.Brand = firstNonEmpty(
		asString(doc["brandName"]),
		asString(path(doc, "step1Data", "brandName")),
		asString(results["brandName"]),
		v.Domain,
	)
	v.Competitors = names(results["competitors"])
	if len(v.Competitors) == 0 {
		v.Competitors = names(path(doc, "step2Data", "competitors"))
	}

	v.shareOfVoice(results)
	v.Categories = categories(doc, results)

	var all []any
	all = append(all, asSlice(path(doc, "step4Data", "responses"))...)
	all = append(all, responses...)
	for _, c := range v.Categories {
		AttachResponses(c.Prompts, all)
		v.Prompts = append(v.Prompts, c.Prompts...)
	}
	return v
}

func (v *ViewModel) shareOfVoice(results map[string]any) {
	mentions := asMap(results["mentionCounts"])
	sov := asMap(results["shareOfVoice"])

	total, ok := asNumber(results["totalMentions"])
	if !ok {
		for _, m := range mentions {
			total += float64(asInt(m))
		}
	}
	v.TotalMentions = int(total)

	brandMentions := float64(asInt(mentions[v.Brand]))
	brandRaw := results["brandShare"]
	if brandRaw == nil {
		brandRaw = sov[v.Brand]
	}
	v.BrandShare = NormalizeShare(brandRaw, brandMentions, total)
	v.Visibility = NormalizeShare(results["aiVisibilityScore"], 0, 0)

	v.ShareOfVoice = append(v.ShareOfVoice, ShareRow{
		Name: v.Brand, Share: v.BrandShare, Mentions: int(brandMentions), IsBrand: true,
	})
	for _, name := range v.Competitors {
		if strings.EqualFold(name, v.Brand) {
			continue
		}
		m := float64(asInt(mentions[name]))
		v.ShareOfVoice = append(v.ShareOfVoice, ShareRow{
			Name:     name,
			Share:    NormalizeShare(sov[name], m, total),
			Mentions: int(m),
		})
	}
	rows := v.ShareOfVoice[1:]
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Share > rows[j].Share })
}

// categories prefers populatedCategories, then groups step 3 prompts by their
// category, then distributes a flat prompt list evenly.
func categories(doc, results map[string]any) []*CategoryView {
	if pop := asSlice(doc["populatedCategories"]); len(pop) > 0 {
		var out []*CategoryView
		for _, raw := range pop {
			c := asMap(raw)
			cv := &CategoryView{Name: firstNonEmpty(nameOf(c), Uncategorized)}
			for _, rp := range asSlice(c["prompts"]) {
				cv.Prompts = append(cv.Prompts, promptView(asMap(rp)))
			}
			out = append(out, cv)
		}
		return out
	}

	type cat struct{ id, name string }
	var cats []cat
	for _, raw := range asSlice(path(doc, "step2Data", "categories")) {
		if n := nameOf(raw); n != "" {
			cats = append(cats, cat{id: idOf(raw), name: n})
		}
	}
	if len(cats) == 0 {
		for _, n := range names(results["categories"]) {
			cats = append(cats, cat{name: n})
		}
	}

	var prompts []map[string]any
	for _, raw := range asSlice(path(doc, "step3Data", "prompts")) {
		if m := asMap(raw); m != nil {
			prompts = append(prompts, m)
		}
	}
	if len(prompts) == 0 {
		for _, raw := range asSlice(results["prompts"]) {
			if s := asString(raw); s != "" {
				prompts = append(prompts, map[string]any{"promptText": s})
			} else if m := asMap(raw); m != nil {
				prompts = append(prompts, m)
			}
		}
	}
	if len(prompts) == 0 && len(cats) == 0 {
		return nil
	}
	if len(cats) == 0 {
		cats = []cat{{name: "General"}}
	}

	out := make([]*CategoryView, len(cats))
	for i, c := range cats {
		out[i] = &CategoryView{Name: c.name}
	}

	mapped := false
	for _, p := range prompts {
		if asString(p["categoryId"]) != "" || asString(p["category"]) != "" {
			mapped = true
			break
		}
	}
	if !mapped {
		labels := make([]string, len(cats))
		for i, c := range cats {
			labels[i] = c.name
		}
		for i, group := range DistributePrompts(labels, prompts) {
			for _, p := range group {
				out[i].Prompts = append(out[i].Prompts, promptView(p))
			}
		}
		return out
	}

	for _, p := range prompts {
		idx := -1
		cid := asString(p["categoryId"])
		// prompts without a known category share one fallback group
		label := firstNonEmpty(asString(p["category"]), Uncategorized)
		for i, c := range cats {
			if (cid != "" && c.id == cid) || strings.EqualFold(c.name, label) {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, &CategoryView{Name: label})
			cats = append(cats, cat{id: cid, name: label})
			idx = len(out) - 1
		}
		out[idx].Prompts = append(out[idx].Prompts, promptView(p))
	}
	return out
}

func promptView(p map[string]any) PromptView {
	pv := PromptView{ID: idOf(p), Text: PromptText(p)}
	if text, ok := ResponseText(p, pv.Text); ok {
		pv.Response, pv.Answered = text, true
	}
	return pv
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
