package analysis

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var hostnamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// NormalizeDomain reduces user input such as "https://www.Example.com/pricing"
// to a bare lowercase hostname ("example.com") and validates it.
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, "@"); i >= 0 {
		d = d[i+1:]
	}
	if i := strings.Index(d, ":"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(strings.TrimSuffix(d, "."), "www.")
	if !hostnamePattern.MatchString(d) {
		return "", eris.Wrapf(ErrInvalidInput, "%q is not a valid domain", raw)
	}
	return d, nil
}

// DisplayName derives a brand display name from a domain: "acme-tools.io" -> "Acme Tools".
func DisplayName(domain string) string {
	label := domain
	if i := strings.Index(label, "."); i > 0 {
		label = label[:i]
	}
	label = strings.NewReplacer("-", " ", "_", " ").Replace(label)
	return cases.Title(language.English).String(label)
}
