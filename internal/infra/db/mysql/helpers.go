package mysql

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func encodeSession(s *domain.Session) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", eris.Wrap(err, "mysql: marshal session")
	}
	return string(b), nil
}

func decodeSession(doc []byte) (*domain.Session, error) {
	var s domain.Session
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, eris.Wrap(err, "mysql: unmarshal session")
	}
	return &s, nil
}
