package notify

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/slack-go/slack"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

// Slack posts a summary to an incoming webhook when an analysis completes.
type Slack struct {
	WebhookURL string
	// DashboardURL, when set, is linked as <DashboardURL>/<analysisId>.
	DashboardURL string
}

func (s *Slack) AnalysisCompleted(ctx context.Context, a *domain.Session) error {
	msg := &slack.WebhookMessage{Text: Summary(a, s.DashboardURL)}
	if err := slack.PostWebhookContext(ctx, s.WebhookURL, msg); err != nil {
		return eris.Wrap(err, "slack: post webhook")
	}
	return nil
}

// Summary is the one-line message sent for a completed analysis.
func Summary(a *domain.Session, dashboardURL string) string {
	text := fmt.Sprintf("Super User analysis for *%s* (%s) completed", a.BrandName, a.Domain)
	if r := a.AnalysisResults; r != nil {
		text += fmt.Sprintf(": share of voice %.2f%%, AI visibility %.2f%%, %d mentions across %d competitors",
			r.BrandShare, r.AIVisibilityScore, r.TotalMentions, len(r.Competitors))
	}
	if dashboardURL != "" {
		text += fmt.Sprintf(" <%s/%s|view>", dashboardURL, a.ID)
	}
	return text
}
