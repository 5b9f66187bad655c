package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/alert"
	"github.com/and161185/phishtrack/internal/metrics"
	"github.com/and161185/phishtrack/internal/model"
)

var (
	usernameParams = []string{"username", "user", "u"}
	passwordParams = []string{"password", "pass", "p"}
)

// lookupParam returns the first non-empty value among each name as given,
// title cased and upper cased.
func lookupParam(v *Visitor, names []string) string {
	for _, name := range names {
		for _, n := range []string{name, strings.ToUpper(name[:1]) + name[1:], strings.ToUpper(name)} {
			if val := v.Param(n); val != "" {
				return val
			}
		}
	}
	return ""
}

// CaptureCredentials stores a username/password pair found in the request
// parameters. Identical pairs for the same message are stored once.
func (t *Tracker) CaptureCredentials(ctx context.Context, v *Visitor) error {
	username := lookupParam(v, usernameParams)
	if username == "" {
		return nil
	}
	password := lookupParam(v, passwordParams)

	inserted, n, err := t.credentials.InsertUnique(ctx, &model.Credential{
		VisitID:    v.VisitID,
		MessageID:  v.MessageID,
		CampaignID: v.CampaignID,
		Username:   username,
		Password:   password,
	})
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	if !inserted {
		metrics.Credentials.WithLabelValues("duplicate").Inc()
		return nil
	}
	metrics.Credentials.WithLabelValues("inserted").Inc()
	t.log.Info("credentials captured",
		zap.String("visit_id", v.VisitID),
		zap.String("message_id", v.MessageID),
		zap.Int64("campaign_id", v.CampaignID),
		zap.Int64("campaign_credentials", n),
	)
	if alert.CredentialMilestone(n) {
		t.alerts.Dispatch(alert.CredentialsSubmitted(n, v.CampaignID))
	}
	return nil
}
