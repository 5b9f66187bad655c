package service

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/alert"
	"github.com/and161185/phishtrack/internal/metrics"
	"github.com/and161185/phishtrack/internal/model"
	"github.com/and161185/phishtrack/internal/repository"
)

// TrackerDeps groups the stores used by Tracker.
type TrackerDeps struct {
	Messages    repository.MessageRepository
	Visits      repository.VisitRepository
	Pages       repository.LandingPageRepository
	Credentials repository.CredentialRepository
}

// Tracker records page visits and submitted credentials.
type Tracker struct {
	messages    repository.MessageRepository
	visits      repository.VisitRepository
	pages       repository.LandingPageRepository
	credentials repository.CredentialRepository
	alerts      alert.Dispatcher
	cookieName  string
	secretID    string
	log         *zap.Logger

	newID func() (string, error)
}

// NewTracker constructs a Tracker.
func NewTracker(d TrackerDeps, alerts alert.Dispatcher, cookieName, secretID string, log *zap.Logger) *Tracker {
	return &Tracker{
		messages:    d.Messages,
		visits:      d.Visits,
		pages:       d.Pages,
		credentials: d.Credentials,
		alerts:      alerts,
		cookieName:  cookieName,
		secretID:    secretID,
		log:         log,
		newID:       NewSessionID,
	}
}

// MarkOpened stamps a message as opened. Empty ids are ignored.
func (t *Tracker) MarkOpened(ctx context.Context, messageID string) error {
	if messageID == "" || messageID == t.secretID {
		return nil
	}
	changed, err := t.messages.MarkOpened(ctx, messageID)
	if err != nil {
		return fmt.Errorf("mark opened: %w", err)
	}
	if changed {
		t.log.Debug("message opened", zap.String("message_id", messageID))
	}
	return nil
}

// TrackPage records a page view. Requests without a campaign, or carrying
// the secret id, are not tracked. setCookie is called at most once, before
// any body is written by the caller.
func (t *Tracker) TrackPage(ctx context.Context, v *Visitor, setCookie func(*http.Cookie)) error {
	if v.MessageID == "" || v.MessageID == t.secretID || v.CampaignID == 0 {
		return nil
	}
	if err := t.MarkOpened(ctx, v.MessageID); err != nil {
		return err
	}

	if v.VisitID == "" {
		if err := t.newVisit(ctx, v, setCookie); err != nil {
			return err
		}
	} else if err := t.repeatVisit(ctx, v); err != nil {
		return err
	}

	return t.CaptureCredentials(ctx, v)
}

func (t *Tracker) newVisit(ctx context.Context, v *Visitor, setCookie func(*http.Cookie)) error {
	id, err := t.newID()
	if err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	setCookie(&http.Cookie{Name: t.cookieName, Value: id, Path: "/", HttpOnly: true})

	n, err := t.visits.Create(ctx, &model.Visit{
		ID:         id,
		MessageID:  v.MessageID,
		CampaignID: v.CampaignID,
		VisitorIP:  v.ClientIP,
		UserAgent:  v.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("create visit: %w", err)
	}
	v.VisitID = id
	metrics.Visits.WithLabelValues("new").Inc()
	t.log.Info("new visit",
		zap.String("visit_id", id),
		zap.String("message_id", v.MessageID),
		zap.Int64("campaign_id", v.CampaignID),
		zap.Int64("campaign_visits", n),
	)
	if alert.VisitMilestone(n) {
		t.alerts.Dispatch(alert.VisitsReached(n, v.CampaignID))
	}
	return nil
}

func (t *Tracker) repeatVisit(ctx context.Context, v *Visitor) error {
	ok, err := t.pages.PageAllowed(ctx, v.CampaignID, v.Host, v.Path)
	if err != nil {
		return fmt.Errorf("landing page: %w", err)
	}
	if !ok {
		return nil
	}
	if err := t.visits.Touch(ctx, v.VisitID); err != nil {
		return fmt.Errorf("touch visit: %w", err)
	}
	metrics.Visits.WithLabelValues("repeat").Inc()
	return nil
}
