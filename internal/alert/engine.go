package alert

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/errs"
	"github.com/and161185/phishtrack/internal/metrics"
	"github.com/and161185/phishtrack/internal/repository"
)

// DefaultFrom is the reply-to identity of alert messages.
const DefaultFrom = "donotreply@kingphisher.local"

// Sender delivers one text to one phone through its carrier.
type Sender interface {
	Send(ctx context.Context, text, number, carrier, from string) error
}

// Deduper suppresses alerts already raised by another instance.
type Deduper interface {
	// AcquireOnce reports true the first time key is seen.
	AcquireOnce(ctx context.Context, key string) bool
}

// Engine resolves alert recipients and sends the formatted text.
type Engine struct {
	campaigns repository.CampaignRepository
	users     repository.UserRepository
	sender    Sender
	from      string
	dedup     Deduper
	log       *zap.Logger
}

// NewEngine constructs an Engine. An empty from uses DefaultFrom.
func NewEngine(campaigns repository.CampaignRepository, users repository.UserRepository, sender Sender, from string, log *zap.Logger) *Engine {
	if from == "" {
		from = DefaultFrom
	}
	return &Engine{campaigns: campaigns, users: users, sender: sender, from: from, log: log}
}

// WithDeduper enables cross-instance suppression of repeated alerts.
func (e *Engine) WithDeduper(d Deduper) *Engine {
	e.dedup = d
	return e
}

// Raise runs one alert to completion. It is meant to execute on the job
// executor, never on a request goroutine. Send failures are not retried;
// the first one aborts the alert and is returned to the executor.
func (e *Engine) Raise(ctx context.Context, a Alert) error {
	if e.dedup != nil && !e.dedup.AcquireOnce(ctx, strconv.FormatInt(a.CampaignID, 10)+":"+a.Text) {
		e.log.Debug("alert suppressed as duplicate", zap.Int64("campaign_id", a.CampaignID), zap.String("text", a.Text))
		return nil
	}

	var (
		name string
		ids  []string
		err  error
	)
	if a.CampaignID != 0 {
		if name, err = e.campaigns.Name(ctx, a.CampaignID); err != nil {
			return fmt.Errorf("campaign %d name: %w", a.CampaignID, err)
		}
		ids, err = e.users.SubscriberIDs(ctx, a.CampaignID)
	} else {
		ids, err = e.users.SMSUserIDs(ctx)
	}
	if err != nil {
		return fmt.Errorf("alert recipients: %w", err)
	}

	text := a.Text
	if name != "" && strings.Contains(text, CampaignNamePlaceholder) {
		text = strings.ReplaceAll(text, CampaignNamePlaceholder, name)
	}

	for _, id := range ids {
		u, err := e.users.Contact(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("contact %s: %w", id, err)
		}
		if u.PhoneNumber == "" || u.PhoneCarrier == "" {
			continue
		}
		e.log.Debug("sending alert SMS", zap.String("user", id), zap.String("carrier", u.PhoneCarrier))
		if err := e.sender.Send(ctx, text, u.PhoneNumber, u.PhoneCarrier, e.from); err != nil {
			metrics.Alerts.WithLabelValues("failed").Inc()
			return fmt.Errorf("send to %s: %w", id, err)
		}
		metrics.Alerts.WithLabelValues("sent").Inc()
	}
	return nil
}
