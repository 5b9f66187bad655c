package service

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/metrics"
	"github.com/and161185/phishtrack/internal/repository"
)

// Reason explains a gatekeeper decision.
type Reason string

// Gatekeeper reasons.
const (
	ReasonOpen          Reason = "open"           // identity enforcement disabled
	ReasonBypass        Reason = "bypass"         // secret id presented
	ReasonLandingPage   Reason = "landing_page"   // campaign serves this host
	ReasonNoIdentity    Reason = "no_identity"    // no message resolved
	ReasonUnmatchedHost Reason = "unmatched_host" // host is not a landing page of the campaign
)

// Decision is the gatekeeper verdict for one request.
type Decision struct {
	Allow  bool
	Reason Reason
}

// Gatekeeper decides whether a resource may be served.
type Gatekeeper struct {
	pages     repository.LandingPageRepository
	requireID bool
	secretID  string
	log       *zap.Logger
}

// NewGatekeeper constructs a Gatekeeper. With requireID false every request is allowed.
func NewGatekeeper(pages repository.LandingPageRepository, requireID bool, secretID string, log *zap.Logger) *Gatekeeper {
	return &Gatekeeper{pages: pages, requireID: requireID, secretID: secretID, log: log}
}

// Check applies the access rules. Denials are logged with their reason but
// callers must answer every denial with the same not-found response.
func (g *Gatekeeper) Check(ctx context.Context, v *Visitor) (Decision, error) {
	if !g.requireID {
		return Decision{Allow: true, Reason: ReasonOpen}, nil
	}
	if g.secretID != "" && v.MessageID == g.secretID {
		return Decision{Allow: true, Reason: ReasonBypass}, nil
	}
	if v.CampaignID == 0 {
		return g.deny(v, ReasonNoIdentity), nil
	}
	ok, err := g.pages.HostAllowed(ctx, v.CampaignID, v.Host)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return g.deny(v, ReasonUnmatchedHost), nil
	}
	return Decision{Allow: true, Reason: ReasonLandingPage}, nil
}

func (g *Gatekeeper) deny(v *Visitor, reason Reason) Decision {
	metrics.Denials.WithLabelValues(string(reason)).Inc()
	g.log.Warn("denying request with not found",
		zap.String("reason", string(reason)),
		zap.String("host", v.Host),
		zap.String("path", v.Path),
		zap.String("message_id", v.MessageID),
		zap.String("client_ip", v.ClientIP),
	)
	return Decision{Allow: false, Reason: reason}
}

// IsPage reports whether a served file counts as a page visit: no extension, .htm or .html.
func IsPage(name string) bool {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "", "htm", "html":
		return true
	}
	return false
}
