// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/phishtrack/internal/model"
)

// MessageRepository resolves and stamps messages.
type MessageRepository interface {
	// CampaignID returns the campaign owning a message.
	CampaignID(ctx context.Context, messageID string) (int64, error)
	// MarkOpened sets the opened timestamp if still unset; reports whether it changed.
	MarkOpened(ctx context.Context, messageID string) (bool, error)
}

// VisitRepository records page visits.
type VisitRepository interface {
	// MessageID returns the message a visit session belongs to.
	MessageID(ctx context.Context, visitID string) (string, error)
	// Create inserts a visit and returns the campaign's visit count read back afterwards.
	Create(ctx context.Context, v *model.Visit) (int64, error)
	// Touch increments visit_count and refreshes last_visit.
	Touch(ctx context.Context, visitID string) error
}

// LandingPageRepository answers allow-list questions for the gatekeeper.
type LandingPageRepository interface {
	// HostAllowed reports whether any landing page of the campaign uses the hostname.
	HostAllowed(ctx context.Context, campaignID int64, hostname string) (bool, error)
	// PageAllowed reports whether (hostname, page) is a landing page of the campaign.
	PageAllowed(ctx context.Context, campaignID int64, hostname, page string) (bool, error)
}

// CredentialRepository stores submitted credentials.
type CredentialRepository interface {
	// InsertUnique inserts the credential unless an identical (message, username, password)
	// row exists. The campaign credential count is returned only when a row was inserted.
	InsertUnique(ctx context.Context, c *model.Credential) (inserted bool, count int64, err error)
}

// BeaconRepository stores deaddrop call-ins.
type BeaconRepository interface {
	// DeploymentCampaign returns the campaign owning a deployment.
	DeploymentCampaign(ctx context.Context, deploymentID string) (int64, error)
	// Upsert increments an existing connection or inserts a new one; reports creation.
	Upsert(ctx context.Context, c *model.BeaconConnection) (created bool, err error)
}

// CampaignRepository reads campaign metadata.
type CampaignRepository interface {
	// Name returns the campaign display name.
	Name(ctx context.Context, campaignID int64) (string, error)
}

// UserRepository resolves alert recipients.
type UserRepository interface {
	// SubscriberIDs lists users subscribed to alerts of one campaign.
	SubscriberIDs(ctx context.Context, campaignID int64) ([]string, error)
	// SMSUserIDs lists users with both phone number and carrier set.
	SMSUserIDs(ctx context.Context) ([]string, error)
	// Contact loads a user's phone number and carrier (empty when unset).
	Contact(ctx context.Context, userID string) (model.User, error)
}
