// Package alert decides when campaign counters deserve a notification and
// delivers those notifications to subscribed operators.
package alert

import "fmt"

// CampaignNamePlaceholder is replaced with the campaign display name.
const CampaignNamePlaceholder = "{campaign_name}"

// VisitMilestone reports whether the n-th campaign visit triggers an alert.
func VisitMilestone(n int64) bool {
	return n > 0 && (n == 1 || n == 10 || n == 25 || n%50 == 0)
}

// CredentialMilestone reports whether the n-th campaign credential triggers an alert.
func CredentialMilestone(n int64) bool {
	return n > 0 && (n == 1 || n == 5 || n == 10 || n%25 == 0)
}

// Alert is one unit of notification work.
type Alert struct {
	Text       string `json:"text"`
	CampaignID int64  `json:"campaign_id,omitempty"` // 0 means every SMS-capable user
}

// VisitsReached builds the visit milestone alert for a campaign.
func VisitsReached(n, campaignID int64) Alert {
	return Alert{Text: fmt.Sprintf("%d visits reached for campaign: %s", n, CampaignNamePlaceholder), CampaignID: campaignID}
}

// CredentialsSubmitted builds the credential milestone alert for a campaign.
func CredentialsSubmitted(n, campaignID int64) Alert {
	return Alert{Text: fmt.Sprintf("%d credentials submitted for campaign: %s", n, CampaignNamePlaceholder), CampaignID: campaignID}
}

// Dispatcher hands alerts to an asynchronous executor. Dispatch must not block.
type Dispatcher interface {
	Dispatch(a Alert)
}
