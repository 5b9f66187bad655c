// Package model defines domain entities used by services and repositories.
package model

import "time"

// Campaign groups messages, visits, credentials and landing pages.
type Campaign struct {
	ID   int64
	Name string
}

// Message is one simulated outbound communication tied to a campaign.
type Message struct {
	ID         string
	CampaignID int64
	Opened     *time.Time // set at most once
}

// LandingPage is an allow-listed hostname+page combination of a campaign.
type LandingPage struct {
	CampaignID int64
	Hostname   string
	Page       string
}

// Visit is one tracked browsing session.
type Visit struct {
	ID         string // 24-char session identifier, also the cookie value
	MessageID  string
	CampaignID int64
	VisitorIP  string
	UserAgent  string
	VisitCount int64 // starts at 1, only increases
	LastVisit  time.Time
}

// Credential is a submitted username/password pair. Unique per (message, username, password).
type Credential struct {
	VisitID    string
	MessageID  string
	CampaignID int64
	Username   string
	Password   string
}

// BeaconConnection is a deaddrop call-in, unique per (deployment, local user, local host).
type BeaconConnection struct {
	DeploymentID     string
	CampaignID       int64
	VisitorIP        string
	LocalUsername    string
	LocalHostname    string
	LocalIPAddresses string // space separated, may be empty
	VisitCount       int64
	LastVisit        time.Time
}

// User is an operator account eligible for SMS alerts when phone and carrier are set.
type User struct {
	ID           string
	PhoneNumber  string
	PhoneCarrier string
}
