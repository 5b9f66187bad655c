package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGatekeeper_Check(t *testing.T) {
	pages := &fakePages{pages: []page{{campaign: 7, host: "phish.example", page: "login.html"}}}
	g := NewGatekeeper(pages, true, "secret", zaptest.NewLogger(t))

	cases := []struct {
		name   string
		v      Visitor
		allow  bool
		reason Reason
	}{
		{"bypass", Visitor{MessageID: "secret", Host: "other"}, true, ReasonBypass},
		{"no identity", Visitor{Host: "phish.example"}, false, ReasonNoIdentity},
		{"unknown message", Visitor{MessageID: "x", Host: "phish.example"}, false, ReasonNoIdentity},
		{"unmatched host", Visitor{MessageID: "m", CampaignID: 7, Host: "evil.example"}, false, ReasonUnmatchedHost},
		{"landing host", Visitor{MessageID: "m", CampaignID: 7, Host: "phish.example", Path: "img/logo.png"}, true, ReasonLandingPage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := g.Check(context.Background(), &tc.v)
			require.NoError(t, err)
			require.Equal(t, tc.allow, d.Allow)
			require.Equal(t, tc.reason, d.Reason)
		})
	}
}

func TestGatekeeper_Disabled(t *testing.T) {
	g := NewGatekeeper(&fakePages{}, false, "", zaptest.NewLogger(t))
	d, err := g.Check(context.Background(), &Visitor{})
	require.NoError(t, err)
	require.True(t, d.Allow)
	require.Equal(t, ReasonOpen, d.Reason)
}

func TestIsPage(t *testing.T) {
	require.True(t, IsPage("index.html"))
	require.True(t, IsPage("a/b.HTM"))
	require.True(t, IsPage("login"))
	require.False(t, IsPage("logo.png"))
	require.False(t, IsPage("app.js"))
}
