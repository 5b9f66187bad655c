package httpserver

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/phishtrack/internal/alert"
	"github.com/and161185/phishtrack/internal/errs"
	"github.com/and161185/phishtrack/internal/model"
)

// memStore is an in-memory backing for every tracking repository.
type memStore struct {
	mu          sync.Mutex
	messages    map[string]*model.Message
	visits      map[string]*model.Visit
	pages       []model.LandingPage
	creds       []model.Credential
	deployments map[string]int64
	conns       []*model.BeaconConnection
	alerts      []alert.Alert
}

func newMemStore() *memStore {
	return &memStore{
		messages:    map[string]*model.Message{"msg1": {ID: "msg1", CampaignID: 1}},
		visits:      map[string]*model.Visit{},
		pages:       []model.LandingPage{{CampaignID: 1, Hostname: "phish.example", Page: "index.html"}},
		deployments: map[string]int64{"dep1": 1},
	}
}

func (m *memStore) CampaignID(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	return msg.CampaignID, nil
}

func (m *memStore) MarkOpened(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.Opened != nil {
		return false, nil
	}
	now := time.Now()
	msg.Opened = &now
	return true, nil
}

func (m *memStore) MessageID(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[id]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v.MessageID, nil
}

func (m *memStore) Create(_ context.Context, v *model.Visit) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	cp.VisitCount = 1
	m.visits[v.ID] = &cp
	var n int64
	for _, r := range m.visits {
		if r.CampaignID == v.CampaignID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Touch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.visits[id]; ok {
		v.VisitCount++
	}
	return nil
}

func (m *memStore) HostAllowed(_ context.Context, c int64, host string) (bool, error) {
	for _, p := range m.pages {
		if p.CampaignID == c && p.Hostname == host {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) PageAllowed(_ context.Context, c int64, host, page string) (bool, error) {
	for _, p := range m.pages {
		if p.CampaignID == c && p.Hostname == host && p.Page == page {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertUnique(_ context.Context, c *model.Credential) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.creds {
		if r.MessageID == c.MessageID && r.Username == c.Username && r.Password == c.Password {
			return false, 0, nil
		}
	}
	m.creds = append(m.creds, *c)
	return true, int64(len(m.creds)), nil
}

func (m *memStore) DeploymentCampaign(_ context.Context, id string) (int64, error) {
	c, ok := m.deployments[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	return c, nil
}

func (m *memStore) Upsert(_ context.Context, c *model.BeaconConnection) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.conns {
		if r.DeploymentID == c.DeploymentID && r.LocalUsername == c.LocalUsername && r.LocalHostname == c.LocalHostname {
			r.VisitCount++
			return false, nil
		}
	}
	cp := *c
	cp.VisitCount = 1
	m.conns = append(m.conns, &cp)
	return true, nil
}

func (m *memStore) Dispatch(a alert.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
}

type fakeAuth struct{ user, pass string }

func (f fakeAuth) Authenticate(_ context.Context, user, pass string) (bool, error) {
	return user == f.user && pass == f.pass, nil
}
