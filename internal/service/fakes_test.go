package service

import (
	"context"
	"sync"

	"github.com/and161185/phishtrack/internal/alert"
	"github.com/and161185/phishtrack/internal/errs"
	"github.com/and161185/phishtrack/internal/model"
)

type fakeMessages struct {
	campaigns map[string]int64
	opened    map[string]bool
	err       error
}

func (f *fakeMessages) CampaignID(_ context.Context, id string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	c, ok := f.campaigns[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	return c, nil
}

func (f *fakeMessages) MarkOpened(_ context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.campaigns[id]; !ok || f.opened[id] {
		return false, nil
	}
	f.opened[id] = true
	return true, nil
}

type fakeVisits struct {
	rows    map[string]*model.Visit
	touched map[string]int
	err     error
}

func (f *fakeVisits) MessageID(_ context.Context, id string) (string, error) {
	v, ok := f.rows[id]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v.MessageID, nil
}

func (f *fakeVisits) Create(_ context.Context, v *model.Visit) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.rows[v.ID] = v
	var n int64
	for _, r := range f.rows {
		if r.CampaignID == v.CampaignID {
			n++
		}
	}
	return n, nil
}

func (f *fakeVisits) Touch(_ context.Context, id string) error {
	f.touched[id]++
	return nil
}

type page struct {
	campaign   int64
	host, page string
}

type fakePages struct{ pages []page }

func (f *fakePages) HostAllowed(_ context.Context, c int64, host string) (bool, error) {
	for _, p := range f.pages {
		if p.campaign == c && p.host == host {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePages) PageAllowed(_ context.Context, c int64, host, pg string) (bool, error) {
	for _, p := range f.pages {
		if p.campaign == c && p.host == host && p.page == pg {
			return true, nil
		}
	}
	return false, nil
}

type fakeCreds struct{ rows []model.Credential }

func (f *fakeCreds) InsertUnique(_ context.Context, c *model.Credential) (bool, int64, error) {
	var n int64
	for _, r := range f.rows {
		if r.MessageID == c.MessageID && r.Username == c.Username && r.Password == c.Password {
			return false, 0, nil
		}
	}
	f.rows = append(f.rows, *c)
	for _, r := range f.rows {
		if r.CampaignID == c.CampaignID {
			n++
		}
	}
	return true, n, nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (f *fakeDispatcher) Dispatch(a alert.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
}

type fakeBeacons struct {
	deployments map[string]int64
	conns       map[[3]string]*model.BeaconConnection
	err         error
}

func (f *fakeBeacons) DeploymentCampaign(_ context.Context, id string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	c, ok := f.deployments[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	return c, nil
}

func (f *fakeBeacons) Upsert(_ context.Context, c *model.BeaconConnection) (bool, error) {
	key := [3]string{c.DeploymentID, c.LocalUsername, c.LocalHostname}
	if row, ok := f.conns[key]; ok {
		row.VisitCount++
		return false, nil
	}
	cp := *c
	cp.VisitCount = 1
	f.conns[key] = &cp
	return true, nil
}
