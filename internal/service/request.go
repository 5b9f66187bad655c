// Package service implements the tracking protocol: gatekeeping, visit and
// credential capture, deaddrop call-ins and milestone alert scheduling.
package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/and161185/phishtrack/internal/errs"
	"github.com/and161185/phishtrack/internal/repository"
)

// Visitor is the per-request tracking context. It is resolved once when
// handling starts and shared by pointer with every component.
type Visitor struct {
	MessageID  string // from ?id= or the session cookie's visit row
	CampaignID int64  // 0 when the message is unknown
	VisitID    string // existing session, empty when the cookie is absent or unknown
	Host       string
	Path       string // request path without the leading slash
	ClientIP   string
	UserAgent  string
	Params     url.Values // query and form values
}

// Param returns the first value of a request parameter.
func (v *Visitor) Param(name string) string {
	return v.Params.Get(name)
}

// Resolver builds Visitors from HTTP requests.
type Resolver struct {
	messages   repository.MessageRepository
	visits     repository.VisitRepository
	cookieName string
}

// NewResolver constructs a Resolver reading the session from cookieName.
func NewResolver(messages repository.MessageRepository, visits repository.VisitRepository, cookieName string) *Resolver {
	return &Resolver{messages: messages, visits: visits, cookieName: cookieName}
}

// CookieName is the session cookie name.
func (r *Resolver) CookieName() string { return r.cookieName }

// Resolve reads identity from the request. Store failures are returned;
// unknown messages and sessions simply leave the fields empty.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, clientIP string) (*Visitor, error) {
	params := req.URL.Query()
	if err := req.ParseForm(); err == nil {
		params = req.Form
	}
	v := &Visitor{
		MessageID: params.Get("id"),
		Host:      req.Host,
		Path:      strings.TrimPrefix(req.URL.Path, "/"),
		ClientIP:  clientIP,
		UserAgent: req.UserAgent(),
		Params:    params,
	}

	if c, err := req.Cookie(r.cookieName); err == nil && ValidSessionID(c.Value) {
		msgID, err := r.visits.MessageID(ctx, c.Value)
		switch {
		case err == nil:
			v.VisitID = c.Value
			if v.MessageID == "" {
				v.MessageID = msgID
			}
		case !errors.Is(err, errs.ErrNotFound):
			return nil, err
		}
	}

	if v.MessageID != "" {
		id, err := r.messages.CampaignID(ctx, v.MessageID)
		switch {
		case err == nil:
			v.CampaignID = id
		case !errors.Is(err, errs.ErrNotFound):
			return nil, err
		}
	}
	return v, nil
}
