// Package httpserver exposes the tracking core over HTTP using gin.
package httpserver

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/authn"
	"github.com/and161185/phishtrack/internal/limiter"
	"github.com/and161185/phishtrack/internal/service"
)

// BeaconPath is the fixed deaddrop call-in route.
const BeaconPath = "/kpdd"

const notFoundText = "Resource Not Found"

// pixel is a 49-byte transparent 1x1 GIF.
var pixel, _ = hex.DecodeString("47494638396101000100910000000000ffffffffffff00000021f90401000002002c00000000010001000002025401003b")

// VisitorResolver builds the per-request tracking context.
type VisitorResolver interface {
	Resolve(ctx context.Context, r *http.Request, clientIP string) (*service.Visitor, error)
}

// Gatekeeper decides whether a resource may be served.
type Gatekeeper interface {
	Check(ctx context.Context, v *service.Visitor) (service.Decision, error)
}

// PageTracker records opens and page visits.
type PageTracker interface {
	MarkOpened(ctx context.Context, messageID string) error
	TrackPage(ctx context.Context, v *service.Visitor, setCookie func(*http.Cookie)) error
}

// BeaconRecorder stores deaddrop call-ins.
type BeaconRecorder interface {
	Record(ctx context.Context, token, clientIP string) error
}

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Resolver   VisitorResolver
	Gatekeeper Gatekeeper
	Tracker    PageTracker
	Beacons    BeaconRecorder
	Gate       *limiter.Gate
	Auth       authn.Authenticator // nil rejects every RPC request
}

// Options configure routes and RPC tokens.
type Options struct {
	WebRoot       string
	TrackingImage string
	JWTKey        []byte
	TokenTTL      time.Duration
	Version       string
}

// Server is the HTTP front of the tracking core.
type Server struct {
	deps   Deps
	opts   Options
	root   *os.Root
	engine *gin.Engine
	log    *zap.Logger
}

// New builds the gin engine. The web root must exist.
func New(deps Deps, opts Options, log *zap.Logger) (*Server, error) {
	root, err := os.OpenRoot(opts.WebRoot)
	if err != nil {
		return nil, fmt.Errorf("open web root: %w", err)
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 15 * time.Minute
	}
	s := &Server{deps: deps, opts: opts, root: root, log: log}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.HandleMethodNotAllowed = false
	_ = r.SetTrustedProxies(nil)
	r.Use(Recovery(log), Logging(log), Admission(deps.Gate))

	image := "/" + strings.TrimPrefix(opts.TrackingImage, "/")
	r.GET(image, s.handlePixel)
	r.POST(image, s.handlePixel)
	r.GET(BeaconPath, s.handleBeacon)
	r.POST(BeaconPath, s.handleBeacon)

	rpc := r.Group("/", s.rpcAuth)
	rpc.Handle(MethodRPC, "/login", s.handleLogin)
	rpc.Handle(MethodRPC, "/ping", s.handlePing)
	rpc.Handle(MethodRPC, "/version", s.handleVersion)

	r.NoRoute(s.handleFallback)
	s.engine = r
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Close releases the web root handle.
func (s *Server) Close() error { return s.root.Close() }

func (s *Server) handlePixel(c *gin.Context) {
	setKind(c, "pixel")
	c.Data(http.StatusOK, "image/gif", pixel)
	id := c.Query("id")
	service.BestEffort(s.log, "mark_opened", func() error {
		return s.deps.Tracker.MarkOpened(c.Request.Context(), id)
	})
}

func (s *Server) handleBeacon(c *gin.Context) {
	setKind(c, "beacon")
	if err := s.deps.Beacons.Record(c.Request.Context(), c.Query("token"), c.ClientIP()); err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusOK)
}

// handleFallback serves GET and POST for every path without a dedicated route.
func (s *Server) handleFallback(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodGet, http.MethodPost:
		s.handlePage(c)
	case MethodRPC:
		setKind(c, "rpc")
		s.rpcAuth(c)
		if !c.IsAborted() {
			c.AbortWithStatus(http.StatusNotFound)
		}
	default:
		c.AbortWithStatus(http.StatusNotImplemented)
	}
}

func (s *Server) handlePage(c *gin.Context) {
	setKind(c, "page")
	name, f, info, err := s.openFile(c.Request.URL.Path)
	if err != nil {
		s.notFound(c)
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	v, err := s.deps.Resolver.Resolve(ctx, c.Request, c.ClientIP())
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("resolve visitor: %w", err))
		return
	}
	d, err := s.deps.Gatekeeper.Check(ctx, v)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("gatekeeper: %w", err))
		return
	}
	if !d.Allow {
		s.notFound(c)
		return
	}

	if service.IsPage(name) {
		service.BestEffort(s.log, "track_page", func() error {
			return s.deps.Tracker.TrackPage(ctx, v, func(ck *http.Cookie) { http.SetCookie(c.Writer, ck) })
		})
	}
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}

// openFile maps a URL path into the web root. Directories resolve to their
// index.html; there is no listing.
func (s *Server) openFile(urlPath string) (string, *os.File, fs.FileInfo, error) {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		name = "."
	}
	f, info, err := s.openRegular(name)
	if errors.Is(err, errIsDir) {
		name = path.Join(name, "index.html")
		f, info, err = s.openRegular(name)
	}
	if err != nil {
		return "", nil, nil, err
	}
	return name, f, info, nil
}

var errIsDir = errors.New("is a directory")

func (s *Server) openRegular(name string) (*os.File, fs.FileInfo, error) {
	f, err := s.root.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, errIsDir
	}
	return f, info, nil
}

// notFound answers every denial and missing file identically.
func (s *Server) notFound(c *gin.Context) {
	body := []byte(notFoundText + "\n")
	if custom, err := fs.ReadFile(s.root.FS(), "error_404.html"); err == nil {
		body = custom
	}
	c.Data(http.StatusNotFound, "text/html", body)
	c.Abort()
}

func setKind(c *gin.Context, kind string) { c.Set(kindKey, kind) }
