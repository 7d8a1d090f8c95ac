package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/ljoukov/dust/internal/config"
	"github.com/ljoukov/dust/internal/domain"
)

// coreAPI is the slice of the core API client the server needs. The cookie
// argument is the caller's session cookie, forwarded verbatim so the core
// API can authorize the request itself.
type coreAPI interface {
	GetApp(ctx context.Context, cookie, sID string) (*domain.App, error)
	ListDatasets(ctx context.Context, cookie, sID string) ([]domain.DatasetSummary, error)
	GetDatasetLatest(ctx context.Context, cookie, sID, name string) (*domain.Dataset, error)
	UpdateDataset(ctx context.Context, cookie, sID, name string, dataset domain.Dataset) error
	Ping(ctx context.Context) error
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	core         coreAPI
	auth         authProvider
	sessionStore *sessions.CookieStore
	clock        clockwork.Clock
	startTime    time.Time

	landingTemplate  *template.Template
	loginTemplate    *template.Template
	datasetsTemplate *template.Template
	editorTemplate   *template.Template
}

func NewServer(cfg *config.Config, core coreAPI, clock clockwork.Clock) (*Server, error) {
	// Parse templates once at startup
	landingTmpl, err := template.ParseFiles("web/templates/landing.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse landing template: %w", err)
	}
	loginTmpl, err := template.ParseFiles("web/templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}
	datasetsTmpl, err := template.ParseFiles("web/templates/datasets.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse datasets template: %w", err)
	}
	editorTmpl, err := template.ParseFiles("web/templates/dataset_editor.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset editor template: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:             e,
		config:           cfg,
		core:             core,
		auth:             newOAuthClient(cfg),
		sessionStore:     sessionStore,
		clock:            clock,
		startTime:        clock.Now(),
		landingTemplate:  landingTmpl,
		loginTemplate:    loginTmpl,
		datasetsTemplate: datasetsTmpl,
		editorTemplate:   editorTmpl,
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
