package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/ljoukov/dust/internal/config"
	"github.com/ljoukov/dust/internal/domain"
	apperrors "github.com/ljoukov/dust/internal/platform/errors"
)

// --- Mock implementations ---

type coreCall struct {
	Endpoint string
	Cookie   string
	SID      string
	Name     string
}

type mockCoreAPI struct {
	mu    sync.Mutex
	calls []coreCall

	getAppFn           func(ctx context.Context, cookie, sID string) (*domain.App, error)
	listDatasetsFn     func(ctx context.Context, cookie, sID string) ([]domain.DatasetSummary, error)
	getDatasetLatestFn func(ctx context.Context, cookie, sID, name string) (*domain.Dataset, error)
	updateDatasetFn    func(ctx context.Context, cookie, sID, name string, dataset domain.Dataset) error
	pingFn             func(ctx context.Context) error
}

func (m *mockCoreAPI) record(call coreCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockCoreAPI) Calls() []coreCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]coreCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockCoreAPI) GetApp(ctx context.Context, cookie, sID string) (*domain.App, error) {
	m.record(coreCall{Endpoint: "get_app", Cookie: cookie, SID: sID})
	if m.getAppFn != nil {
		return m.getAppFn(ctx, cookie, sID)
	}
	return &domain.App{SID: sID, Name: "test-app"}, nil
}

func (m *mockCoreAPI) ListDatasets(ctx context.Context, cookie, sID string) ([]domain.DatasetSummary, error) {
	m.record(coreCall{Endpoint: "list_datasets", Cookie: cookie, SID: sID})
	if m.listDatasetsFn != nil {
		return m.listDatasetsFn(ctx, cookie, sID)
	}
	return []domain.DatasetSummary{{Name: "d1"}}, nil
}

func (m *mockCoreAPI) GetDatasetLatest(ctx context.Context, cookie, sID, name string) (*domain.Dataset, error) {
	m.record(coreCall{Endpoint: "get_dataset_latest", Cookie: cookie, SID: sID, Name: name})
	if m.getDatasetLatestFn != nil {
		return m.getDatasetLatestFn(ctx, cookie, sID, name)
	}
	return &domain.Dataset{Name: name, Data: []json.RawMessage{json.RawMessage(`{"q":"hello"}`)}}, nil
}

func (m *mockCoreAPI) UpdateDataset(ctx context.Context, cookie, sID, name string, dataset domain.Dataset) error {
	m.record(coreCall{Endpoint: "update_dataset", Cookie: cookie, SID: sID, Name: name})
	if m.updateDatasetFn != nil {
		return m.updateDatasetFn(ctx, cookie, sID, name, dataset)
	}
	return nil
}

func (m *mockCoreAPI) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type mockAuthProvider struct {
	result *authResult
	err    error
}

func (m *mockAuthProvider) AuthorizeURL(state string) string {
	return "https://auth.example.com/authorize?state=" + state
}

func (m *mockAuthProvider) ExchangeCode(_ context.Context, _ string) (*authResult, error) {
	return m.result, m.err
}

// --- Test helpers ---

func newTestServer(t *testing.T, core coreAPI) *Server {
	t.Helper()

	landingTmpl := template.Must(template.New("landing.html").Parse(`Landing {{.Username}}`))
	loginTmpl := template.Must(template.New("login.html").Parse(`Login {{.AuthURL}}`))
	datasetsTmpl := template.Must(template.New("datasets.html").Parse(
		`Datasets {{.AppName}}{{range .Datasets}} {{.Name}}{{end}}`))
	editorTmpl := template.Must(template.New("dataset_editor.html").Parse(
		`Editor {{.AppName}} {{.DatasetName}} {{.Rows}}`))

	store := sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!!"))
	store.Options = &sessions.Options{
		Path:   "/",
		MaxAge: 3600,
	}

	e := echo.New()

	srv := &Server{
		echo: e,
		config: &config.Config{
			AppEnv:        "test",
			SessionMaxAge: time.Hour,
		},
		core:             core,
		auth:             &mockAuthProvider{result: &authResult{Username: "alice"}},
		sessionStore:     store,
		clock:            clockwork.NewFakeClock(),
		landingTemplate:  landingTmpl,
		loginTemplate:    loginTmpl,
		datasetsTemplate: datasetsTmpl,
		editorTemplate:   editorTmpl,
	}
	srv.startTime = srv.clock.Now()
	srv.registerRoutes()

	return srv
}

// sessionCookies logs in the given username and returns the resulting
// session cookies for use on subsequent requests.
func sessionCookies(t *testing.T, srv *Server, username string) []*http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	session, err := srv.sessionStore.Get(req, sessionName)
	require.NoError(t, err)
	session.Values[sessionKeyUsername] = username
	require.NoError(t, session.Save(req, rec))

	return rec.Result().Cookies()
}

func addCookies(req *http.Request, cookies []*http.Cookie) {
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
}

// newHandlerContext builds an echo context for direct handler invocation
// with an authenticated session and route parameters already bound.
func newHandlerContext(srv *Server, req *http.Request, username string, params map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)
	c.Set(contextKeySession, domain.Session{Username: username})
	names := make([]string, 0, len(params))
	values := make([]string, 0, len(params))
	for name, value := range params {
		names = append(names, name)
		values = append(values, value)
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func mustTemplate(t *testing.T, text string) *template.Template {
	t.Helper()
	return template.Must(template.New("test").Parse(text))
}

func requireErrorType(t *testing.T, err error, errType apperrors.ErrorType) {
	t.Helper()
	structured := apperrors.AsStructuredError(err)
	require.NotNil(t, structured)
	require.Equal(t, errType, structured.Type, fmt.Sprintf("unexpected error: %v", err))
}
