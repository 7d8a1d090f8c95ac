package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ljoukov/dust/internal/domain"
	apperrors "github.com/ljoukov/dust/internal/platform/errors"
)

// --- editor page loader ---

func TestDatasetEditor_NoSession_RedirectsWithoutAPICalls(t *testing.T) {
	core := &mockCoreAPI{}
	srv := newTestServer(t, core)

	req := httptest.NewRequest(http.MethodGet, "/alice/a/s1/datasets/d1", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Empty(t, core.Calls())
}

func TestDatasetEditor_WrongUser_RedirectsWithoutAPICalls(t *testing.T) {
	core := &mockCoreAPI{}
	srv := newTestServer(t, core)
	cookies := sessionCookies(t, srv, "bob")

	req := httptest.NewRequest(http.MethodGet, "/alice/a/s1/datasets/d1", nil)
	addCookies(req, cookies)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Empty(t, core.Calls())
}

func TestDatasetEditor_LoadsAllThreeEndpoints(t *testing.T) {
	core := &mockCoreAPI{
		getAppFn: func(_ context.Context, _, sID string) (*domain.App, error) {
			return &domain.App{SID: sID, Name: "qa-helper"}, nil
		},
		listDatasetsFn: func(_ context.Context, _, _ string) ([]domain.DatasetSummary, error) {
			return []domain.DatasetSummary{{Name: "d1"}, {Name: "d2"}}, nil
		},
		getDatasetLatestFn: func(_ context.Context, _, _, name string) (*domain.Dataset, error) {
			return &domain.Dataset{Name: name, Data: []json.RawMessage{json.RawMessage(`{"q":"hi"}`)}}, nil
		},
	}
	srv := newTestServer(t, core)
	cookies := sessionCookies(t, srv, "alice")

	req := httptest.NewRequest(http.MethodGet, "/alice/a/s1/datasets/d1", nil)
	addCookies(req, cookies)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "qa-helper")
	assert.Contains(t, rec.Body.String(), "d1")

	calls := core.Calls()
	require.Len(t, calls, 3)

	wantCookie := req.Header.Get("Cookie")
	endpoints := make(map[string]bool, 3)
	for _, call := range calls {
		endpoints[call.Endpoint] = true
		assert.Equal(t, wantCookie, call.Cookie, "endpoint %s must forward the original cookie header", call.Endpoint)
		assert.Equal(t, "s1", call.SID)
	}
	assert.True(t, endpoints["get_app"])
	assert.True(t, endpoints["list_datasets"])
	assert.True(t, endpoints["get_dataset_latest"])
}

func TestDatasetEditor_UpstreamFailureIsLoaderFault(t *testing.T) {
	core := &mockCoreAPI{
		getAppFn: func(_ context.Context, _, _ string) (*domain.App, error) {
			return nil, fmt.Errorf("core api /api/apps/s1 returned status 500")
		},
	}
	srv := newTestServer(t, core)
	cookies := sessionCookies(t, srv, "alice")

	req := httptest.NewRequest(http.MethodGet, "/alice/a/s1/datasets/d1", nil)
	addCookies(req, cookies)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to load dataset")
}

// --- update submit ---

func TestDatasetUpdate_PostsPendingAndRedirects(t *testing.T) {
	var gotDataset domain.Dataset
	core := &mockCoreAPI{
		updateDatasetFn: func(_ context.Context, _, _, _ string, dataset domain.Dataset) error {
			gotDataset = dataset
			return nil
		},
	}
	srv := newTestServer(t, core)

	form := url.Values{}
	form.Set("data", `[{"q":"edited"},{"q":"new row"}]`)

	req := httptest.NewRequest(http.MethodPost, "/alice/a/s1/datasets/d1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", "session=abc")
	c, rec := newHandlerContext(srv, req, "alice", map[string]string{"user": "alice", "sId": "s1", "name": "d1"})

	err := srv.handleDatasetUpdate(c)
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/alice/a/s1/datasets", rec.Header().Get("Location"))

	calls := core.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "update_dataset", calls[0].Endpoint)
	assert.Equal(t, "session=abc", calls[0].Cookie)
	assert.Equal(t, "s1", calls[0].SID)
	assert.Equal(t, "d1", calls[0].Name)

	encoded, err := json.Marshal(gotDataset)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"d1","data":[{"q":"edited"},{"q":"new row"}]}`, string(encoded))
}

func TestDatasetUpdate_InvalidPayloadBlocksSubmit(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed JSON", `[{"q":"edited"`},
		{"not an array", `{"q":"edited"}`},
		{"row not an object", `[{"q":"a"},"loose string"]`},
		{"empty payload", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := &mockCoreAPI{}
			srv := newTestServer(t, core)

			form := url.Values{}
			form.Set("data", tt.payload)

			req := httptest.NewRequest(http.MethodPost, "/alice/a/s1/datasets/d1", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			c, _ := newHandlerContext(srv, req, "alice", map[string]string{"user": "alice", "sId": "s1", "name": "d1"})

			err := srv.handleDatasetUpdate(c)
			requireErrorType(t, err, apperrors.TypeValidation)
			assert.Empty(t, core.Calls(), "an invalid edit must never reach the core API")
		})
	}
}

func TestDatasetUpdate_UpstreamFailure(t *testing.T) {
	core := &mockCoreAPI{
		updateDatasetFn: func(_ context.Context, _, _, _ string, _ domain.Dataset) error {
			return fmt.Errorf("core api returned status 500")
		},
	}
	srv := newTestServer(t, core)

	form := url.Values{}
	form.Set("data", `[{"q":"edited"}]`)

	req := httptest.NewRequest(http.MethodPost, "/alice/a/s1/datasets/d1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c, _ := newHandlerContext(srv, req, "alice", map[string]string{"user": "alice", "sId": "s1", "name": "d1"})

	err := srv.handleDatasetUpdate(c)
	requireErrorType(t, err, apperrors.TypeExternal)
}

func TestDatasetUpdate_NoSession_Redirects(t *testing.T) {
	core := &mockCoreAPI{}
	srv := newTestServer(t, core)

	form := url.Values{}
	form.Set("data", `[{"q":"edited"}]`)

	req := httptest.NewRequest(http.MethodPost, "/alice/a/s1/datasets/d1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Empty(t, core.Calls())
}

// --- listing page ---

func TestDatasetList_Success(t *testing.T) {
	core := &mockCoreAPI{
		listDatasetsFn: func(_ context.Context, _, _ string) ([]domain.DatasetSummary, error) {
			return []domain.DatasetSummary{{Name: "d1"}, {Name: "d2"}}, nil
		},
	}
	srv := newTestServer(t, core)
	cookies := sessionCookies(t, srv, "alice")

	req := httptest.NewRequest(http.MethodGet, "/alice/a/s1/datasets", nil)
	addCookies(req, cookies)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "d1")
	assert.Contains(t, rec.Body.String(), "d2")
}

func TestDatasetList_NoSession_Redirects(t *testing.T) {
	core := &mockCoreAPI{}
	srv := newTestServer(t, core)

	req := httptest.NewRequest(http.MethodGet, "/alice/a/s1/datasets", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Empty(t, core.Calls())
}

// --- landing page ---

func TestLanding_Anonymous(t *testing.T) {
	srv := newTestServer(t, &mockCoreAPI{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLanding_WithSession(t *testing.T) {
	srv := newTestServer(t, &mockCoreAPI{})
	cookies := sessionCookies(t, srv, "alice")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	addCookies(req, cookies)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
}
