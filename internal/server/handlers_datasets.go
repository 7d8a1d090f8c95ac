package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/ljoukov/dust/internal/domain"
	"github.com/ljoukov/dust/internal/metrics"
	apperrors "github.com/ljoukov/dust/internal/platform/errors"
)

// handleDatasetEditor loads everything the editor page needs: the app's
// metadata, the app's dataset list, and the latest version of the named
// dataset. The three core API calls run concurrently and each forwards the
// request's session cookie; any failure aborts the render.
func (s *Server) handleDatasetEditor(c echo.Context) error {
	sess := currentSession(c)
	sID := c.Param("sId")
	name := c.Param("name")
	cookie := c.Request().Header.Get("Cookie")

	var (
		app      *domain.App
		datasets []domain.DatasetSummary
		dataset  *domain.Dataset
	)

	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() error {
		var err error
		app, err = s.core.GetApp(ctx, cookie, sID)
		return err
	})
	g.Go(func() error {
		var err error
		datasets, err = s.core.ListDatasets(ctx, cookie, sID)
		return err
	})
	g.Go(func() error {
		var err error
		dataset, err = s.core.GetDatasetLatest(ctx, cookie, sID, name)
		return err
	})
	if err := g.Wait(); err != nil {
		return apperrors.ExternalError("failed to load dataset", err).
			WithContext("app", sID).
			WithContext("dataset", name)
	}

	rows, err := json.MarshalIndent(dataset.Data, "", "  ")
	if err != nil {
		return apperrors.InternalError("failed to encode dataset rows", err)
	}

	metrics.PageViewsTotal.WithLabelValues("dataset_editor").Inc()

	data := map[string]any{
		"Username":    sess.Username,
		"AppName":     app.Name,
		"AppSID":      app.SID,
		"Datasets":    datasets,
		"DatasetName": dataset.Name,
		"Rows":        string(rows),
		"CurrentTab":  "Datasets",
		"ListPath":    fmt.Sprintf("/%s/a/%s/datasets", sess.Username, sID),
		"UpdatePath":  fmt.Sprintf("/%s/a/%s/datasets/%s", sess.Username, sID, name),
		"CSRFToken":   c.Get("csrf"),
	}

	return renderTemplate(c, s.editorTemplate, data)
}

// handleDatasetUpdate applies the pending-edit rules to the submitted
// payload, posts the new version to the core API, and sends the client to
// the app's dataset listing.
func (s *Server) handleDatasetUpdate(c echo.Context) error {
	sess := currentSession(c)
	sID := c.Param("sId")
	name := c.Param("name")
	cookie := c.Request().Header.Get("Cookie")

	rows, parseErr := domain.ParseRows(c.FormValue("data"))
	edited := domain.Dataset{Name: name, Data: rows}

	state := domain.NewEditState(domain.Dataset{Name: name}).Apply(parseErr == nil, edited)
	if state.Disabled {
		metrics.DatasetUpdatesTotal.WithLabelValues("invalid").Inc()
		return apperrors.ValidationError("dataset payload must be a JSON array of objects").
			WithContext("dataset", name)
	}

	if err := s.core.UpdateDataset(c.Request().Context(), cookie, sID, name, state.Pending); err != nil {
		metrics.DatasetUpdatesTotal.WithLabelValues("error").Inc()
		return apperrors.ExternalError("failed to update dataset", err).
			WithContext("app", sID).
			WithContext("dataset", name)
	}

	metrics.DatasetUpdatesTotal.WithLabelValues("ok").Inc()
	return c.Redirect(http.StatusFound, fmt.Sprintf("/%s/a/%s/datasets", sess.Username, sID))
}

// handleDatasetList renders the app's dataset listing, the page the editor
// navigates to after a successful update.
func (s *Server) handleDatasetList(c echo.Context) error {
	sess := currentSession(c)
	sID := c.Param("sId")
	cookie := c.Request().Header.Get("Cookie")

	var (
		app      *domain.App
		datasets []domain.DatasetSummary
	)

	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() error {
		var err error
		app, err = s.core.GetApp(ctx, cookie, sID)
		return err
	})
	g.Go(func() error {
		var err error
		datasets, err = s.core.ListDatasets(ctx, cookie, sID)
		return err
	})
	if err := g.Wait(); err != nil {
		return apperrors.ExternalError("failed to load datasets", err).
			WithContext("app", sID)
	}

	metrics.PageViewsTotal.WithLabelValues("dataset_list").Inc()

	data := map[string]any{
		"Username":   sess.Username,
		"AppName":    app.Name,
		"AppSID":     app.SID,
		"Datasets":   datasets,
		"CurrentTab": "Datasets",
		"BasePath":   fmt.Sprintf("/%s/a/%s/datasets", sess.Username, sID),
		"CSRFToken":  c.Get("csrf"),
	}

	return renderTemplate(c, s.datasetsTemplate, data)
}

// handleLanding shows the sign-in entry point, or a minimal home when a
// session already exists. It is also the target of the unauthenticated and
// cross-user redirects.
func (s *Server) handleLanding(c echo.Context) error {
	var username string
	if session, err := s.sessionStore.Get(c.Request(), sessionName); err == nil {
		username, _ = session.Values[sessionKeyUsername].(string)
	}

	metrics.PageViewsTotal.WithLabelValues("landing").Inc()

	data := map[string]any{
		"Username": username,
	}
	return renderTemplate(c, s.landingTemplate, data)
}
