package api

import (
	"errors"
	"time"

	"NarraPulse/internal/catalog"
	"NarraPulse/internal/domain/models"
	"NarraPulse/internal/domain/repository"
	"NarraPulse/internal/usecase"
	xhttp "NarraPulse/pkg/http"
	xlogger "NarraPulse/pkg/logger"
	"NarraPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// AnalysisHandler drives batch runs over the orchestrator.
type AnalysisHandler struct {
	logger   *xlogger.Logger
	catalog  *catalog.Catalog
	orch     *usecase.AnalysisOrchestrator
	source   repository.MetricsSource
	earliest time.Time
}

func NewAnalysisHandler(l *xlogger.Logger, cat *catalog.Catalog, orch *usecase.AnalysisOrchestrator, source repository.MetricsSource, earliest time.Time) *AnalysisHandler {
	return &AnalysisHandler{logger: l, catalog: cat, orch: orch, source: source, earliest: earliest}
}

// statusResponse extends the orchestrator snapshot with the supported date
// domain so clients can bound their range pickers.
type statusResponse struct {
	usecase.Status
	SupportedFrom string `json:"supported_from"`
	SupportedTo   string `json:"supported_to"`
}

func (h *AnalysisHandler) status() statusResponse {
	return statusResponse{
		Status:        h.orch.Status(),
		SupportedFrom: util.FormatDate(h.earliest),
		SupportedTo:   util.FormatDate(time.Now()),
	}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/analysis/start", h.Start)
	g.POST("/analysis/cancel", h.Cancel)
	g.POST("/analysis/reset", h.Reset)
	g.GET("/analysis/status", h.Status)
	g.GET("/analysis/results", h.Results)
	g.POST("/cache/invalidate", h.InvalidateCache)
}

func (h *AnalysisHandler) Start(c echo.Context) error {
	req := &models.StartAnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	// Unknown IDs are rejected up front rather than surfacing later as
	// per-narrative not_found outcomes.
	for _, id := range req.NarrativeIDs {
		if _, err := h.catalog.Resolve(id); err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("narrative %q is not tracked", id))
		}
	}

	start, end := resolveRange(req, time.Now())
	if end.Before(start) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("start_date must be on or before end_date"))
	}

	if err := h.orch.Start(c.Request().Context(), req.NarrativeIDs, start, end); err != nil {
		if errors.Is(err, usecase.ErrAlreadyRunning) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("an analysis run is already in progress"))
		}
		h.logger.Error("analysis start failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.AcceptedResponse(c, h.status())
}

// resolveRange prefers explicit dates; otherwise the period preset is
// anchored at today.
func resolveRange(req *models.StartAnalysisRequest, now time.Time) (time.Time, time.Time) {
	end := util.ParseDateDefault(req.EndDate, now.Truncate(24*time.Hour))
	if start, ok := util.ParseDate(req.StartDate); ok {
		return start, end
	}
	start, _ := util.PeriodRange(req.Period, end)
	return start, end
}

func (h *AnalysisHandler) Cancel(c echo.Context) error {
	if err := h.orch.Cancel(); err != nil {
		if errors.Is(err, usecase.ErrNotRunning) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("no analysis run in progress"))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.status())
}

func (h *AnalysisHandler) Reset(c echo.Context) error {
	if err := h.orch.Reset(); err != nil {
		if errors.Is(err, usecase.ErrAlreadyRunning) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("cannot reset while a run is in progress"))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.status())
}

func (h *AnalysisHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.status())
}

func (h *AnalysisHandler) Results(c echo.Context) error {
	req := &models.ResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	results, err := h.orch.Results(req.Date, req.Threshold)
	if err != nil {
		if errors.Is(err, usecase.ErrNoResults) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no finished analysis run"))
		}
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.ListResponse(c, results, int64(len(results)))
}

func (h *AnalysisHandler) InvalidateCache(c echo.Context) error {
	if err := h.source.InvalidateAll(c.Request().Context()); err != nil {
		h.logger.Error("cache invalidation failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("cache invalidation failed"))
	}
	return xhttp.SuccessResponse(c, map[string]string{"cache": "invalidated"})
}
