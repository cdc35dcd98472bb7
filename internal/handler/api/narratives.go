package api

import (
	"NarraPulse/internal/catalog"
	"NarraPulse/internal/domain/models"
	xhttp "NarraPulse/pkg/http"

	"github.com/labstack/echo/v4"
)

// NarrativesHandler serves the static narrative taxonomy.
type NarrativesHandler struct {
	catalog *catalog.Catalog
}

func NewNarrativesHandler(cat *catalog.Catalog) *NarrativesHandler {
	return &NarrativesHandler{catalog: cat}
}

func (h *NarrativesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/narratives", h.List)
	g.GET("/narratives/:id", h.Get)
}

func (h *NarrativesHandler) List(c echo.Context) error {
	req := &models.ListNarrativesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows := h.catalog.List(req.Group)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *NarrativesHandler) Get(c echo.Context) error {
	n, err := h.catalog.Resolve(c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("narrative %q is not tracked", c.Param("id")))
	}
	return xhttp.SuccessResponse(c, n)
}
