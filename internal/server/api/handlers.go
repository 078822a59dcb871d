package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"treesize/internal/core"
	"treesize/internal/server/service"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports whether the database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains the HTTP handlers for the analysis API.
type Handler struct {
	svc *service.AnalysisService
	db  HealthChecker
}

// NewHandler creates a new handler with the given service dependency.
func NewHandler(svc *service.AnalysisService, db HealthChecker) *Handler {
	return &Handler{svc: svc, db: db}
}

// HandleUpload handles POST /api/analyses.
// Accepts a multipart form with a "transcript" field and optional
// "password", "threshold" and "capacity" fields.
func (h *Handler) HandleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("transcript")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "transcript is required (use form field 'transcript')",
		})
	}

	limits, err := limitsFromForm(c, h.svc.Limits())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded transcript",
		})
	}
	defer src.Close()

	result, err := h.svc.ProcessTranscript(
		c.Request().Context(),
		fileHeader.Filename,
		src,
		fileHeader.Size,
		c.FormValue("password"),
		limits,
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// HandleInfo handles GET /api/analyses/:id.
func (h *Handler) HandleInfo(c echo.Context) error {
	info, err := h.svc.GetInfo(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleTree handles GET /api/analyses/:id/tree.
// Accepts an optional "password" query param.
func (h *Handler) HandleTree(c echo.Context) error {
	tree, err := h.svc.RenderTree(c.Request().Context(), c.Param("id"), c.QueryParam("password"))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.String(http.StatusOK, tree)
}

// HandleDownload handles GET /t/:id.
// Serves the raw transcript as an attachment.
func (h *Handler) HandleDownload(c echo.Context) error {
	rc, filename, err := h.svc.OpenTranscript(c.Request().Context(), c.Param("id"), c.QueryParam("password"))
	if err != nil {
		return mapServiceError(c, err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Stream(http.StatusOK, echo.MIMETextPlainCharsetUTF8, rc)
}

// HandleDelete handles DELETE /api/analyses/:id/:token.
func (h *Handler) HandleDelete(c echo.Context) error {
	if err := h.svc.DeleteAnalysis(c.Request().Context(), c.Param("id"), c.Param("token")); err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "analysis deleted successfully",
	})
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// HandleStats handles GET /api/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.svc.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_analyses":     stats.TotalAnalyses,
		"active_analyses":    stats.ActiveAnalyses,
		"total_views":        stats.TotalViews,
		"storage_used_bytes": stats.StorageUsed,
		"storage_used_human": humanizeBytes(stats.StorageUsed),
	})
}

// limitsFromForm overrides base with the optional "threshold" and
// "capacity" form values.
func limitsFromForm(c echo.Context, base core.Limits) (core.Limits, error) {
	limits := base
	fields := []struct {
		name string
		dst  *int64
	}{
		{"threshold", &limits.SmallDirectoryThreshold},
		{"capacity", &limits.CapacityLimit},
	}

	for _, f := range fields {
		raw := c.FormValue(f.name)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return base, fmt.Errorf("%s must be a non-negative integer", f.name)
		}
		*f.dst = n
	}
	return limits, nil
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, core.ErrMalformedTranscript):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "analysis not found"})
	case errors.Is(err, service.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "analysis has expired"})
	case errors.Is(err, service.ErrPasswordRequired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "password_required"})
	case errors.Is(err, service.ErrInvalidPassword):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid password"})
	case errors.Is(err, service.ErrInvalidToken):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid deletion token"})
	case errors.Is(err, service.ErrTranscriptTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "transcript exceeds maximum allowed size",
		})
	case errors.Is(err, service.ErrNotText), errors.Is(err, service.ErrInvalidLimits):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
