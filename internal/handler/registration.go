package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/church-events/internal/model"
	"github.com/iliyamo/church-events/internal/repository"
	"github.com/iliyamo/church-events/internal/service"
)

// RegistrationHandler serves public admission and the admin registration
// endpoints.
type RegistrationHandler struct {
	Svc *service.RegistrationService
}

func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	if svc == nil {
		panic("nil service passed to NewRegistrationHandler")
	}
	return &RegistrationHandler{Svc: svc}
}

// Create handles POST /v1/events/:id/registrations.
func (h *RegistrationHandler) Create(c echo.Context) error {
	var req registrationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body", "message": "invalid body"})
	}
	reg, err := h.Svc.Admit(c.Request().Context(), c.Param("id"), req.details())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, reg)
}

// filter reads the shared list/export filters from the query string.
func filter(c echo.Context) (repository.RegistrationQuery, error) {
	q := repository.RegistrationQuery{
		EventID:  strings.TrimSpace(c.QueryParam("event_id")),
		Search:   strings.TrimSpace(c.QueryParam("search")),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if s := strings.TrimSpace(c.QueryParam("status")); s != "" {
		st, err := model.ParseStatus(s)
		if err != nil {
			return q, repository.ErrInvalidStatus
		}
		q.Status = st
	}
	return q, nil
}

// List handles GET /v1/admin/registrations.
func (h *RegistrationHandler) List(c echo.Context) error {
	q, err := filter(c)
	if err != nil {
		return errorResponse(c, err)
	}
	page, err := h.Svc.List(c.Request().Context(), q)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Get handles GET /v1/admin/registrations/:id.
func (h *RegistrationHandler) Get(c echo.Context) error {
	item, err := h.Svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// UpdateStatus handles PUT /v1/admin/registrations/:id/status.
func (h *RegistrationHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body", "message": "invalid body"})
	}
	st, err := model.ParseStatus(req.Status)
	if err != nil {
		return errorResponse(c, repository.ErrInvalidStatus)
	}
	reg, err := h.Svc.SetStatus(c.Request().Context(), c.Param("id"), st)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, reg)
}

// Delete handles DELETE /v1/admin/registrations/:id.
func (h *RegistrationHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": true, "id": id})
}

var exportHeader = []string{
	"id", "event_id", "event_title", "name", "email", "phone", "organization",
	"dietary_restrictions", "accessibility_needs", "status", "created_at",
}

// Export handles GET /v1/admin/registrations/export.  Rows are ordered by
// creation time, newest first, and honour the list filters.
func (h *RegistrationHandler) Export(c echo.Context) error {
	q, err := filter(c)
	if err != nil {
		return errorResponse(c, err)
	}
	items, err := h.Svc.Export(c.Request().Context(), q)
	if err != nil {
		return errorResponse(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="registrations-%s.csv"`, time.Now().UTC().Format("20060102")))
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, it := range items {
		if err := w.Write([]string{
			it.ID, it.EventID, it.EventTitle, it.Name, it.Email, it.Phone,
			deref(it.Organization), deref(it.DietaryRestrictions), deref(it.AccessibilityNeeds),
			it.Status.String(), it.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
