package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/church-events/internal/model"
	"github.com/iliyamo/church-events/internal/repository"
	"github.com/iliyamo/church-events/internal/service"
)

// EventHandler serves the public event pages and admin event management.
type EventHandler struct {
	Svc *service.EventService
}

func NewEventHandler(svc *service.EventService) *EventHandler {
	if svc == nil {
		panic("nil service passed to NewEventHandler")
	}
	return &EventHandler{Svc: svc}
}

// publicEvent is the sanitized public view of an event.
type publicEvent struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity"`
	Remaining   int    `json:"remaining"`
	IsFull      bool   `json:"is_full"`
}

func toPublicEvent(e *model.Event) publicEvent {
	return publicEvent{
		ID: e.ID, Slug: e.Slug, Title: e.Title, Description: e.Description,
		Date: e.Date, Time: e.Time, Location: e.Location,
		Capacity: e.Capacity, Remaining: e.Remaining(), IsFull: e.IsFull(),
	}
}

// PublicList handles GET /v1/events.  Only active events are listed.
func (h *EventHandler) PublicList(c echo.Context) error {
	page, err := h.Svc.List(c.Request().Context(), repository.EventQuery{
		ActiveOnly: true,
		Search:     strings.TrimSpace(c.QueryParam("search")),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	})
	if err != nil {
		return errorResponse(c, err)
	}
	items := make([]publicEvent, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toPublicEvent(&page.Items[i]))
	}
	return c.JSON(http.StatusOK, service.Page[publicEvent]{
		Items: items, Total: page.Total, Page: page.Page, PageSize: page.PageSize,
	})
}

// PublicGet handles GET /v1/events/:slug.
func (h *EventHandler) PublicGet(c echo.Context) error {
	e, err := h.Svc.GetPublic(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toPublicEvent(e))
}

// List handles GET /v1/admin/events, including inactive events.
func (h *EventHandler) List(c echo.Context) error {
	page, err := h.Svc.List(c.Request().Context(), repository.EventQuery{
		ActiveOnly: c.QueryParam("active") == "true",
		Search:     strings.TrimSpace(c.QueryParam("search")),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Get handles GET /v1/admin/events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	e, err := h.Svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Create handles POST /v1/admin/events.
func (h *EventHandler) Create(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body", "message": "invalid body"})
	}
	e, err := h.Svc.Create(c.Request().Context(), req.input())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// Update handles PUT /v1/admin/events/:id.
func (h *EventHandler) Update(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body", "message": "invalid body"})
	}
	e, err := h.Svc.Update(c.Request().Context(), c.Param("id"), req.input())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Delete handles DELETE /v1/admin/events/:id.  Registrations of the event
// are removed with it.
func (h *EventHandler) Delete(c echo.Context) error {
	if err := h.Svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Reconcile handles POST /v1/admin/events/:id/reconcile.
func (h *EventHandler) Reconcile(c echo.Context) error {
	res, err := h.Svc.Reconcile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
