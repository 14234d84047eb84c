package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-events-api/internal/dto"
	"github.com/noah-isme/school-events-api/internal/models"
	"github.com/noah-isme/school-events-api/internal/service"
	"github.com/noah-isme/school-events-api/pkg/response"
)

type eventService interface {
	Now() time.Time
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AcademicEvent, error)
	List(ctx context.Context, claims *models.JWTClaims) ([]models.AcademicEvent, error)
	ListByRole(ctx context.Context, claims *models.JWTClaims) ([]models.AcademicEvent, models.UserRole, error)
	Create(ctx context.Context, claims *models.JWTClaims, payload dto.EventPayload) (*models.AcademicEvent, error)
	Update(ctx context.Context, claims *models.JWTClaims, payload dto.EventPayload) (*models.AcademicEvent, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string) (*models.AcademicEvent, error)
}

type eventExporter interface {
	ExportEvents(ctx context.Context, claims *models.JWTClaims, format string) (*service.ExportFile, error)
}

// EventHandler exposes academic event endpoints.
type EventHandler struct {
	events   eventService
	exporter eventExporter
}

// NewEventHandler constructs an EventHandler. exporter may be nil when exports are disabled.
func NewEventHandler(events eventService, exporter eventExporter) *EventHandler {
	return &EventHandler{events: events, exporter: exporter}
}

// Create godoc
// @Summary Create academic event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.EventPayload true "Event payload"
// @Success 201 {object} response.Envelope{data=dto.CreateEventResponse}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var payload dto.EventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, malformedBody(err))
		return
	}
	event, err := h.events.Create(c.Request.Context(), claimsFromContext(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CreateEventResponse{
		Message: "Event created successfully",
		EventID: event.ID,
		Event:   dto.NewEventResponse(*event, h.events.Now()),
	})
}

// Get godoc
// @Summary Get academic event
// @Tags Events
// @Produce json
// @Param id query string true "Event ID"
// @Success 200 {object} response.Envelope{data=dto.EventResponse}
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /events [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), claimsFromContext(c), c.Query("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewEventResponse(*event, h.events.Now()), nil)
}

// Update godoc
// @Summary Update academic event
// @Description Partial update. The body carries the event id and any subset of fields.
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.EventPayload true "Event fields"
// @Success 200 {object} response.Envelope{data=dto.UpdateEventResponse}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /events [put]
func (h *EventHandler) Update(c *gin.Context) {
	var payload dto.EventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, malformedBody(err))
		return
	}
	event, err := h.events.Update(c.Request.Context(), claimsFromContext(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.UpdateEventResponse{
		Message: "Event updated successfully",
		Event:   dto.NewEventResponse(*event, h.events.Now()),
	}, nil)
}

// Delete godoc
// @Summary Delete academic event
// @Tags Events
// @Produce json
// @Param id query string true "Event ID"
// @Success 200 {object} response.Envelope{data=dto.MessageResponse}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /events [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	event, err := h.events.Delete(c.Request.Context(), claimsFromContext(c), c.Query("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MessageResponse{Message: fmt.Sprintf("Event '%s' deleted successfully", event.Name)}, nil)
}

// List godoc
// @Summary List all academic events
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope{data=[]dto.EventResponse}
// @Security BearerAuth
// @Router /events/list [get]
func (h *EventHandler) List(c *gin.Context) {
	events, err := h.events.List(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewEventResponses(events, h.events.Now()), nil, map[string]interface{}{"count": len(events)})
}

// ListByRole godoc
// @Summary List events visible to the caller's role
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope{data=[]dto.EventResponse}
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /events/by-role [get]
func (h *EventHandler) ListByRole(c *gin.Context) {
	events, role, err := h.events.ListByRole(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewEventResponses(events, h.events.Now()), nil, map[string]interface{}{
		"role":  role,
		"count": len(events),
	})
}

// Export godoc
// @Summary Export visible events
// @Tags Events
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /events/export [get]
func (h *EventHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	file, err := h.exporter.ExportEvents(c.Request.Context(), claimsFromContext(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}
