package turnos

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/barber-api/internal/middleware"
	"github.com/jwalitptl/barber-api/internal/model"
	"github.com/jwalitptl/barber-api/internal/schedule"
	"github.com/jwalitptl/barber-api/internal/service/booking"
	apperrors "github.com/jwalitptl/barber-api/pkg/errors"
	"github.com/jwalitptl/barber-api/pkg/validator"
)

const (
	msgCreated       = "¡Turno reservado con éxito!"
	msgMissingFields = "Faltan campos obligatorios para la reserva."
	msgBadBody       = "El cuerpo de la solicitud no es un JSON válido."
	msgTaken         = "El turno seleccionado ya está reservado. Por favor, elige otro."
	msgPast          = "No se pueden reservar turnos en el pasado."
)

type BookingService interface {
	Book(ctx context.Context, in booking.BookInput) (*model.Reservation, error)
	ReservedSlots(ctx context.Context) ([]string, error)
}

type Handler struct {
	service BookingService
}

func NewHandler(service BookingService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the public booking endpoints. limit, when given, runs
// before the booking handler only.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, limit ...gin.HandlerFunc) {
	turnos := r.Group("/turnos")
	{
		turnos.GET("", h.ListReserved)
		turnos.POST("", append(limit, h.Book)...)
	}
}

type bookRequest struct {
	Date        string  `json:"fecha" binding:"required,notblank"`
	Time        string  `json:"hora" binding:"required,notblank"`
	Service     string  `json:"servicio" binding:"required,notblank"`
	ClientName  string  `json:"nombre" binding:"required,notblank"`
	ClientPhone string  `json:"telefono" binding:"required,notblank"`
	ClientEmail *string `json:"email"`
}

type bookResponse struct {
	Message string             `json:"message"`
	ID      int64              `json:"turnoId"`
	Details *model.Reservation `json:"details"`
}

func (h *Handler) ListReserved(c *gin.Context) {
	slots, err := h.service.ReservedSlots(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.NewInternal("", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservedSlots": slots})
}

func (h *Handler) Book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge, ok := middleware.BodyError(err); ok {
			_ = c.Error(tooLarge)
			return
		}
		if _, ok := validator.MissingFields(err); ok {
			_ = c.Error(apperrors.NewBadRequest(msgMissingFields, err))
			return
		}
		_ = c.Error(apperrors.NewBadRequest(msgBadBody, err))
		return
	}

	created, err := h.service.Book(c.Request.Context(), booking.BookInput{
		Date:        req.Date,
		Time:        req.Time,
		Service:     req.Service,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		ClientEmail: req.ClientEmail,
	})
	if err != nil {
		_ = c.Error(bookingError(err))
		return
	}

	c.JSON(http.StatusCreated, bookResponse{
		Message: msgCreated,
		ID:      created.ID,
		Details: created,
	})
}

func bookingError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, booking.ErrMissingFields):
		return apperrors.NewBadRequest(msgMissingFields, err)
	case errors.Is(err, schedule.ErrInPast):
		return apperrors.NewBadRequest(msgPast, err)
	case errors.Is(err, booking.ErrInvalidSlot):
		return apperrors.NewBadRequest("Horario no válido. "+schedule.Describe(), err)
	case errors.Is(err, booking.ErrSlotTaken):
		return apperrors.NewConflict(msgTaken, err)
	default:
		return apperrors.NewInternal("", err)
	}
}
