package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/barber-api/internal/model"
	adminService "github.com/jwalitptl/barber-api/internal/service/admin"
	apperrors "github.com/jwalitptl/barber-api/pkg/errors"
)

const (
	msgDeleted  = "Turno eliminado con éxito."
	msgNotFound = "Turno no encontrado."
)

var errBadID = errors.New("reservation id must be a positive integer")

type AdminService interface {
	List(ctx context.Context) ([]*model.Reservation, error)
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	service AdminService
}

func NewHandler(service AdminService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects r to be gated already.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	turnos := r.Group("/turnos")
	{
		turnos.GET("", h.List)
		turnos.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) List(c *gin.Context) {
	rows, err := h.service.List(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.NewInternal("", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"turnos": rows})
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		// no reservation can live behind a malformed id
		_ = c.Error(apperrors.NewNotFound(msgNotFound, errBadID))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, adminService.ErrNotFound) {
			_ = c.Error(apperrors.NewNotFound(msgNotFound, err))
			return
		}
		_ = c.Error(apperrors.NewInternal("", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     msgDeleted,
		"idEliminado": id,
	})
}
