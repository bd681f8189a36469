package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/lukekoshy/doctor-booking-system/internal/reservations/events"
	"github.com/lukekoshy/doctor-booking-system/internal/reservations/service"
	apperrors "github.com/lukekoshy/doctor-booking-system/pkg/errors"
	httputil "github.com/lukekoshy/doctor-booking-system/pkg/http"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
	"github.com/lukekoshy/doctor-booking-system/pkg/middleware"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

// Create admits a reservation against the slot named in the path.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeJSON(w, "Create", http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
				Error: "Request body too large",
			})
			return
		}
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	ctx := events.WithCorrelationID(r.Context(), middleware.RequestIDFromContext(r.Context()))
	res, err := h.service.Create(ctx, ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, res); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		h.writeJSON(w, "Confirm", http.StatusBadRequest, httputil.ErrorResponse{
			Error: "ID parameter is required",
		})
		return
	}

	ctx := events.WithCorrelationID(r.Context(), middleware.RequestIDFromContext(r.Context()))
	result, err := h.service.Confirm(ctx, id)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Confirm", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		h.writeJSON(w, "GetByID", http.StatusBadRequest, httputil.ErrorResponse{
			Error: "ID parameter is required",
		})
		return
	}

	res, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, res); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots/:id/reservations", h.Create)
	router.GET("/api/v1/reservations/:id", h.GetByID)
	router.POST("/api/v1/reservations/:id/confirm", h.Confirm)
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservationHandler) writeJSON(w http.ResponseWriter, handler string, status int, body any) {
	if err := httputil.WriteJSON(w, status, body); err != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "operation", "WriteJSON", "error", err)
	}
}
