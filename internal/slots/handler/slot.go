package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/lukekoshy/doctor-booking-system/internal/slots/service"
	httputil "github.com/lukekoshy/doctor-booking-system/pkg/http"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

func (h *SlotHandler) CreateDoctor(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var d model.Doctor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "CreateDoctor", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.CreateDoctor(r.Context(), &d); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateDoctor", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, d); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateDoctor", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) ListDoctors(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListDoctors", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	doctors, total, err := h.service.ListDoctors(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListDoctors", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, doctors, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListDoctors", "operation", "WritePaginated", "error", err)
	}
}

func (h *SlotHandler) CreateSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var s model.Slot
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "CreateSlot", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.CreateSlot(r.Context(), ps.ByName("id"), &s); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateSlot", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, s); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateSlot", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) ListSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListSlots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	slots, total, err := h.service.ListSlots(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListSlots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, slots, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListSlots", "operation", "WritePaginated", "error", err)
	}
}

func (h *SlotHandler) GetSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	availability, err := h.service.GetSlot(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetSlot", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, availability); err != nil {
		h.log.Error("failed to write success response", "handler", "GetSlot", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/doctors", h.CreateDoctor)
	router.GET("/api/v1/doctors", h.ListDoctors)
	router.POST("/api/v1/doctors/:id/slots", h.CreateSlot)
	router.GET("/api/v1/slots", h.ListSlots)
	router.GET("/api/v1/slots/:id", h.GetSlot)
}
