package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukekoshy/doctor-booking-system/internal/reservations/events"
	"github.com/lukekoshy/doctor-booking-system/internal/reservations/service"
	"github.com/lukekoshy/doctor-booking-system/internal/reservations/validator"
	"github.com/lukekoshy/doctor-booking-system/internal/testutil"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
	apperrors "github.com/lukekoshy/doctor-booking-system/pkg/errors"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
	"github.com/lukekoshy/doctor-booking-system/pkg/middleware"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

type mockReservationService struct {
	createFunc  func(ctx context.Context, slotID string, req *model.ReservationRequest) (*model.Reservation, error)
	confirmFunc func(ctx context.Context, id string) (*model.ConfirmResult, error)
	getFunc     func(ctx context.Context, id string) (*model.Reservation, error)
}

func (m *mockReservationService) Create(ctx context.Context, slotID string, req *model.ReservationRequest) (*model.Reservation, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, slotID, req)
	}
	return &model.Reservation{SlotID: slotID, PatientName: req.PatientName, Status: model.StatusPending}, nil
}

func (m *mockReservationService) Confirm(ctx context.Context, id string) (*model.ConfirmResult, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, id)
	}
	return &model.ConfirmResult{ID: id, Status: model.StatusConfirmed}, nil
}

func (m *mockReservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &model.Reservation{ID: id}, nil
}

func newRouter(svc service.ReservationService) *httprouter.Router {
	router := httprouter.New()
	NewReservationHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func decodeError(t *testing.T, body *strings.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestCreate_PassesSlotIDAndBody(t *testing.T) {
	var gotSlot, gotName, gotCorrelation string
	svc := &mockReservationService{
		createFunc: func(ctx context.Context, slotID string, req *model.ReservationRequest) (*model.Reservation, error) {
			gotSlot = slotID
			gotName = req.PatientName
			gotCorrelation = events.CorrelationIDFromContext(ctx)
			return &model.Reservation{ID: "r-1", SlotID: slotID, Status: model.StatusPending}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots/slot-1/reservations", strings.NewReader(`{"patient_name":"Ada"}`))
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-42"))
	w := httptest.NewRecorder()

	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "slot-1", gotSlot)
	assert.Equal(t, "Ada", gotName)
	assert.Equal(t, "req-42", gotCorrelation)

	var body struct {
		Data model.Reservation `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "r-1", body.Data.ID)
	assert.Equal(t, model.StatusPending, body.Data.Status)
}

func TestCreate_InvalidBody(t *testing.T) {
	called := false
	svc := &mockReservationService{
		createFunc: func(context.Context, string, *model.ReservationRequest) (*model.Reservation, error) {
			called = true
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots/slot-1/reservations", strings.NewReader(`{"patient_name":`))
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}

func TestCreate_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"slot not found", apperrors.SlotNotFound("s", nil), http.StatusNotFound, apperrors.CodeSlotNotFound},
		{"no seat", apperrors.NoAvailableSeat("s", nil), http.StatusConflict, apperrors.CodeNoAvailableSeat},
		{"invalid", apperrors.InvalidInput("bad"), http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"internal", apperrors.Internal("boom", nil), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockReservationService{
				createFunc: func(context.Context, string, *model.ReservationRequest) (*model.Reservation, error) {
					return nil, tt.err
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/slots/s/reservations", strings.NewReader(`{"patient_name":"Ada"}`))
			w := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeError(t, strings.NewReader(w.Body.String()))
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestConfirm_ReturnsResult(t *testing.T) {
	svc := &mockReservationService{
		confirmFunc: func(_ context.Context, id string) (*model.ConfirmResult, error) {
			return &model.ConfirmResult{ID: id, Status: model.StatusConfirmed, AlreadyProcessed: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/r-9/confirm", nil)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data model.ConfirmResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "r-9", body.Data.ID)
	assert.True(t, body.Data.AlreadyProcessed)
}

func TestConfirm_NotFound(t *testing.T) {
	svc := &mockReservationService{
		confirmFunc: func(_ context.Context, id string) (*model.ConfirmResult, error) {
			return nil, apperrors.ReservationNotFound(id, nil)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/missing/confirm", nil)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetByID_MissingParam(t *testing.T) {
	h := NewReservationHandler(&mockReservationService{}, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/", nil)
	w := httptest.NewRecorder()
	h.GetByID(w, req, httprouter.Params{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReservationFlow(t *testing.T) {
	store := testutil.NewMemoryStore()
	slot := store.AddSlot(1)
	cfg := &config.Config{Log: logger.Discard(), ReservationGracePeriod: 2 * time.Minute}
	router := newRouter(service.NewReservationService(store, validator.NewReservationValidator(), cfg))

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := post("/api/v1/slots/"+slot.ID+"/reservations", `{"patient_name":"Ada"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data model.Reservation `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	w = post("/api/v1/slots/"+slot.ID+"/reservations", `{"patient_name":"Bob"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post("/api/v1/slots/"+slot.ID+"/reservations", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post("/api/v1/reservations/"+created.Data.ID+"/confirm", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"CONFIRMED"`)
	assert.Contains(t, w.Body.String(), `"already_processed":false`)

	w = post("/api/v1/reservations/"+created.Data.ID+"/confirm", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"already_processed":true`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/"+created.Data.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CONFIRMED"`)
}
