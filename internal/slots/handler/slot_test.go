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

	apperrors "github.com/lukekoshy/doctor-booking-system/pkg/errors"
	httputil "github.com/lukekoshy/doctor-booking-system/pkg/http"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

// Mock service for testing
type mockSlotService struct {
	createDoctorFunc func(ctx context.Context, d *model.Doctor) error
	listDoctorsFunc  func(ctx context.Context, limit int, offset int64) ([]*model.Doctor, int64, error)
	createSlotFunc   func(ctx context.Context, doctorID string, s *model.Slot) error
	listSlotsFunc    func(ctx context.Context, limit int, offset int64) ([]*model.Slot, int64, error)
	getSlotFunc      func(ctx context.Context, id string) (*model.SlotAvailability, error)
}

func (m *mockSlotService) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	if m.createDoctorFunc != nil {
		return m.createDoctorFunc(ctx, d)
	}
	return nil
}

func (m *mockSlotService) ListDoctors(ctx context.Context, limit int, offset int64) ([]*model.Doctor, int64, error) {
	if m.listDoctorsFunc != nil {
		return m.listDoctorsFunc(ctx, limit, offset)
	}
	return []*model.Doctor{}, 0, nil
}

func (m *mockSlotService) CreateSlot(ctx context.Context, doctorID string, s *model.Slot) error {
	if m.createSlotFunc != nil {
		return m.createSlotFunc(ctx, doctorID, s)
	}
	return nil
}

func (m *mockSlotService) ListSlots(ctx context.Context, limit int, offset int64) ([]*model.Slot, int64, error) {
	if m.listSlotsFunc != nil {
		return m.listSlotsFunc(ctx, limit, offset)
	}
	return []*model.Slot{}, 0, nil
}

func (m *mockSlotService) GetSlot(ctx context.Context, id string) (*model.SlotAvailability, error) {
	if m.getSlotFunc != nil {
		return m.getSlotFunc(ctx, id)
	}
	return nil, apperrors.SlotNotFound(id, nil)
}

func serve(svc *mockSlotService, method, path, body string) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewSlotHandler(svc, logger.Discard()).RegisterRoutes(router)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateDoctor(t *testing.T) {
	svc := &mockSlotService{
		createDoctorFunc: func(_ context.Context, d *model.Doctor) error {
			d.ID = "doc-1"
			return nil
		},
	}

	w := serve(svc, http.MethodPost, "/api/v1/doctors", `{"name":"Dr. Rao","specialization":"ENT"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data model.Doctor `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "doc-1", body.Data.ID)
	assert.Equal(t, "Dr. Rao", body.Data.Name)
}

func TestCreateDoctor_InvalidBody(t *testing.T) {
	w := serve(&mockSlotService{}, http.MethodPost, "/api/v1/doctors", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDoctors_InvalidQueryParameters(t *testing.T) {
	called := false
	svc := &mockSlotService{
		listDoctorsFunc: func(context.Context, int, int64) ([]*model.Doctor, int64, error) {
			called = true
			return nil, 0, nil
		},
	}

	tests := []struct {
		name  string
		query string
	}{
		{"alphabetic limit", "?limit=abc"},
		{"alphabetic offset", "?offset=xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(svc, http.MethodGet, "/api/v1/doctors"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.False(t, called)
}

func TestCreateSlot_UsesPathDoctor(t *testing.T) {
	var gotDoctor string
	var gotSlot *model.Slot
	svc := &mockSlotService{
		createSlotFunc: func(_ context.Context, doctorID string, s *model.Slot) error {
			gotDoctor = doctorID
			gotSlot = s
			return nil
		},
	}

	body := `{"start_time":"2026-03-02T09:00:00Z","end_time":"2026-03-02T09:30:00Z","capacity":4}`
	w := serve(svc, http.MethodPost, "/api/v1/doctors/doc-7/slots", body)
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, "doc-7", gotDoctor)
	require.NotNil(t, gotSlot)
	assert.Equal(t, 4, gotSlot.Capacity)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), gotSlot.StartTime)
}

func TestCreateSlot_DoctorNotFound(t *testing.T) {
	svc := &mockSlotService{
		createSlotFunc: func(_ context.Context, doctorID string, _ *model.Slot) error {
			return apperrors.NotFoundWithID("Doctor", doctorID)
		},
	}

	w := serve(svc, http.MethodPost, "/api/v1/doctors/nope/slots", `{"start_time":"2026-03-02T09:00:00Z","end_time":"2026-03-02T10:00:00Z"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSlots_Paginated(t *testing.T) {
	svc := &mockSlotService{
		listSlotsFunc: func(_ context.Context, limit int, offset int64) ([]*model.Slot, int64, error) {
			return []*model.Slot{{ID: "s1", DoctorName: "Dr. A"}}, 11, nil
		},
	}

	w := serve(svc, http.MethodGet, "/api/v1/slots?limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body httputil.PaginatedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, int64(11), body.TotalCount)
	assert.Equal(t, 5, body.Limit)
	assert.Equal(t, int64(10), body.Offset)
}

func TestGetSlot(t *testing.T) {
	svc := &mockSlotService{
		getSlotFunc: func(_ context.Context, id string) (*model.SlotAvailability, error) {
			return model.NewSlotAvailability(&model.Slot{ID: id, Capacity: 3}, map[model.ReservationStatus]int{
				model.StatusPending: 1,
			}), nil
		},
	}

	w := serve(svc, http.MethodGet, "/api/v1/slots/s-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":2`)

	w = serve(&mockSlotService{}, http.MethodGet, "/api/v1/slots/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), apperrors.CodeSlotNotFound)
}
