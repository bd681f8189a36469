package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "resource not found",
			},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Internal("wrapped", originalErr)

	unwrapped := errors.Unwrap(appErr)
	if unwrapped != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestAppError_StatusCode(t *testing.T) {
	err := NotFoundWithID("Slot", "s-1")
	if err.StatusCode() != http.StatusNotFound {
		t.Errorf("StatusCode() = %d, want %d", err.StatusCode(), http.StatusNotFound)
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := InvalidInput("validation failed")
	details := map[string]any{
		"field": "patient_name",
		"error": "required",
	}

	err = err.WithDetails(details)

	if err.Details["field"] != "patient_name" {
		t.Errorf("expected field 'patient_name', got %v", err.Details["field"])
	}
	if err.Details["error"] != "required" {
		t.Errorf("expected error 'required', got %v", err.Details["error"])
	}
}

func TestNotFoundWithID(t *testing.T) {
	err := NotFoundWithID("Slot", "12345")

	if err.Code != CodeNotFound {
		t.Errorf("expected code %s, got %s", CodeNotFound, err.Code)
	}
	if err.Details["id"] != "12345" {
		t.Errorf("expected id '12345', got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Slot" {
		t.Errorf("expected resource 'Slot', got %v", err.Details["resource"])
	}
}

func TestValidation(t *testing.T) {
	details := map[string]any{"field": "capacity"}
	err := Validation("validation failed", details)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
	if err.Details["field"] != "capacity" {
		t.Errorf("expected field 'capacity', got %v", err.Details["field"])
	}
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("invalid request")

	if err.Code != CodeInvalidInput {
		t.Errorf("expected code %s, got %s", CodeInvalidInput, err.Code)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, err.HTTPStatus)
	}
}

func TestConflict(t *testing.T) {
	err := Conflict("slot already has reservations")

	if err.Code != CodeConflict {
		t.Errorf("expected code %s, got %s", CodeConflict, err.Code)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, err.HTTPStatus)
	}
}

func TestInternal(t *testing.T) {
	originalErr := errors.New("connection reset by peer")
	err := Internal("internal error occurred", originalErr)

	if err.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, err.Code)
	}
	if err.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, err.HTTPStatus)
	}
	if err.Err != originalErr {
		t.Errorf("expected wrapped error to be originalErr")
	}
}

func TestTimeout(t *testing.T) {
	err := Timeout("request timed out")

	if err.Code != CodeTimeout {
		t.Errorf("expected code %s, got %s", CodeTimeout, err.Code)
	}
	if err.HTTPStatus != http.StatusGatewayTimeout {
		t.Errorf("expected status %d, got %d", http.StatusGatewayTimeout, err.HTTPStatus)
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NotFoundWithID("Doctor", "d-1")
	regularErr := errors.New("regular error")

	if !IsAppError(appErr) {
		t.Errorf("IsAppError() should return true for AppError")
	}
	if IsAppError(regularErr) {
		t.Errorf("IsAppError() should return false for regular error")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFoundWithID("Doctor", "d-1")
	regularErr := errors.New("regular error")

	result := AsAppError(appErr)
	if result != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}

	result = AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestAsAppError_Wrapped(t *testing.T) {
	appErr := Conflict("slot is full")
	wrapped := fmt.Errorf("create reservation: %w", appErr)

	if !IsAppError(wrapped) {
		t.Fatalf("IsAppError() should see through fmt.Errorf wrapping")
	}
	if got := AsAppError(wrapped); got != appErr {
		t.Errorf("AsAppError() should return the wrapped AppError")
	}
}

func TestDomainErrors(t *testing.T) {
	sentinel := errors.New("slot not found")

	tests := []struct {
		name       string
		err        *AppError
		code       string
		status     int
		detailKey  string
		detailWant string
	}{
		{
			name:       "slot not found",
			err:        SlotNotFound("slot-1", sentinel),
			code:       CodeSlotNotFound,
			status:     http.StatusNotFound,
			detailKey:  "slot_id",
			detailWant: "slot-1",
		},
		{
			name:       "reservation not found",
			err:        ReservationNotFound("res-1", sentinel),
			code:       CodeReservationNotFound,
			status:     http.StatusNotFound,
			detailKey:  "reservation_id",
			detailWant: "res-1",
		},
		{
			name:       "no available seat",
			err:        NoAvailableSeat("slot-2", sentinel),
			code:       CodeNoAvailableSeat,
			status:     http.StatusConflict,
			detailKey:  "slot_id",
			detailWant: "slot-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
			if tt.err.Details[tt.detailKey] != tt.detailWant {
				t.Errorf("expected %s=%s, got %v", tt.detailKey, tt.detailWant, tt.err.Details[tt.detailKey])
			}
			if !errors.Is(tt.err, sentinel) {
				t.Errorf("expected errors.Is to match the wrapped sentinel")
			}
			if !HasCode(tt.err, tt.code) {
				t.Errorf("HasCode(%s) should be true", tt.code)
			}
		})
	}
}
