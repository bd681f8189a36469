package validator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
	"github.com/lukekoshy/doctor-booking-system/pkg/model"
)

func validSlot() *model.Slot {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &model.Slot{
		DoctorID:  uuid.NewString(),
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Capacity:  3,
	}
}

func TestValidateSlot(t *testing.T) {
	v := NewSlotValidator(logger.Discard())

	tests := []struct {
		name      string
		mutate    func(s *model.Slot)
		wantField string
	}{
		{name: "valid", mutate: func(*model.Slot) {}},
		{name: "end before start", mutate: func(s *model.Slot) { s.EndTime = s.StartTime.Add(-time.Minute) }, wantField: "end_time"},
		{name: "end equals start", mutate: func(s *model.Slot) { s.EndTime = s.StartTime }, wantField: "end_time"},
		{name: "zero capacity", mutate: func(s *model.Slot) { s.Capacity = 0 }, wantField: "capacity"},
		{name: "capacity too large", mutate: func(s *model.Slot) { s.Capacity = model.MaxSlotCapacity + 1 }, wantField: "capacity"},
		{name: "missing start", mutate: func(s *model.Slot) { s.StartTime = time.Time{} }, wantField: "start_time"},
		{name: "bad doctor id", mutate: func(s *model.Slot) { s.DoctorID = "doc-1" }, wantField: "doctor_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSlot()
			tt.mutate(s)
			err := v.ValidateSlot(s)

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			fields := make([]string, 0, len(verrs))
			for _, e := range verrs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestValidateDoctor(t *testing.T) {
	v := NewSlotValidator(logger.Discard())

	assert.NoError(t, v.ValidateDoctor(&model.Doctor{Name: "Dr. Rao", Specialization: "Cardiology"}))

	err := v.ValidateDoctor(&model.Doctor{Name: ""})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "name: is required"))

	err = v.ValidateDoctor(&model.Doctor{Name: "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be blank")

	err = v.ValidateDoctor(&model.Doctor{Name: "Dr. Rao", Specialization: strings.Repeat("x", 101)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specialization")
}

func TestValidateID(t *testing.T) {
	v := NewSlotValidator(logger.Discard())
	assert.True(t, v.ValidateID(uuid.NewString()))
	assert.False(t, v.ValidateID("slot-1"))
	assert.False(t, v.ValidateID(""))
}
