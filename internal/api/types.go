package api

import (
	"time"

	"github.com/google/uuid"
)

type TherapistResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
}

type TimeSlotResponse struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type SlotsResponse struct {
	TherapistID uuid.UUID          `json:"therapist_id"`
	Date        string             `json:"date"`
	Slots       []TimeSlotResponse `json:"slots"`
}

type WorkingHourBlockRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Active    *bool  `json:"active"`
}

type WorkingHourBlockResponse struct {
	ID          uuid.UUID `json:"id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	DayOfWeek   int       `json:"day_of_week"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Active      bool      `json:"active"`
}

type CreateBookingRequestRequest struct {
	TherapistID string  `json:"therapist_id"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Reason      *string `json:"reason,omitempty"`
}

type BookingRequestResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	TherapistID   uuid.UUID  `json:"therapist_id"`
	Date          string     `json:"requested_date"`
	Time          string     `json:"requested_time"`
	Reason        *string    `json:"reason,omitempty"`
	Status        string     `json:"status"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

type ScheduleAppointmentRequest struct {
	PatientID string     `json:"patient_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

type RescheduleAppointmentRequest struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
	Notes       *string   `json:"notes,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
