package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s != RequestPending
}

type Therapist struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkingHourBlock is a recurring weekly window during which a therapist
// accepts sessions. DayOfWeek runs 0-6 with 0 = Sunday.
type WorkingHourBlock struct {
	ID          uuid.UUID
	TherapistID uuid.UUID
	DayOfWeek   int
	Start       TimeOfDay
	End         TimeOfDay
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Appointment is a confirmed, time-bound session between a patient and a
// therapist. Start and End are absolute UTC instants.
type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	TherapistID uuid.UUID
	Start       time.Time
	End         time.Time
	Status      AppointmentStatus
	Notes       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Overlaps tests the half-open interval [Start, End) against [start, end).
func (a Appointment) Overlaps(start, end time.Time) bool {
	return start.Before(a.End) && end.After(a.Start)
}

// BookingRequest is a patient's proposal for a new appointment, awaiting the
// therapist's decision. AppointmentID is set once the request is approved.
type BookingRequest struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	TherapistID   uuid.UUID
	Date          Date
	Time          TimeOfDay
	Reason        *string
	Status        RequestStatus
	AppointmentID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TimeSlot is a derived, bookable session start time. Unavailable slots are
// never materialized, so Available is always true on calculator output.
type TimeSlot struct {
	Time      TimeOfDay
	Available bool
}
