package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTherapistNotFound   = errors.New("therapist not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrBlockNotFound       = errors.New("working hour block not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrRequestNotFound     = errors.New("booking request not found")

	// ErrAppointmentOverlap is returned when a write would produce two
	// non-cancelled appointments with intersecting windows for one therapist.
	ErrAppointmentOverlap = errors.New("appointment overlaps an existing appointment")
)

// DirectoryStore resolves therapist and patient identities.
type DirectoryStore interface {
	GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListTherapists(ctx context.Context) ([]Therapist, error)
}

// WorkingHoursStore manages a therapist's recurring weekly schedule.
type WorkingHoursStore interface {
	GetBlockByID(ctx context.Context, id uuid.UUID) (*WorkingHourBlock, error)
	ListBlocks(ctx context.Context, therapistID uuid.UUID) ([]WorkingHourBlock, error)
	ListActiveBlocks(ctx context.Context, therapistID uuid.UUID, dayOfWeek int) ([]WorkingHourBlock, error)
	InsertBlock(ctx context.Context, block WorkingHourBlock) (*WorkingHourBlock, error)
	UpdateBlock(ctx context.Context, block WorkingHourBlock) (*WorkingHourBlock, error)
	DeleteBlock(ctx context.Context, id uuid.UUID) error
}

// AppointmentsStore manages confirmed sessions.
type AppointmentsStore interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListForTherapistOnDate returns every appointment, cancelled included,
	// whose window intersects the given calendar day.
	ListForTherapistOnDate(ctx context.Context, therapistID uuid.UUID, date Date) ([]Appointment, error)
	ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	InsertAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, start, end time.Time, notes *string) (*Appointment, error)
	// UpdateAppointmentStatus is conditional: the row is touched only while
	// its current status matches from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
}

// BookingRequestsStore manages the request lifecycle. All status changes are
// conditional on the previous status so a lost race surfaces as
// ErrRequestNotFound instead of silently overwriting a fresh decision.
type BookingRequestsStore interface {
	GetRequestByID(ctx context.Context, id uuid.UUID) (*BookingRequest, error)
	ListPendingForTherapist(ctx context.Context, therapistID uuid.UUID) ([]BookingRequest, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]BookingRequest, error)
	InsertRequest(ctx context.Context, req BookingRequest) (*BookingRequest, error)
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to RequestStatus) (*BookingRequest, error)
	// ApproveRequest flips a pending request to approved and materializes its
	// confirmed appointment as a single atomic unit. If the insert fails the
	// request stays pending.
	ApproveRequest(ctx context.Context, id uuid.UUID, start, end time.Time) (*BookingRequest, *Appointment, error)
	FindStalePending(ctx context.Context, before Date) ([]BookingRequest, error)
}

// Repository bundles every store the service needs.
type Repository interface {
	DirectoryStore
	WorkingHoursStore
	AppointmentsStore
	BookingRequestsStore
}
