package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calmclinic/therapy-booking/internal/auth"
	"github.com/calmclinic/therapy-booking/internal/config"
	redisclient "github.com/calmclinic/therapy-booking/internal/redis"
)

var (
	// ErrInvalidTransition is returned when a lifecycle operation targets a
	// request or appointment that is already in a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPermissionDenied is returned when the session actor lacks the role
	// or ownership the operation requires.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrScheduleBusy is returned when another writer holds the therapist
	// day lock.
	ErrScheduleBusy = errors.New("therapist schedule is being updated, please retry")

	ErrInvalidInput = errors.New("invalid input")
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	cfg      config.Config
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, cfg config.Config) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Availability

// ComputeAvailableSlots combines the therapist's recurring working hours for
// the date's weekday with the appointments already on the calendar. A
// therapist with no active blocks that day yields an empty list, not an
// error; a fetch failure is surfaced so the caller never mistakes an unknown
// schedule for a free one.
func (s *Service) ComputeAvailableSlots(ctx context.Context, therapistID uuid.UUID, date Date) ([]TimeSlot, error) {
	blocks, err := s.repo.ListActiveBlocks(ctx, therapistID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}
	if len(blocks) == 0 {
		return []TimeSlot{}, nil
	}

	appts, err := s.repo.ListForTherapistOnDate(ctx, therapistID, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	return AvailableSlots(blocks, appts, date, s.cfg.SessionLength, s.cfg.SlotStep), nil
}

// Booking requests

type CreateRequestInput struct {
	TherapistID uuid.UUID
	Date        Date
	Time        TimeOfDay
	Reason      *string
}

// CreateRequest records a patient's proposal for a session. No conflict check
// happens here: conflicts are resolved when the therapist decides.
func (s *Service) CreateRequest(ctx context.Context, sess auth.Session, in CreateRequestInput) (*BookingRequest, error) {
	if !sess.IsPatient() {
		return nil, ErrPermissionDenied
	}
	if in.Date.IsZero() || !in.Time.Valid() {
		return nil, fmt.Errorf("%w: requested date and time are required", ErrInvalidInput)
	}
	if _, err := s.repo.GetTherapistByID(ctx, in.TherapistID); err != nil {
		return nil, fmt.Errorf("load therapist: %w", err)
	}

	req, err := s.repo.InsertRequest(ctx, BookingRequest{
		PatientID:   sess.UserID,
		TherapistID: in.TherapistID,
		Date:        in.Date,
		Time:        in.Time,
		Reason:      in.Reason,
		Status:      RequestPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create booking request: %w", err)
	}

	s.notifier.RequestsChanged(ctx, req.TherapistID, req.PatientID)
	return req, nil
}

// ApproveRequest flips a pending request to approved and materializes exactly
// one confirmed appointment for the fixed session length. The day lock plus
// the store's status-guarded update keep concurrent approvals at-most-once:
// the loser sees ErrInvalidTransition, never a duplicate appointment.
func (s *Service) ApproveRequest(ctx context.Context, sess auth.Session, id uuid.UUID) (*Appointment, error) {
	req, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if !sess.IsTherapist() || sess.UserID != req.TherapistID {
		return nil, ErrPermissionDenied
	}
	if req.Status.Terminal() {
		return nil, ErrInvalidTransition
	}

	start := req.Date.At(req.Time)
	end := start.Add(s.cfg.SessionLength)

	var created *Appointment

	err = s.locker.WithTherapistDayLock(ctx, req.TherapistID, req.Date.String(), func(lockCtx context.Context) error {
		// Re-check the day inside the critical section: the request was made
		// without a conflict check and the slot may be gone by now.
		appts, err := s.repo.ListForTherapistOnDate(lockCtx, req.TherapistID, req.Date)
		if err != nil {
			return fmt.Errorf("check day schedule: %w", err)
		}
		if overlapsAny(appts, start, end) {
			return ErrAppointmentOverlap
		}

		_, appt, err := s.repo.ApproveRequest(lockCtx, req.ID, start, end)
		if err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				// The request was decided between our load and the guarded
				// update.
				return ErrInvalidTransition
			}
			return fmt.Errorf("approve request: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.notifier.AppointmentsChanged(ctx, req.TherapistID)
	s.notifier.RequestsChanged(ctx, req.TherapistID, req.PatientID)
	return created, nil
}

// RejectRequest moves a pending request to rejected. No appointment is
// created and a second reject fails rather than being idempotent.
func (s *Service) RejectRequest(ctx context.Context, sess auth.Session, id uuid.UUID) (*BookingRequest, error) {
	req, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if !sess.IsTherapist() || sess.UserID != req.TherapistID {
		return nil, ErrPermissionDenied
	}
	if req.Status.Terminal() {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateRequestStatus(ctx, req.ID, RequestPending, RequestRejected)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("reject request: %w", err)
	}

	s.notifier.RequestsChanged(ctx, updated.TherapistID, updated.PatientID)
	return updated, nil
}

// CancelRequest lets the owning patient withdraw a request that is still
// pending.
func (s *Service) CancelRequest(ctx context.Context, sess auth.Session, id uuid.UUID) (*BookingRequest, error) {
	req, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if !sess.IsPatient() || sess.UserID != req.PatientID {
		return nil, ErrPermissionDenied
	}
	if req.Status.Terminal() {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateRequestStatus(ctx, req.ID, RequestPending, RequestCancelled)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel request: %w", err)
	}

	s.notifier.RequestsChanged(ctx, updated.TherapistID, updated.PatientID)
	return updated, nil
}

// ListRequests returns the therapist's pending queue or the patient's own
// request history, depending on the session role.
func (s *Service) ListRequests(ctx context.Context, sess auth.Session) ([]BookingRequest, error) {
	switch {
	case sess.IsTherapist():
		reqs, err := s.repo.ListPendingForTherapist(ctx, sess.UserID)
		if err != nil {
			return nil, fmt.Errorf("list pending requests: %w", err)
		}
		return reqs, nil
	case sess.IsPatient():
		reqs, err := s.repo.ListForPatient(ctx, sess.UserID)
		if err != nil {
			return nil, fmt.Errorf("list patient requests: %w", err)
		}
		return reqs, nil
	default:
		return nil, ErrPermissionDenied
	}
}

// Appointments

type ScheduleInput struct {
	PatientID uuid.UUID
	Start     time.Time
	End       time.Time // zero means Start plus the configured session length
	Notes     *string
}

// ScheduleAppointment is the therapist's manual path onto their own calendar,
// bypassing the request queue.
func (s *Service) ScheduleAppointment(ctx context.Context, sess auth.Session, in ScheduleInput) (*Appointment, error) {
	if !sess.IsTherapist() {
		return nil, ErrPermissionDenied
	}

	start := in.Start.UTC()
	end := in.End.UTC()
	if in.End.IsZero() {
		end = start.Add(s.cfg.SessionLength)
	}
	if in.Start.IsZero() || !start.Before(end) {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidInput)
	}
	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var created *Appointment
	day := DateOf(start)

	err := s.locker.WithTherapistDayLock(ctx, sess.UserID, day.String(), func(lockCtx context.Context) error {
		appts, err := s.repo.ListForTherapistOnDate(lockCtx, sess.UserID, day)
		if err != nil {
			return fmt.Errorf("check day schedule: %w", err)
		}
		if overlapsAny(appts, start, end) {
			return ErrAppointmentOverlap
		}

		appt, err := s.repo.InsertAppointment(lockCtx, Appointment{
			PatientID:   in.PatientID,
			TherapistID: sess.UserID,
			Start:       start,
			End:         end,
			Status:      AppointmentConfirmed,
			Notes:       in.Notes,
		})
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.notifier.AppointmentsChanged(ctx, sess.UserID)
	return created, nil
}

type RescheduleInput struct {
	Start time.Time
	End   time.Time // zero means Start plus the configured session length
	Notes *string
}

func (s *Service) RescheduleAppointment(ctx context.Context, sess auth.Session, id uuid.UUID, in RescheduleInput) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !sess.IsTherapist() || sess.UserID != appt.TherapistID {
		return nil, ErrPermissionDenied
	}
	if appt.Status == AppointmentCancelled {
		return nil, ErrInvalidTransition
	}

	start := appt.Start
	end := appt.End
	if !in.Start.IsZero() {
		start = in.Start.UTC()
		if in.End.IsZero() {
			end = start.Add(s.cfg.SessionLength)
		} else {
			end = in.End.UTC()
		}
	} else if !in.End.IsZero() {
		end = in.End.UTC()
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidInput)
	}

	notes := in.Notes
	if notes == nil {
		notes = appt.Notes
	}

	var updated *Appointment
	day := DateOf(start)

	err = s.locker.WithTherapistDayLock(ctx, appt.TherapistID, day.String(), func(lockCtx context.Context) error {
		appts, err := s.repo.ListForTherapistOnDate(lockCtx, appt.TherapistID, day)
		if err != nil {
			return fmt.Errorf("check day schedule: %w", err)
		}
		for _, other := range appts {
			if other.ID == appt.ID || other.Status == AppointmentCancelled {
				continue
			}
			if other.Overlaps(start, end) {
				return ErrAppointmentOverlap
			}
		}

		a, err := s.repo.UpdateAppointment(lockCtx, appt.ID, start, end, notes)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}

		updated = a
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.notifier.AppointmentsChanged(ctx, appt.TherapistID)
	return updated, nil
}

// CancelAppointment soft-cancels, freeing the slot for the availability
// calculator while keeping the record.
func (s *Service) CancelAppointment(ctx context.Context, sess auth.Session, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !sess.IsTherapist() || sess.UserID != appt.TherapistID {
		return nil, ErrPermissionDenied
	}
	if appt.Status == AppointmentCancelled {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, AppointmentCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.notifier.AppointmentsChanged(ctx, updated.TherapistID)
	return updated, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, sess auth.Session, id uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	if !sess.IsTherapist() || sess.UserID != appt.TherapistID {
		return ErrPermissionDenied
	}

	if err := s.repo.DeleteAppointment(ctx, appt.ID); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.notifier.AppointmentsChanged(ctx, appt.TherapistID)
	return nil
}

// ListAppointments returns the caller's own calendar, scoped by role.
func (s *Service) ListAppointments(ctx context.Context, sess auth.Session, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	switch {
	case sess.IsTherapist():
		appts, err := s.repo.ListByTherapist(ctx, sess.UserID, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("list therapist appointments: %w", err)
		}
		return appts, nil
	case sess.IsPatient():
		appts, err := s.repo.ListByPatient(ctx, sess.UserID, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("list patient appointments: %w", err)
		}
		return appts, nil
	default:
		return nil, ErrPermissionDenied
	}
}

// Working hours

type BlockInput struct {
	DayOfWeek int
	Start     TimeOfDay
	End       TimeOfDay
	Active    bool
}

func validateBlockInput(in BlockInput) error {
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week must be 0-6", ErrInvalidInput)
	}
	if !in.Start.Valid() || !in.End.Valid() || in.Start >= in.End {
		return fmt.Errorf("%w: block start must be before end", ErrInvalidInput)
	}
	return nil
}

func (s *Service) ListWorkingHours(ctx context.Context, therapistID uuid.UUID) ([]WorkingHourBlock, error) {
	blocks, err := s.repo.ListBlocks(ctx, therapistID)
	if err != nil {
		return nil, fmt.Errorf("list working hours: %w", err)
	}
	return blocks, nil
}

func (s *Service) AddWorkingHourBlock(ctx context.Context, sess auth.Session, in BlockInput) (*WorkingHourBlock, error) {
	if !sess.IsTherapist() {
		return nil, ErrPermissionDenied
	}
	if err := validateBlockInput(in); err != nil {
		return nil, err
	}

	block, err := s.repo.InsertBlock(ctx, WorkingHourBlock{
		TherapistID: sess.UserID,
		DayOfWeek:   in.DayOfWeek,
		Start:       in.Start,
		End:         in.End,
		Active:      in.Active,
	})
	if err != nil {
		return nil, fmt.Errorf("insert working hour block: %w", err)
	}

	s.notifier.AppointmentsChanged(ctx, sess.UserID)
	return block, nil
}

func (s *Service) UpdateWorkingHourBlock(ctx context.Context, sess auth.Session, id uuid.UUID, in BlockInput) (*WorkingHourBlock, error) {
	block, err := s.repo.GetBlockByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load working hour block: %w", err)
	}
	if !sess.IsTherapist() || sess.UserID != block.TherapistID {
		return nil, ErrPermissionDenied
	}
	if err := validateBlockInput(in); err != nil {
		return nil, err
	}

	block.DayOfWeek = in.DayOfWeek
	block.Start = in.Start
	block.End = in.End
	block.Active = in.Active

	updated, err := s.repo.UpdateBlock(ctx, *block)
	if err != nil {
		return nil, fmt.Errorf("update working hour block: %w", err)
	}

	s.notifier.AppointmentsChanged(ctx, sess.UserID)
	return updated, nil
}

func (s *Service) DeleteWorkingHourBlock(ctx context.Context, sess auth.Session, id uuid.UUID) error {
	block, err := s.repo.GetBlockByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load working hour block: %w", err)
	}
	if !sess.IsTherapist() || sess.UserID != block.TherapistID {
		return ErrPermissionDenied
	}

	if err := s.repo.DeleteBlock(ctx, block.ID); err != nil {
		return fmt.Errorf("delete working hour block: %w", err)
	}

	s.notifier.AppointmentsChanged(ctx, sess.UserID)
	return nil
}

// Directory

func (s *Service) ListTherapists(ctx context.Context) ([]Therapist, error) {
	therapists, err := s.repo.ListTherapists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list therapists: %w", err)
	}
	return therapists, nil
}
