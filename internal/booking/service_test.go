package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/calmclinic/therapy-booking/internal/auth"
	"github.com/calmclinic/therapy-booking/internal/config"
)

// passLocker runs the critical section without any locking.
type passLocker struct{}

func (passLocker) WithTherapistDayLock(ctx context.Context, _ uuid.UUID, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

func testConfig() config.Config {
	return config.Config{
		SessionLength: 60 * time.Minute,
		SlotStep:      30 * time.Minute,
	}
}

func newTestService(t *testing.T) (*Service, *MemoryRepository, auth.Session, auth.Session) {
	t.Helper()

	repo := NewMemoryRepository()
	therapist := repo.AddTherapist(Therapist{Name: "Dr. Ellis"})
	patient := repo.AddPatient(Patient{Name: "Jordan Ruiz"})

	svc := NewService(repo, passLocker{}, NopNotifier{}, testConfig())

	therapistSess := auth.Session{UserID: therapist.ID, Role: auth.RoleTherapist}
	patientSess := auth.Session{UserID: patient.ID, Role: auth.RolePatient}
	return svc, repo, therapistSess, patientSess
}

func pendingRequest(t *testing.T, svc *Service, patientSess auth.Session, therapistID uuid.UUID) *BookingRequest {
	t.Helper()

	req, err := svc.CreateRequest(context.Background(), patientSess, CreateRequestInput{
		TherapistID: therapistID,
		Date:        testDate,
		Time:        NewTimeOfDay(14, 0),
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.Status != RequestPending {
		t.Fatalf("new request status = %s, want pending", req.Status)
	}
	return req
}

func TestCreateRequest_RequiresPatientRole(t *testing.T) {
	svc, _, therapistSess, _ := newTestService(t)

	_, err := svc.CreateRequest(context.Background(), therapistSess, CreateRequestInput{
		TherapistID: therapistSess.UserID,
		Date:        testDate,
		Time:        NewTimeOfDay(9, 0),
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCreateRequest_UnknownTherapist(t *testing.T) {
	svc, _, _, patientSess := newTestService(t)

	_, err := svc.CreateRequest(context.Background(), patientSess, CreateRequestInput{
		TherapistID: uuid.New(),
		Date:        testDate,
		Time:        NewTimeOfDay(9, 0),
	})
	if !errors.Is(err, ErrTherapistNotFound) {
		t.Fatalf("expected ErrTherapistNotFound, got %v", err)
	}
}

func TestApproveRequest_MaterializesOneAppointment(t *testing.T) {
	svc, repo, therapistSess, patientSess := newTestService(t)
	req := pendingRequest(t, svc, patientSess, therapistSess.UserID)

	appt, err := svc.ApproveRequest(context.Background(), therapistSess, req.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	wantStart := time.Date(2025, time.June, 10, 14, 0, 0, 0, time.UTC)
	if !appt.Start.Equal(wantStart) {
		t.Errorf("appointment start = %s, want %s", appt.Start, wantStart)
	}
	if !appt.End.Equal(wantStart.Add(60 * time.Minute)) {
		t.Errorf("appointment end = %s, want %s", appt.End, wantStart.Add(60*time.Minute))
	}
	if appt.Status != AppointmentConfirmed {
		t.Errorf("appointment status = %s, want confirmed", appt.Status)
	}
	if appt.PatientID != patientSess.UserID || appt.TherapistID != therapistSess.UserID {
		t.Errorf("appointment parties = %s/%s, want %s/%s",
			appt.PatientID, appt.TherapistID, patientSess.UserID, therapistSess.UserID)
	}

	stored, err := repo.GetRequestByID(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if stored.Status != RequestApproved {
		t.Errorf("request status = %s, want approved", stored.Status)
	}
	if stored.AppointmentID == nil || *stored.AppointmentID != appt.ID {
		t.Errorf("request not linked to appointment %s", appt.ID)
	}
}

func TestRequestTerminality(t *testing.T) {
	tests := []struct {
		name   string
		decide func(svc *Service, therapistSess, patientSess auth.Session, id uuid.UUID) error
	}{
		{
			name: "approved",
			decide: func(svc *Service, therapistSess, _ auth.Session, id uuid.UUID) error {
				_, err := svc.ApproveRequest(context.Background(), therapistSess, id)
				return err
			},
		},
		{
			name: "rejected",
			decide: func(svc *Service, therapistSess, _ auth.Session, id uuid.UUID) error {
				_, err := svc.RejectRequest(context.Background(), therapistSess, id)
				return err
			},
		},
		{
			name: "cancelled",
			decide: func(svc *Service, _, patientSess auth.Session, id uuid.UUID) error {
				_, err := svc.CancelRequest(context.Background(), patientSess, id)
				return err
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, therapistSess, patientSess := newTestService(t)
			req := pendingRequest(t, svc, patientSess, therapistSess.UserID)

			if err := tc.decide(svc, therapistSess, patientSess, req.ID); err != nil {
				t.Fatalf("initial transition: %v", err)
			}

			if _, err := svc.ApproveRequest(context.Background(), therapistSess, req.ID); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("approve after %s: got %v, want ErrInvalidTransition", tc.name, err)
			}
			if _, err := svc.RejectRequest(context.Background(), therapistSess, req.ID); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("reject after %s: got %v, want ErrInvalidTransition", tc.name, err)
			}
			if _, err := svc.CancelRequest(context.Background(), patientSess, req.ID); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("cancel after %s: got %v, want ErrInvalidTransition", tc.name, err)
			}
		})
	}
}

func TestApproveRequest_ConflictLeavesRequestPending(t *testing.T) {
	svc, repo, therapistSess, patientSess := newTestService(t)
	req := pendingRequest(t, svc, patientSess, therapistSess.UserID)

	// Occupy the requested window before the therapist decides.
	_, err := repo.InsertAppointment(context.Background(), Appointment{
		PatientID:   patientSess.UserID,
		TherapistID: therapistSess.UserID,
		Start:       testDate.At(NewTimeOfDay(13, 30)),
		End:         testDate.At(NewTimeOfDay(14, 30)),
		Status:      AppointmentConfirmed,
	})
	if err != nil {
		t.Fatalf("insert appointment: %v", err)
	}

	if _, err := svc.ApproveRequest(context.Background(), therapistSess, req.ID); !errors.Is(err, ErrAppointmentOverlap) {
		t.Fatalf("expected ErrAppointmentOverlap, got %v", err)
	}

	stored, err := repo.GetRequestByID(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if stored.Status != RequestPending {
		t.Fatalf("request status = %s, want pending after failed approval", stored.Status)
	}
}

func TestApproveRequest_WrongTherapist(t *testing.T) {
	svc, repo, therapistSess, patientSess := newTestService(t)
	req := pendingRequest(t, svc, patientSess, therapistSess.UserID)

	other := repo.AddTherapist(Therapist{Name: "Dr. Moreno"})
	otherSess := auth.Session{UserID: other.ID, Role: auth.RoleTherapist}

	if _, err := svc.ApproveRequest(context.Background(), otherSess, req.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := svc.RejectRequest(context.Background(), otherSess, req.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCancelRequest_OwnershipEnforced(t *testing.T) {
	svc, repo, therapistSess, patientSess := newTestService(t)
	req := pendingRequest(t, svc, patientSess, therapistSess.UserID)

	other := repo.AddPatient(Patient{Name: "Sam Okafor"})
	otherSess := auth.Session{UserID: other.ID, Role: auth.RolePatient}

	if _, err := svc.CancelRequest(context.Background(), otherSess, req.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	if _, err := svc.CancelRequest(context.Background(), patientSess, req.ID); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
}

func TestComputeAvailableSlots_EmptyWhenNoBlocks(t *testing.T) {
	svc, _, therapistSess, _ := newTestService(t)

	sunday := Date{Year: 2025, Month: time.June, Day: 8}
	slots, err := svc.ComputeAvailableSlots(context.Background(), therapistSess.UserID, sunday)
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slotTimes(slots))
	}
}

func TestComputeAvailableSlots_EndToEnd(t *testing.T) {
	svc, repo, therapistSess, patientSess := newTestService(t)

	_, err := repo.InsertBlock(context.Background(), WorkingHourBlock{
		TherapistID: therapistSess.UserID,
		DayOfWeek:   testDate.Weekday(),
		Start:       NewTimeOfDay(8, 0),
		End:         NewTimeOfDay(12, 0),
		Active:      true,
	})
	if err != nil {
		t.Fatalf("insert block: %v", err)
	}

	_, err = repo.InsertAppointment(context.Background(), Appointment{
		PatientID:   patientSess.UserID,
		TherapistID: therapistSess.UserID,
		Start:       testDate.At(NewTimeOfDay(9, 0)),
		End:         testDate.At(NewTimeOfDay(10, 0)),
		Status:      AppointmentConfirmed,
	})
	if err != nil {
		t.Fatalf("insert appointment: %v", err)
	}

	slots, err := svc.ComputeAvailableSlots(context.Background(), therapistSess.UserID, testDate)
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	assertSlots(t, slots, []string{"08:00", "08:30", "10:00", "10:30", "11:00"})
}

func TestScheduleAppointment_RejectsOverlap(t *testing.T) {
	svc, _, therapistSess, patientSess := newTestService(t)

	start := testDate.At(NewTimeOfDay(10, 0))
	if _, err := svc.ScheduleAppointment(context.Background(), therapistSess, ScheduleInput{
		PatientID: patientSess.UserID,
		Start:     start,
	}); err != nil {
		t.Fatalf("first schedule: %v", err)
	}

	_, err := svc.ScheduleAppointment(context.Background(), therapistSess, ScheduleInput{
		PatientID: patientSess.UserID,
		Start:     start.Add(30 * time.Minute),
	})
	if !errors.Is(err, ErrAppointmentOverlap) {
		t.Fatalf("expected ErrAppointmentOverlap, got %v", err)
	}
}

func TestCancelAppointment_FreesSlot(t *testing.T) {
	svc, repo, therapistSess, patientSess := newTestService(t)

	_, err := repo.InsertBlock(context.Background(), WorkingHourBlock{
		TherapistID: therapistSess.UserID,
		DayOfWeek:   testDate.Weekday(),
		Start:       NewTimeOfDay(10, 0),
		End:         NewTimeOfDay(11, 0),
		Active:      true,
	})
	if err != nil {
		t.Fatalf("insert block: %v", err)
	}

	appt, err := svc.ScheduleAppointment(context.Background(), therapistSess, ScheduleInput{
		PatientID: patientSess.UserID,
		Start:     testDate.At(NewTimeOfDay(10, 0)),
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	slots, err := svc.ComputeAvailableSlots(context.Background(), therapistSess.UserID, testDate)
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	assertSlots(t, slots, nil)

	if _, err := svc.CancelAppointment(context.Background(), therapistSess, appt.ID); err != nil {
		t.Fatalf("cancel appointment: %v", err)
	}

	slots, err = svc.ComputeAvailableSlots(context.Background(), therapistSess.UserID, testDate)
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	assertSlots(t, slots, []string{"10:00"})

	if _, err := svc.CancelAppointment(context.Background(), therapistSess, appt.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second cancel: got %v, want ErrInvalidTransition", err)
	}
}

func TestSweepStaleRequests(t *testing.T) {
	svc, repo, therapistSess, patientSess := newTestService(t)

	stale, err := repo.InsertRequest(context.Background(), BookingRequest{
		PatientID:   patientSess.UserID,
		TherapistID: therapistSess.UserID,
		Date:        Date{Year: 2025, Month: time.June, Day: 2},
		Time:        NewTimeOfDay(9, 0),
	})
	if err != nil {
		t.Fatalf("insert stale request: %v", err)
	}

	fresh := pendingRequest(t, svc, patientSess, therapistSess.UserID)

	swept, err := svc.SweepStaleRequests(context.Background(), testDate)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	got, err := repo.GetRequestByID(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("reload stale: %v", err)
	}
	if got.Status != RequestCancelled {
		t.Errorf("stale request status = %s, want cancelled", got.Status)
	}

	got, err = repo.GetRequestByID(context.Background(), fresh.ID)
	if err != nil {
		t.Fatalf("reload fresh: %v", err)
	}
	if got.Status != RequestPending {
		t.Errorf("fresh request status = %s, want pending", got.Status)
	}
}
