package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/calmclinic/therapy-booking/internal/auth"
	"github.com/calmclinic/therapy-booking/internal/booking"
	"github.com/calmclinic/therapy-booking/internal/config"
)

type passLocker struct{}

func (passLocker) WithTherapistDayLock(ctx context.Context, _ uuid.UUID, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

type testEnv struct {
	router    http.Handler
	repo      *booking.MemoryRepository
	therapist booking.Therapist
	patient   booking.Patient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := booking.NewMemoryRepository()
	therapist := repo.AddTherapist(booking.Therapist{Name: "Dr. Ellis"})
	patient := repo.AddPatient(booking.Patient{Name: "Jordan Ruiz"})

	svc := booking.NewService(repo, passLocker{}, booking.NopNotifier{}, config.Config{
		SessionLength: 60 * time.Minute,
		SlotStep:      30 * time.Minute,
	})

	router := NewRouter(RouterConfig{
		Service: svc,
		Env:     "test",
		Version: "test",
	})

	return &testEnv{router: router, repo: repo, therapist: therapist, patient: patient}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, sess *auth.Session) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil {
		req.Header.Set("X-User-ID", sess.UserID.String())
		req.Header.Set("X-User-Role", string(sess.Role))
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) patientSess() *auth.Session {
	return &auth.Session{UserID: e.patient.ID, Role: auth.RolePatient}
}

func (e *testEnv) therapistSess() *auth.Session {
	return &auth.Session{UserID: e.therapist.ID, Role: auth.RoleTherapist}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestCreateBookingRequestEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body := CreateBookingRequestRequest{
		TherapistID: env.therapist.ID.String(),
		Date:        "2025-06-10",
		Time:        "14:00",
	}

	// Anonymous callers are rejected.
	rec := env.do(t, http.MethodPost, "/booking-requests", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/booking-requests", body, env.patientSess())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[BookingRequestResponse](t, rec)
	if resp.Status != "pending" {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if resp.Date != "2025-06-10" || resp.Time != "14:00" {
		t.Errorf("echoed slot = %s %s, want 2025-06-10 14:00", resp.Date, resp.Time)
	}
}

func TestApproveEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/booking-requests", CreateBookingRequestRequest{
		TherapistID: env.therapist.ID.String(),
		Date:        "2025-06-10",
		Time:        "14:00",
	}, env.patientSess())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", rec.Code)
	}
	created := decodeBody[BookingRequestResponse](t, rec)

	// A patient must not approve.
	rec = env.do(t, http.MethodPost, "/booking-requests/"+created.ID.String()+"/approve", nil, env.patientSess())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("patient approve: status = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/booking-requests/"+created.ID.String()+"/approve", nil, env.therapistSess())
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: status = %d, body %s", rec.Code, rec.Body.String())
	}

	appt := decodeBody[AppointmentResponse](t, rec)
	if appt.Status != "confirmed" {
		t.Errorf("appointment status = %q, want confirmed", appt.Status)
	}
	wantStart := time.Date(2025, time.June, 10, 14, 0, 0, 0, time.UTC)
	if !appt.StartTime.Equal(wantStart) || !appt.EndTime.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("appointment window = %s-%s, want %s-%s",
			appt.StartTime, appt.EndTime, wantStart, wantStart.Add(time.Hour))
	}

	// Terminal state: a second approval conflicts.
	rec = env.do(t, http.MethodPost, "/booking-requests/"+created.ID.String()+"/approve", nil, env.therapistSess())
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-approve: status = %d, want 409", rec.Code)
	}
}

func TestSlotsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.repo.InsertBlock(context.Background(), booking.WorkingHourBlock{
		TherapistID: env.therapist.ID,
		DayOfWeek:   2, // Tuesday
		Start:       booking.NewTimeOfDay(8, 0),
		End:         booking.NewTimeOfDay(12, 0),
		Active:      true,
	})
	if err != nil {
		t.Fatalf("insert block: %v", err)
	}

	_, err = env.repo.InsertAppointment(context.Background(), booking.Appointment{
		PatientID:   env.patient.ID,
		TherapistID: env.therapist.ID,
		Start:       time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2025, time.June, 10, 10, 0, 0, 0, time.UTC),
		Status:      booking.AppointmentConfirmed,
	})
	if err != nil {
		t.Fatalf("insert appointment: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/therapists/"+env.therapist.ID.String()+"/slots?date=2025-06-10", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("slots: status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[SlotsResponse](t, rec)
	want := []string{"08:00", "08:30", "10:00", "10:30", "11:00"}
	if len(resp.Slots) != len(want) {
		t.Fatalf("slots = %v, want %v", resp.Slots, want)
	}
	for i, s := range resp.Slots {
		if s.Time != want[i] || !s.Available {
			t.Fatalf("slots = %v, want %v", resp.Slots, want)
		}
	}

	rec = env.do(t, http.MethodGet, "/therapists/"+env.therapist.ID.String()+"/slots?date=June", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status = %d, want 400", rec.Code)
	}
}

func TestWorkingHoursEndpointOwnership(t *testing.T) {
	env := newTestEnv(t)
	other := env.repo.AddTherapist(booking.Therapist{Name: "Dr. Moreno"})

	body := WorkingHourBlockRequest{
		DayOfWeek: 1,
		StartTime: "09:00",
		EndTime:   "17:00",
	}

	// Posting onto another therapist's schedule is forbidden.
	rec := env.do(t, http.MethodPost, "/therapists/"+other.ID.String()+"/working-hours", body, env.therapistSess())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign schedule: status = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/therapists/"+env.therapist.ID.String()+"/working-hours", body, env.therapistSess())
	if rec.Code != http.StatusCreated {
		t.Fatalf("own schedule: status = %d, body %s", rec.Code, rec.Body.String())
	}

	block := decodeBody[WorkingHourBlockResponse](t, rec)
	if !block.Active {
		t.Errorf("block should default to active")
	}

	rec = env.do(t, http.MethodGet, "/therapists/"+env.therapist.ID.String()+"/working-hours", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	blocks := decodeBody[[]WorkingHourBlockResponse](t, rec)
	if len(blocks) != 1 || blocks[0].ID != block.ID {
		t.Fatalf("listed blocks = %v, want the created block", blocks)
	}
}

func TestRejectAndCancelEndpoints(t *testing.T) {
	env := newTestEnv(t)

	create := func() BookingRequestResponse {
		rec := env.do(t, http.MethodPost, "/booking-requests", CreateBookingRequestRequest{
			TherapistID: env.therapist.ID.String(),
			Date:        "2025-06-10",
			Time:        "10:00",
		}, env.patientSess())
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: status = %d", rec.Code)
		}
		return decodeBody[BookingRequestResponse](t, rec)
	}

	rejected := create()
	rec := env.do(t, http.MethodPost, "/booking-requests/"+rejected.ID.String()+"/reject", nil, env.therapistSess())
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: status = %d", rec.Code)
	}
	if resp := decodeBody[BookingRequestResponse](t, rec); resp.Status != "rejected" {
		t.Errorf("status = %q, want rejected", resp.Status)
	}

	// Rejecting twice is not idempotent.
	rec = env.do(t, http.MethodPost, "/booking-requests/"+rejected.ID.String()+"/reject", nil, env.therapistSess())
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-reject: status = %d, want 409", rec.Code)
	}

	cancelled := create()
	rec = env.do(t, http.MethodPost, "/booking-requests/"+cancelled.ID.String()+"/cancel", nil, env.therapistSess())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("therapist cancel: status = %d, want 403", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/booking-requests/"+cancelled.ID.String()+"/cancel", nil, env.patientSess())
	if rec.Code != http.StatusOK {
		t.Fatalf("patient cancel: status = %d", rec.Code)
	}
}
