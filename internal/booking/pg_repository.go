package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// exclusionViolation is raised by the appointments no-overlap EXCLUDE
// constraint.
const exclusionViolation = "23P01"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanTherapist(row pgx.Row) (*Therapist, error) {
	var t Therapist
	err := row.Scan(&t.ID, &t.Name, &t.Specialty, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanBlock(row pgx.Row) (*WorkingHourBlock, error) {
	var b WorkingHourBlock
	var startMin, endMin int

	err := row.Scan(
		&b.ID,
		&b.TherapistID,
		&b.DayOfWeek,
		&startMin,
		&endMin,
		&b.Active,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	b.Start = TimeOfDay(startMin)
	b.End = TimeOfDay(endMin)
	return &b, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.TherapistID,
		&a.Start,
		&a.End,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanRequest(row pgx.Row) (*BookingRequest, error) {
	var r BookingRequest
	var date time.Time
	var minute int

	err := row.Scan(
		&r.ID,
		&r.PatientID,
		&r.TherapistID,
		&date,
		&minute,
		&r.Reason,
		&r.Status,
		&r.AppointmentID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	r.Date = DateOf(date)
	r.Time = TimeOfDay(minute)
	return &r, nil
}

const blockColumns = `id, therapist_id, day_of_week, start_minute, end_minute, active, created_at, updated_at`
const apptColumns = `id, patient_id, therapist_id, start_time, end_time, status, notes, created_at, updated_at`
const requestColumns = `id, patient_id, therapist_id, requested_date, requested_minute, reason, status, appointment_id, created_at, updated_at`

// DirectoryStore

func (r *PgRepository) GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM therapists
		WHERE id = $1
	`, id)
	return scanTherapist(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListTherapists(ctx context.Context) ([]Therapist, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM therapists
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Therapist
	for rows.Next() {
		t, err := scanTherapist(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

// WorkingHoursStore

func (r *PgRepository) GetBlockByID(ctx context.Context, id uuid.UUID) (*WorkingHourBlock, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+blockColumns+`
		FROM working_hour_blocks
		WHERE id = $1
	`, id)
	return scanBlock(row)
}

func (r *PgRepository) ListBlocks(ctx context.Context, therapistID uuid.UUID) ([]WorkingHourBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM working_hour_blocks
		WHERE therapist_id = $1
		ORDER BY day_of_week, start_minute
	`, therapistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlocks(rows)
}

func (r *PgRepository) ListActiveBlocks(ctx context.Context, therapistID uuid.UUID, dayOfWeek int) ([]WorkingHourBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM working_hour_blocks
		WHERE therapist_id = $1
		  AND day_of_week = $2
		  AND active
		ORDER BY start_minute
	`, therapistID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlocks(rows)
}

func collectBlocks(rows pgx.Rows) ([]WorkingHourBlock, error) {
	var result []WorkingHourBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertBlock(ctx context.Context, block WorkingHourBlock) (*WorkingHourBlock, error) {
	id := block.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO working_hour_blocks (id, therapist_id, day_of_week, start_minute, end_minute, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+blockColumns+`
	`, id, block.TherapistID, block.DayOfWeek, int(block.Start), int(block.End), block.Active)

	return scanBlock(row)
}

func (r *PgRepository) UpdateBlock(ctx context.Context, block WorkingHourBlock) (*WorkingHourBlock, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE working_hour_blocks
		SET day_of_week = $2,
		    start_minute = $3,
		    end_minute = $4,
		    active = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+blockColumns+`
	`, block.ID, block.DayOfWeek, int(block.Start), int(block.End), block.Active)

	return scanBlock(row)
}

func (r *PgRepository) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM working_hour_blocks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// AppointmentsStore

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListForTherapistOnDate(ctx context.Context, therapistID uuid.UUID, date Date) ([]Appointment, error) {
	dayStart, dayEnd := date.Bounds()

	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE therapist_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, therapistID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE therapist_id = $1
		ORDER BY start_time
		LIMIT $2 OFFSET $3
	`, therapistID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, therapist_id, start_time, end_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+apptColumns+`
	`, id, appt.PatientID, appt.TherapistID, appt.Start, appt.End, appt.Status, appt.Notes)

	a, err := scanAppointment(row)
	if err != nil {
		return nil, mapApptWriteError(err)
	}
	return a, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id uuid.UUID, start, end time.Time, notes *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $3,
		    notes = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, start, end, notes)

	a, err := scanAppointment(row)
	if err != nil {
		return nil, mapApptWriteError(err)
	}
	return a, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+apptColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func mapApptWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return ErrAppointmentOverlap
	}
	return err
}

// BookingRequestsStore

func (r *PgRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*BookingRequest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM booking_requests
		WHERE id = $1
	`, id)
	return scanRequest(row)
}

func (r *PgRepository) ListPendingForTherapist(ctx context.Context, therapistID uuid.UUID) ([]BookingRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM booking_requests
		WHERE therapist_id = $1
		  AND status = 'pending'
		ORDER BY created_at
	`, therapistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (r *PgRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]BookingRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM booking_requests
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]BookingRequest, error) {
	var result []BookingRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertRequest(ctx context.Context, req BookingRequest) (*BookingRequest, error) {
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO booking_requests (id, patient_id, therapist_id, requested_date, requested_minute, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, 'pending', now(), now())
		RETURNING `+requestColumns+`
	`, id, req.PatientID, req.TherapistID, req.Date.String(), int(req.Time), req.Reason)

	return scanRequest(row)
}

func (r *PgRepository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to RequestStatus) (*BookingRequest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE booking_requests
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+requestColumns+`
	`, id, to, from)

	return scanRequest(row)
}

// ApproveRequest runs the status flip and the appointment insert in one
// transaction. The conditional UPDATE is the at-most-once guard: a request
// already decided elsewhere matches zero rows and the whole unit rolls back.
func (r *PgRepository) ApproveRequest(ctx context.Context, id uuid.UUID, start, end time.Time) (*BookingRequest, *Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE booking_requests
		SET status = 'approved',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+requestColumns+`
	`, id)

	req, err := scanRequest(row)
	if err != nil {
		return nil, nil, err
	}

	apptID := uuid.New()
	row = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, therapist_id, start_time, end_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'confirmed', NULL, now(), now())
		RETURNING `+apptColumns+`
	`, apptID, req.PatientID, req.TherapistID, start, end)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, nil, mapApptWriteError(err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE booking_requests SET appointment_id = $2 WHERE id = $1
	`, req.ID, appt.ID); err != nil {
		return nil, nil, fmt.Errorf("link appointment: %w", err)
	}
	req.AppointmentID = &appt.ID

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit approve tx: %w", err)
	}

	return req, appt, nil
}

func (r *PgRepository) FindStalePending(ctx context.Context, before Date) ([]BookingRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM booking_requests
		WHERE status = 'pending'
		  AND requested_date < $1::date
	`, before.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}
