package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository used by the unit
// tests and the api handler tests. Conditional updates behave like the
// Postgres implementation: a status mismatch reports not-found.
type MemoryRepository struct {
	mu         sync.RWMutex
	therapists map[uuid.UUID]Therapist
	patients   map[uuid.UUID]Patient
	blocks     map[uuid.UUID]WorkingHourBlock
	appts      map[uuid.UUID]Appointment
	requests   map[uuid.UUID]BookingRequest
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		therapists: make(map[uuid.UUID]Therapist),
		patients:   make(map[uuid.UUID]Patient),
		blocks:     make(map[uuid.UUID]WorkingHourBlock),
		appts:      make(map[uuid.UUID]Appointment),
		requests:   make(map[uuid.UUID]BookingRequest),
	}
}

// Fixture helpers

func (m *MemoryRepository) AddTherapist(t Therapist) Therapist {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.therapists[t.ID] = t
	return t
}

func (m *MemoryRepository) AddPatient(p Patient) Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.patients[p.ID] = p
	return p
}

// DirectoryStore

func (m *MemoryRepository) GetTherapistByID(_ context.Context, id uuid.UUID) (*Therapist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.therapists[id]
	if !ok {
		return nil, ErrTherapistNotFound
	}
	return &t, nil
}

func (m *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) ListTherapists(_ context.Context) ([]Therapist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Therapist, 0, len(m.therapists))
	for _, t := range m.therapists {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// WorkingHoursStore

func (m *MemoryRepository) GetBlockByID(_ context.Context, id uuid.UUID) (*WorkingHourBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return &b, nil
}

func (m *MemoryRepository) ListBlocks(_ context.Context, therapistID uuid.UUID) ([]WorkingHourBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []WorkingHourBlock
	for _, b := range m.blocks {
		if b.TherapistID == therapistID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (m *MemoryRepository) ListActiveBlocks(_ context.Context, therapistID uuid.UUID, dayOfWeek int) ([]WorkingHourBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []WorkingHourBlock
	for _, b := range m.blocks {
		if b.TherapistID == therapistID && b.DayOfWeek == dayOfWeek && b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (m *MemoryRepository) InsertBlock(_ context.Context, block WorkingHourBlock) (*WorkingHourBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	now := time.Now()
	block.CreatedAt = now
	block.UpdatedAt = now
	m.blocks[block.ID] = block
	return &block, nil
}

func (m *MemoryRepository) UpdateBlock(_ context.Context, block WorkingHourBlock) (*WorkingHourBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.blocks[block.ID]
	if !ok {
		return nil, ErrBlockNotFound
	}
	block.CreatedAt = existing.CreatedAt
	block.UpdatedAt = time.Now()
	m.blocks[block.ID] = block
	return &block, nil
}

func (m *MemoryRepository) DeleteBlock(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[id]; !ok {
		return ErrBlockNotFound
	}
	delete(m.blocks, id)
	return nil
}

// AppointmentsStore

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) ListForTherapistOnDate(_ context.Context, therapistID uuid.UUID, date Date) ([]Appointment, error) {
	dayStart, dayEnd := date.Bounds()

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.TherapistID == therapistID && a.Start.Before(dayEnd) && a.End.After(dayStart) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryRepository) ListByTherapist(_ context.Context, therapistID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.TherapistID == therapistID {
			out = append(out, a)
		}
	}
	return pageAppointments(out, limit, offset), nil
}

func (m *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return pageAppointments(out, limit, offset), nil
}

func pageAppointments(appts []Appointment, limit, offset int) []Appointment {
	sort.Slice(appts, func(i, j int) bool { return appts[i].Start.Before(appts[j].Start) })
	if offset >= len(appts) {
		return nil
	}
	appts = appts[offset:]
	if limit > 0 && limit < len(appts) {
		appts = appts[:limit]
	}
	return appts
}

func (m *MemoryRepository) InsertAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertAppointmentLocked(appt)
}

func (m *MemoryRepository) insertAppointmentLocked(appt Appointment) (*Appointment, error) {
	if appt.Status != AppointmentCancelled {
		for _, other := range m.appts {
			if other.TherapistID == appt.TherapistID && other.Status != AppointmentCancelled && other.Overlaps(appt.Start, appt.End) {
				return nil, ErrAppointmentOverlap
			}
		}
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	m.appts[appt.ID] = appt
	return &appt, nil
}

func (m *MemoryRepository) UpdateAppointment(_ context.Context, id uuid.UUID, start, end time.Time, notes *string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != AppointmentCancelled {
		for _, other := range m.appts {
			if other.ID != id && other.TherapistID == a.TherapistID && other.Status != AppointmentCancelled && other.Overlaps(start, end) {
				return nil, ErrAppointmentOverlap
			}
		}
	}
	a.Start = start
	a.End = end
	a.Notes = notes
	a.UpdatedAt = time.Now()
	m.appts[id] = a
	return &a, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.appts[id] = a
	return &a, nil
}

func (m *MemoryRepository) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appts, id)
	return nil
}

// BookingRequestsStore

func (m *MemoryRepository) GetRequestByID(_ context.Context, id uuid.UUID) (*BookingRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &r, nil
}

func (m *MemoryRepository) ListPendingForTherapist(_ context.Context, therapistID uuid.UUID) ([]BookingRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []BookingRequest
	for _, r := range m.requests {
		if r.TherapistID == therapistID && r.Status == RequestPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) ListForPatient(_ context.Context, patientID uuid.UUID) ([]BookingRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []BookingRequest
	for _, r := range m.requests {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) InsertRequest(_ context.Context, req BookingRequest) (*BookingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = RequestPending
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	m.requests[req.ID] = req
	return &req, nil
}

func (m *MemoryRepository) UpdateRequestStatus(_ context.Context, id uuid.UUID, from, to RequestStatus) (*BookingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != from {
		return nil, ErrRequestNotFound
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	m.requests[id] = r
	return &r, nil
}

func (m *MemoryRepository) ApproveRequest(_ context.Context, id uuid.UUID, start, end time.Time) (*BookingRequest, *Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok || r.Status != RequestPending {
		return nil, nil, ErrRequestNotFound
	}

	appt, err := m.insertAppointmentLocked(Appointment{
		PatientID:   r.PatientID,
		TherapistID: r.TherapistID,
		Start:       start,
		End:         end,
		Status:      AppointmentConfirmed,
	})
	if err != nil {
		// Request stays pending when the appointment cannot be created.
		return nil, nil, err
	}

	r.Status = RequestApproved
	r.AppointmentID = &appt.ID
	r.UpdatedAt = time.Now()
	m.requests[id] = r

	return &r, appt, nil
}

func (m *MemoryRepository) FindStalePending(_ context.Context, before Date) ([]BookingRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []BookingRequest
	for _, r := range m.requests {
		if r.Status == RequestPending && r.Date.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}
