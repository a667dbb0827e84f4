package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	testDate      = Date{Year: 2025, Month: time.June, Day: 10} // a Tuesday
	sessionLength = 60 * time.Minute
	slotStep      = 30 * time.Minute
)

func block(start, end TimeOfDay) WorkingHourBlock {
	return WorkingHourBlock{
		ID:        uuid.New(),
		DayOfWeek: testDate.Weekday(),
		Start:     start,
		End:       end,
		Active:    true,
	}
}

func appointmentAt(start, end TimeOfDay, status AppointmentStatus) Appointment {
	return Appointment{
		ID:     uuid.New(),
		Start:  testDate.At(start),
		End:    testDate.At(end),
		Status: status,
	}
}

func slotTimes(slots []TimeSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Time.String())
	}
	return out
}

func assertSlots(t *testing.T, got []TimeSlot, want []string) {
	t.Helper()
	gotTimes := slotTimes(got)
	if len(gotTimes) != len(want) {
		t.Fatalf("got slots %v, want %v", gotTimes, want)
	}
	for i := range want {
		if gotTimes[i] != want[i] {
			t.Fatalf("got slots %v, want %v", gotTimes, want)
		}
	}
}

func TestAvailableSlots_BoundaryInclusion(t *testing.T) {
	// A session must end at or before the block end.
	slots := AvailableSlots([]WorkingHourBlock{block(NewTimeOfDay(9, 0), NewTimeOfDay(10, 0))}, nil, testDate, sessionLength, slotStep)
	assertSlots(t, slots, []string{"09:00"})

	slots = AvailableSlots([]WorkingHourBlock{block(NewTimeOfDay(9, 0), NewTimeOfDay(9, 59))}, nil, testDate, sessionLength, slotStep)
	assertSlots(t, slots, nil)
}

func TestAvailableSlots_Granularity(t *testing.T) {
	slots := AvailableSlots([]WorkingHourBlock{block(NewTimeOfDay(8, 0), NewTimeOfDay(12, 0))}, nil, testDate, sessionLength, slotStep)
	assertSlots(t, slots, []string{"08:00", "08:30", "09:00", "09:30", "10:00", "10:30", "11:00"})
}

func TestAvailableSlots_ExcludesBookedWindows(t *testing.T) {
	blocks := []WorkingHourBlock{block(NewTimeOfDay(8, 0), NewTimeOfDay(12, 0))}
	appts := []Appointment{appointmentAt(NewTimeOfDay(9, 0), NewTimeOfDay(10, 0), AppointmentConfirmed)}

	// 09:00 and 09:30 are gone: their 60-minute windows intersect 09:00-10:00.
	slots := AvailableSlots(blocks, appts, testDate, sessionLength, slotStep)
	assertSlots(t, slots, []string{"08:00", "08:30", "10:00", "10:30", "11:00"})
}

func TestAvailableSlots_CancelledDoesNotBlock(t *testing.T) {
	blocks := []WorkingHourBlock{block(NewTimeOfDay(10, 0), NewTimeOfDay(11, 0))}
	appts := []Appointment{appointmentAt(NewTimeOfDay(10, 0), NewTimeOfDay(11, 0), AppointmentCancelled)}

	slots := AvailableSlots(blocks, appts, testDate, sessionLength, slotStep)
	assertSlots(t, slots, []string{"10:00"})
}

func TestAvailableSlots_InactiveBlockIgnored(t *testing.T) {
	b := block(NewTimeOfDay(9, 0), NewTimeOfDay(12, 0))
	b.Active = false

	slots := AvailableSlots([]WorkingHourBlock{b}, nil, testDate, sessionLength, slotStep)
	assertSlots(t, slots, nil)
}

func TestAvailableSlots_MergesAndSortsBlocks(t *testing.T) {
	blocks := []WorkingHourBlock{
		block(NewTimeOfDay(14, 0), NewTimeOfDay(16, 0)),
		block(NewTimeOfDay(9, 0), NewTimeOfDay(11, 0)),
	}

	slots := AvailableSlots(blocks, nil, testDate, sessionLength, slotStep)
	assertSlots(t, slots, []string{"09:00", "09:30", "10:00", "14:00", "14:30", "15:00"})
}

func TestAvailableSlots_OverlappingBlocksDeduped(t *testing.T) {
	blocks := []WorkingHourBlock{
		block(NewTimeOfDay(9, 0), NewTimeOfDay(11, 0)),
		block(NewTimeOfDay(10, 0), NewTimeOfDay(12, 0)),
	}

	slots := AvailableSlots(blocks, nil, testDate, sessionLength, slotStep)
	assertSlots(t, slots, []string{"09:00", "09:30", "10:00", "10:30", "11:00"})
}

func TestAvailableSlots_NoOverlapProperty(t *testing.T) {
	blocks := []WorkingHourBlock{
		block(NewTimeOfDay(8, 0), NewTimeOfDay(13, 0)),
		block(NewTimeOfDay(14, 0), NewTimeOfDay(18, 0)),
	}
	appts := []Appointment{
		appointmentAt(NewTimeOfDay(8, 30), NewTimeOfDay(9, 30), AppointmentConfirmed),
		appointmentAt(NewTimeOfDay(11, 0), NewTimeOfDay(12, 0), AppointmentPending),
		appointmentAt(NewTimeOfDay(15, 15), NewTimeOfDay(16, 15), AppointmentConfirmed),
		appointmentAt(NewTimeOfDay(16, 30), NewTimeOfDay(17, 30), AppointmentCancelled),
	}

	slots := AvailableSlots(blocks, appts, testDate, sessionLength, slotStep)
	if len(slots) == 0 {
		t.Fatal("expected some free slots")
	}

	for _, s := range slots {
		if !s.Available {
			t.Fatalf("slot %s marked unavailable", s.Time)
		}
		start := testDate.At(s.Time)
		end := start.Add(sessionLength)
		for _, a := range appts {
			if a.Status != AppointmentCancelled && a.Overlaps(start, end) {
				t.Fatalf("slot %s overlaps appointment %s-%s", s.Time, a.Start, a.End)
			}
		}
	}
}
