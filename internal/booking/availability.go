package booking

import (
	"sort"
	"time"
)

// AvailableSlots derives the bookable session start times for one therapist
// day. Candidates are walked per working-hour block from the block start in
// fixed steps; a candidate survives only if a full session still fits inside
// the block and its window overlaps no non-cancelled appointment. Results are
// merged across blocks, sorted ascending and deduplicated.
func AvailableSlots(blocks []WorkingHourBlock, appts []Appointment, date Date, session, step time.Duration) []TimeSlot {
	sessionMin := TimeOfDay(session / time.Minute)
	stepMin := TimeOfDay(step / time.Minute)
	if sessionMin <= 0 || stepMin <= 0 {
		return nil
	}

	seen := make(map[TimeOfDay]bool)
	var out []TimeSlot

	for _, block := range blocks {
		if !block.Active {
			continue
		}
		for t := block.Start; t+sessionMin <= block.End; t += stepMin {
			if seen[t] {
				continue
			}
			slotStart := date.At(t)
			slotEnd := slotStart.Add(session)
			if overlapsAny(appts, slotStart, slotEnd) {
				continue
			}
			seen[t] = true
			out = append(out, TimeSlot{Time: t, Available: true})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func overlapsAny(appts []Appointment, start, end time.Time) bool {
	for _, a := range appts {
		if a.Status == AppointmentCancelled {
			continue
		}
		if a.Overlaps(start, end) {
			return true
		}
	}
	return false
}
