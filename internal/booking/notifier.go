package booking

import (
	"context"

	"github.com/google/uuid"
)

// Notifier lets calendars and request queues refresh reactively. Publishers
// scope events to the therapist/patient whose view they invalidate; the
// transport behind the interface is up to the adapter.
type Notifier interface {
	AppointmentsChanged(ctx context.Context, therapistID uuid.UUID)
	RequestsChanged(ctx context.Context, therapistID, patientID uuid.UUID)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) AppointmentsChanged(context.Context, uuid.UUID)        {}
func (NopNotifier) RequestsChanged(context.Context, uuid.UUID, uuid.UUID) {}
