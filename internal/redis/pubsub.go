package redisclient

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Channel naming: subscribers scope themselves to the therapist or patient
// whose calendar or request queue they render.

func AppointmentsChannel(therapistID uuid.UUID) string {
	return fmt.Sprintf("appointments:therapist:%s", therapistID.String())
}

func TherapistRequestsChannel(therapistID uuid.UUID) string {
	return fmt.Sprintf("requests:therapist:%s", therapistID.String())
}

func PatientRequestsChannel(patientID uuid.UUID) string {
	return fmt.Sprintf("requests:patient:%s", patientID.String())
}

// Publisher fans change events out over Redis pub/sub. It implements the
// booking package's Notifier interface. Publish failures are logged, not
// surfaced: a missed refresh hint must never fail the mutation it follows.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) AppointmentsChanged(ctx context.Context, therapistID uuid.UUID) {
	p.publish(ctx, AppointmentsChannel(therapistID), "changed")
}

func (p *Publisher) RequestsChanged(ctx context.Context, therapistID, patientID uuid.UUID) {
	p.publish(ctx, TherapistRequestsChannel(therapistID), "changed")
	p.publish(ctx, PatientRequestsChannel(patientID), "changed")
}

func (p *Publisher) publish(ctx context.Context, channel, payload string) {
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("publish %s: %v", channel, err)
	}
}

// Subscribe returns a channel of messages for one pub/sub channel. The
// subscription closes when ctx is cancelled.
func Subscribe(ctx context.Context, client *redis.Client, channel string) <-chan *redis.Message {
	sub := client.Subscribe(ctx, channel)

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return sub.Channel()
}
