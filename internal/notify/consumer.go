package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/repository"
	"github.com/physiodesk/clinic-api/pkg/logger"
	"github.com/physiodesk/clinic-api/pkg/messaging"
)

// Consumer turns published lifecycle events into patient emails. Failures
// are logged and dropped; notifications are best-effort.
type Consumer struct {
	broker   messaging.Broker
	patients repository.PatientRepository
	mailer   Mailer
	logger   *logger.Logger
	channel  string
}

func NewConsumer(
	broker messaging.Broker,
	patients repository.PatientRepository,
	mailer Mailer,
	l *logger.Logger,
	channel string,
) *Consumer {
	if channel == "" {
		channel = "clinic.lifecycle"
	}
	return &Consumer{
		broker:   broker,
		patients: patients,
		mailer:   mailer,
		logger:   l,
		channel:  channel,
	}
}

type eventEnvelope struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type appointmentPayload struct {
	PatientID *uuid.UUID `json:"patient_id"`
	StartTime time.Time  `json:"start_time"`
	Reason    string     `json:"reason"`
}

// Run consumes events until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.broker.Subscribe(ctx, c.channel)
	if err != nil {
		return err
	}

	c.logger.Info("notification consumer started", "channel", c.channel)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw []byte) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Error(err, "failed to decode event")
		return
	}

	switch env.EventType {
	case model.EventAppointmentBooked, model.EventAppointmentVoid:
	default:
		return
	}

	var payload appointmentPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		c.logger.Error(err, "failed to decode event payload", "event_id", env.ID.String())
		return
	}
	// Walk-ins have no patient record and nothing to notify.
	if payload.PatientID == nil {
		return
	}

	patient, err := c.patients.Get(ctx, *payload.PatientID)
	if err != nil {
		c.logger.Error(err, "failed to load patient for notification",
			"patient_id", payload.PatientID.String())
		return
	}
	if patient.Email == "" {
		return
	}

	switch env.EventType {
	case model.EventAppointmentBooked:
		err = c.mailer.SendBookingConfirmation(patient.Email, patient.Name,
			payload.StartTime.Format("2006-01-02 15:04"))
	case model.EventAppointmentVoid:
		err = c.mailer.SendCancellationNotice(patient.Email, patient.Name, payload.Reason)
	}
	if err != nil {
		c.logger.Error(err, "failed to send notification",
			"event_type", env.EventType, "patient_id", patient.ID.String())
	}
}
