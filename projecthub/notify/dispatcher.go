package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryOutcome summarizes what happened on one channel for one event.
// Outcomes are logged and counted but never propagated as errors, since
// notification delivery must not fail the operation that triggered it.
type DeliveryOutcome struct {
	Channel    string
	Attempted  int
	Delivered  int
	Failed     int
	Suppressed int
}

func (o DeliveryOutcome) record(metrics *Metrics) {
	metrics.Record(o.Channel, OutcomeSent, o.Delivered)
	metrics.Record(o.Channel, OutcomeFailed, o.Failed)
	metrics.Record(o.Channel, OutcomeSuppressed, o.Suppressed)
}

func (o DeliveryOutcome) log(event Event) {
	slog.Info("notification dispatch",
		"channel", o.Channel,
		"event", event.Type(),
		"entity", event.EntityName,
		"attempted", o.Attempted,
		"delivered", o.Delivered,
		"failed", o.Failed,
		"suppressed", o.Suppressed,
	)
}

type Dispatcher struct {
	db      *gorm.DB
	push    PushGateway
	email   EmailSender
	metrics *Metrics
}

func NewDispatcher(db *gorm.DB, push PushGateway, email EmailSender, metrics *Metrics) *Dispatcher {
	return &Dispatcher{db: db, push: push, email: email, metrics: metrics}
}

// suppressed returns the users who have turned notifications off. A lookup
// failure suppresses nobody so delivery never silently stops on a db error.
func (d *Dispatcher) suppressed(userIds []uuid.UUID) map[uuid.UUID]bool {
	disabled := make(map[uuid.UUID]bool)
	if len(userIds) == 0 {
		return disabled
	}

	var settings []schema.NotificationSetting
	result := d.db.Find(&settings, "user_id IN ? AND enabled = ?", userIds, false)
	if result.Error != nil {
		slog.Error("sql error loading notification settings", "error", result.Error)
		return disabled
	}

	for _, setting := range settings {
		disabled[setting.UserId] = true
	}
	return disabled
}

func userIds(recipients []schema.User) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(recipients))
	for _, recipient := range recipients {
		ids = append(ids, recipient.Id)
	}
	return ids
}

// InAppRecords writes one in-app notification row per recipient, rendered in
// the recipient's language, skipping users who disabled notifications.
// Passing the surrounding transaction makes the rows commit atomically with
// the entity mutation; conflicts on individual rows are tolerated so one bad
// record cannot sink the batch.
func (d *Dispatcher) InAppRecords(txn *gorm.DB, event Event, recipients []schema.User) error {
	ids := userIds(recipients)
	disabled := d.suppressed(ids)
	languages := ResolveLanguages(ids, d.db)

	outcome := DeliveryOutcome{Channel: ChannelInApp, Attempted: len(recipients)}

	rows := make([]schema.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		if disabled[recipient.Id] {
			outcome.Suppressed++
			continue
		}

		message := Compose(event, languages[recipient.Id])
		rows = append(rows, schema.Notification{
			Id:          uuid.New(),
			MemberId:    recipient.Id,
			ProjectId:   event.ProjectId,
			Title:       message.Title,
			Type:        event.Type(),
			Description: message.Description,
			LengthyDesc: message.LengthyDesc,
			CreatedAt:   time.Now().UTC(),
		})
	}

	if len(rows) > 0 {
		result := txn.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		if result.Error != nil {
			slog.Error("sql error inserting in-app notifications", "event", event.Type(), "error", result.Error)
			outcome.Failed = len(rows)
			outcome.record(d.metrics)
			return schema.ErrDbAccessFailed
		}
		outcome.Delivered = len(rows)
	}

	outcome.record(d.metrics)
	outcome.log(event)
	return nil
}

// DispatchPush groups recipients by language, dedupes their device tokens,
// and makes one gateway call per non-empty language group.
func (d *Dispatcher) DispatchPush(ctx context.Context, event Event, recipients []schema.User) DeliveryOutcome {
	if event.ExcludePerformer {
		recipients = ExcludeUser(recipients, event.PerformedBy)
	}

	ids := userIds(recipients)
	disabled := d.suppressed(ids)
	languages := ResolveLanguages(ids, d.db)

	outcome := DeliveryOutcome{Channel: ChannelPush}

	tokensByLanguage := make(map[Language][]string)
	seenTokens := make(map[string]bool)
	for _, recipient := range recipients {
		if disabled[recipient.Id] {
			outcome.Suppressed++
			continue
		}
		token := recipient.EffectiveToken()
		if token == "" || seenTokens[token] {
			continue
		}
		seenTokens[token] = true
		lang := languages[recipient.Id]
		tokensByLanguage[lang] = append(tokensByLanguage[lang], token)
	}

	data := map[string]string{"type": event.Type()}
	if event.ProjectId != nil {
		data["projectId"] = event.ProjectId.String()
	}

	for lang, tokens := range tokensByLanguage {
		message := Compose(event, lang)
		outcome.Attempted += len(tokens)

		result, err := d.push.Send(ctx, tokens, message.Title, message.Description, data)
		if err != nil {
			slog.Error("push delivery failed", "event", event.Type(), "language", lang, "tokens", len(tokens), "error", err)
			outcome.Failed += len(tokens)
			continue
		}

		outcome.Delivered += result.SuccessCount
		outcome.Failed += result.FailureCount
	}

	outcome.record(d.metrics)
	outcome.log(event)
	return outcome
}

// DispatchEmail sends one email per recipient in their language. Each send
// is isolated so one bad address cannot stop delivery to the rest.
func (d *Dispatcher) DispatchEmail(ctx context.Context, event Event, recipients []schema.User) DeliveryOutcome {
	if event.ExcludePerformer {
		recipients = ExcludeUser(recipients, event.PerformedBy)
	}

	languages := ResolveLanguages(userIds(recipients), d.db)

	outcome := DeliveryOutcome{Channel: ChannelEmail}

	for _, recipient := range recipients {
		if recipient.Email == "" {
			continue
		}
		outcome.Attempted++

		message := Compose(event, languages[recipient.Id])
		if err := d.email.Send(recipient.Email, message.EmailSubject, message.EmailBody); err != nil {
			slog.Error("email delivery failed", "event", event.Type(), "recipient", recipient.Id, "error", err)
			outcome.Failed++
			continue
		}
		outcome.Delivered++
	}

	outcome.record(d.metrics)
	outcome.log(event)
	return outcome
}

// Dispatch delivers an event on the push and email channels. In-app records
// are written separately, inside the triggering transaction, via
// InAppRecords.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, recipients []schema.User) {
	d.DispatchPush(ctx, event, recipients)
	d.DispatchEmail(ctx, event, recipients)
}

// DispatchAsync fires delivery after the triggering operation has committed.
// Failures are logged and counted but never surface to the caller.
func (d *Dispatcher) DispatchAsync(event Event, recipients []schema.User) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		d.Dispatch(ctx, event, recipients)
	}()
}
