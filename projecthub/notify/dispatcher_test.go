package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDb(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%v?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDb, err := db.DB()
	require.NoError(t, err)
	sqlDb.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&schema.User{}, &schema.Project{}, &schema.ProjectMember{}, &schema.ProjectOwner{},
		&schema.Notification{}, &schema.LanguagePreference{}, &schema.NotificationSetting{},
	)
	require.NoError(t, err)

	return db
}

func makeUsers(ids ...uuid.UUID) []schema.User {
	users := make([]schema.User, 0, len(ids))
	for i, id := range ids {
		users = append(users, schema.User{
			Id:       id,
			UserName: fmt.Sprintf("user%d", i),
			Email:    fmt.Sprintf("user%d@mail.com", i),
		})
	}
	return users
}

func seedUsers(t *testing.T, db *gorm.DB, count int) []schema.User {
	ids := make([]uuid.UUID, count)
	for i := range ids {
		ids[i] = uuid.New()
	}
	users := makeUsers(ids...)
	for i := range users {
		users[i].FcmDeviceToken = fmt.Sprintf("token-%d", i)
	}
	require.NoError(t, db.Create(&users).Error)
	return users
}

type recordingGateway struct {
	calls []pushSendCall
}

type pushSendCall struct {
	tokens []string
	title  string
	data   map[string]string
}

func (g *recordingGateway) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushResult, error) {
	g.calls = append(g.calls, pushSendCall{tokens: tokens, title: title, data: data})
	return PushResult{SuccessCount: len(tokens)}, nil
}

type recordingSender struct {
	sent []string
}

func (s *recordingSender) Send(to, subject, htmlBody string) error {
	s.sent = append(s.sent, to)
	return nil
}

func TestInAppRecordsWrittenPerRecipient(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 3)

	dispatcher := NewDispatcher(db, NoopPushGateway{}, NoopEmailSender{}, NewMetrics())

	projectId := uuid.New()
	event := Event{
		Kind:       EventCreated,
		Entity:     EntityProject,
		EntityName: "Test Project",
		ProjectId:  &projectId,
	}

	require.NoError(t, dispatcher.InAppRecords(db, event, users))

	var notifications []schema.Notification
	require.NoError(t, db.Find(&notifications).Error)
	assert.Len(t, notifications, 3)
	for _, n := range notifications {
		assert.Equal(t, "project_created", n.Type)
		assert.Equal(t, projectId, *n.ProjectId)
		assert.False(t, n.IsRead)
	}
}

func TestInAppRecordsSkipSuppressedUsers(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 2)

	require.NoError(t, db.Create(&schema.NotificationSetting{
		UserId: users[0].Id, Enabled: false,
	}).Error)

	dispatcher := NewDispatcher(db, NoopPushGateway{}, NoopEmailSender{}, NewMetrics())

	require.NoError(t, dispatcher.InAppRecords(db, Event{Kind: EventCreated, Entity: EntityProject}, users))

	var notifications []schema.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, users[1].Id, notifications[0].MemberId)
}

func TestDispatchPushGroupsByLanguage(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 3)

	require.NoError(t, db.Create(&schema.LanguagePreference{
		UserId: users[0].Id, Language: string(English),
	}).Error)

	gateway := &recordingGateway{}
	dispatcher := NewDispatcher(db, gateway, NoopEmailSender{}, NewMetrics())

	projectId := uuid.New()
	event := Event{
		Kind:       EventUpdated,
		Entity:     EntityProject,
		EntityName: "Grouped Project",
		ProjectId:  &projectId,
	}

	outcome := dispatcher.DispatchPush(context.Background(), event, users)

	// One call for the english speaker, one for the two portuguese speakers.
	require.Len(t, gateway.calls, 2)
	assert.Equal(t, 3, outcome.Delivered)

	tokenCounts := map[int]bool{}
	for _, call := range gateway.calls {
		tokenCounts[len(call.tokens)] = true
		assert.Equal(t, "project_updated", call.data["type"])
		assert.Equal(t, projectId.String(), call.data["projectId"])
	}
	assert.True(t, tokenCounts[1])
	assert.True(t, tokenCounts[2])
}

func TestDispatchPushDedupesTokens(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 2)

	// Both users share a device.
	require.NoError(t, db.Model(&schema.User{}).
		Where("id IN ?", []uuid.UUID{users[0].Id, users[1].Id}).
		Update("fcm_device_token", "shared-token").Error)
	users[0].FcmDeviceToken = "shared-token"
	users[1].FcmDeviceToken = "shared-token"

	gateway := &recordingGateway{}
	dispatcher := NewDispatcher(db, gateway, NoopEmailSender{}, NewMetrics())

	dispatcher.DispatchPush(context.Background(), Event{Kind: EventCreated, Entity: EntityProject}, users)

	require.Len(t, gateway.calls, 1)
	assert.Equal(t, []string{"shared-token"}, gateway.calls[0].tokens)
}

func TestDispatchPushExcludesPerformer(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 2)

	gateway := &recordingGateway{}
	dispatcher := NewDispatcher(db, gateway, NoopEmailSender{}, NewMetrics())

	event := Event{
		Kind:             EventUpdated,
		Entity:           EntityProject,
		PerformedBy:      users[0].Id,
		ExcludePerformer: true,
	}

	dispatcher.DispatchPush(context.Background(), event, users)

	require.Len(t, gateway.calls, 1)
	assert.Equal(t, []string{users[1].FcmDeviceToken}, gateway.calls[0].tokens)
}

func TestDispatchEmailIgnoresSuppression(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 2)

	// Suppression blocks in-app and push, never email.
	require.NoError(t, db.Create(&schema.NotificationSetting{
		UserId: users[0].Id, Enabled: false,
	}).Error)

	sender := &recordingSender{}
	dispatcher := NewDispatcher(db, NoopPushGateway{}, sender, NewMetrics())

	outcome := dispatcher.DispatchEmail(context.Background(), Event{Kind: EventCreated, Entity: EntityProject}, users)

	assert.Equal(t, 2, outcome.Delivered)
	assert.Len(t, sender.sent, 2)
}

func TestDispatchEmailSkipsEmptyAddresses(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 2)
	users[0].Email = ""

	sender := &recordingSender{}
	dispatcher := NewDispatcher(db, NoopPushGateway{}, sender, NewMetrics())

	outcome := dispatcher.DispatchEmail(context.Background(), Event{Kind: EventCreated, Entity: EntityProject}, users)

	assert.Equal(t, 1, outcome.Delivered)
	assert.Equal(t, []string{users[1].Email}, sender.sent)
}

func TestResolveLanguagesDefaultsToPortuguese(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 2)

	require.NoError(t, db.Create(&schema.LanguagePreference{
		UserId: users[0].Id, Language: string(English),
	}).Error)

	languages := ResolveLanguages([]uuid.UUID{users[0].Id, users[1].Id}, db)
	assert.Equal(t, English, languages[users[0].Id])
	assert.Equal(t, Portuguese, languages[users[1].Id])
}

func TestProjectRecipientsOrderAndDedup(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 3)

	project := schema.Project{
		Id: uuid.New(),
		Members: []schema.ProjectMember{
			{UserId: users[0].Id},
			{UserId: users[1].Id},
		},
		Owners: []schema.ProjectOwner{
			{OwnerId: users[1].Id}, // also a member, must not repeat
			{OwnerId: users[2].Id},
		},
	}

	recipients, err := ProjectRecipients(project, users[0].Id, db)
	require.NoError(t, err)

	require.Len(t, recipients, 3)
	assert.Equal(t, users[0].Id, recipients[0].Id)
	assert.Equal(t, users[1].Id, recipients[1].Id)
	assert.Equal(t, users[2].Id, recipients[2].Id)
}

func TestProjectRecipientsAppendsPerformer(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 2)

	project := schema.Project{
		Id:      uuid.New(),
		Members: []schema.ProjectMember{{UserId: users[0].Id}},
	}

	recipients, err := ProjectRecipients(project, users[1].Id, db)
	require.NoError(t, err)
	require.Len(t, recipients, 2)
	assert.Equal(t, users[1].Id, recipients[1].Id)

	// A nil performer is not appended.
	recipients, err = ProjectRecipients(project, uuid.Nil, db)
	require.NoError(t, err)
	assert.Len(t, recipients, 1)
}

func TestProjectRecipientsSkipsDeletedUsers(t *testing.T) {
	db := setupDb(t)
	users := seedUsers(t, db, 1)

	project := schema.Project{
		Id: uuid.New(),
		Members: []schema.ProjectMember{
			{UserId: users[0].Id},
			{UserId: uuid.New()}, // no such user
		},
	}

	recipients, err := ProjectRecipients(project, uuid.Nil, db)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, users[0].Id, recipients[0].Id)
}
