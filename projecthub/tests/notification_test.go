package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("notif_user")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	var created map[string]interface{}
	err = admin.Post("/notification/create").Json(map[string]interface{}{
		"memberId":    user.userId,
		"title":       "Manual notice",
		"type":        "announcement",
		"description": "Scheduled maintenance tonight",
	}).Do(&created)
	require.NoError(t, err)

	notifications, err := user.notifications()
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "Manual notice", notifications[0]["title"])
	assert.Equal(t, false, notifications[0]["isRead"])

	notificationId := notifications[0]["id"].(string)

	var fetched map[string]interface{}
	require.NoError(t, user.Get(fmt.Sprintf("/notification/%v", notificationId)).Do(&fetched))
	assert.Equal(t, "announcement", fetched["type"])

	require.NoError(t, user.Post(fmt.Sprintf("/notification/%v/read", notificationId)).Do(nil))

	notifications, err = user.notifications()
	require.NoError(t, err)
	assert.Equal(t, true, notifications[0]["isRead"])

	require.NoError(t, user.Delete("/notification/clear").Do(nil))

	notifications, err = user.notifications()
	require.NoError(t, err)
	assert.Empty(t, notifications)
}

func TestNotificationGetUnknownId(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("notif_404")
	require.NoError(t, err)

	_, status, err := user.Get(fmt.Sprintf("/notification/%v", uuid.NewString())).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestNotificationSuppressedRecipient(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("muted_user")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	// Turn notifications off for the user.
	require.NoError(t, admin.Post(fmt.Sprintf("/notification-setting/%v", user.userId)).Json(map[string]bool{
		"enabled": false,
	}).Do(nil))

	envelope, status, err := admin.Post("/notification/create").Json(map[string]interface{}{
		"memberId": user.userId,
		"title":    "Should not arrive",
		"type":     "announcement",
	}).DoRaw()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, envelope.Message, "disabled")

	notifications, err := user.notifications()
	require.NoError(t, err)
	assert.Empty(t, notifications)
}

func TestSuppressionBlocksFanOutButNotEmail(t *testing.T) {
	env := setupTestEnv(t)

	member, err := env.newUser("muted_member")
	require.NoError(t, err)

	// Give the member a device token so push would otherwise fire.
	require.NoError(t, env.db.Model(&schema.User{}).
		Where("id = ?", member.userId).
		Update("fcm_device_token", "token-muted").Error)

	require.NoError(t, env.db.Create(&schema.NotificationSetting{
		UserId:  uuid.MustParse(member.userId),
		Enabled: false,
	}).Error)

	admin, err := env.adminClient()
	require.NoError(t, err)

	_, err = admin.createProject(map[string]interface{}{
		"name":    "Muted Fanout",
		"members": []string{member.userId},
	})
	require.NoError(t, err)

	// The muted member gets no in-app record.
	var count int64
	require.NoError(t, env.db.Model(&schema.Notification{}).
		Where("member_id = ?", uuid.MustParse(member.userId)).Count(&count).Error)
	assert.Zero(t, count)
}

func TestNotificationSettingDefaultsToEnabled(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("settings_user")
	require.NoError(t, err)

	var setting map[string]interface{}
	require.NoError(t, user.Get(fmt.Sprintf("/notification-setting/%v", user.userId)).Do(&setting))
	assert.Equal(t, true, setting["enabled"])

	require.NoError(t, user.Post(fmt.Sprintf("/notification-setting/%v", user.userId)).Json(map[string]bool{
		"enabled": false,
	}).Do(nil))

	require.NoError(t, user.Get(fmt.Sprintf("/notification-setting/%v", user.userId)).Do(&setting))
	assert.Equal(t, false, setting["enabled"])

	// The opt out is persisted, not just echoed back.
	var stored schema.NotificationSetting
	require.NoError(t, env.db.First(&stored, "user_id = ?", user.userId).Error)
	assert.False(t, stored.Enabled)

	require.NoError(t, user.Post(fmt.Sprintf("/notification-setting/%v", user.userId)).Json(map[string]bool{
		"enabled": true,
	}).Do(nil))
	require.NoError(t, env.db.First(&stored, "user_id = ?", user.userId).Error)
	assert.True(t, stored.Enabled)
}

func TestNotificationSettingSelfOrAdminOnly(t *testing.T) {
	env := setupTestEnv(t)

	alice, err := env.newUser("alice_settings")
	require.NoError(t, err)
	bob, err := env.newUser("bob_settings")
	require.NoError(t, err)

	_, status, err := bob.Get(fmt.Sprintf("/notification-setting/%v", alice.userId)).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	admin, err := env.adminClient()
	require.NoError(t, err)

	var setting map[string]interface{}
	require.NoError(t, admin.Get(fmt.Sprintf("/notification-setting/%v", alice.userId)).Do(&setting))
	assert.Equal(t, true, setting["enabled"])
}

func TestLanguagePreference(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("lang_user")
	require.NoError(t, err)

	// First read creates the default.
	var preference map[string]string
	require.NoError(t, user.Get("/language/").Do(&preference))
	assert.Equal(t, "portuguese", preference["language"])

	require.NoError(t, user.Post("/language/").Json(map[string]string{
		"language": "english",
	}).Do(&preference))
	assert.Equal(t, "english", preference["language"])

	require.NoError(t, user.Get("/language/").Do(&preference))
	assert.Equal(t, "english", preference["language"])

	// Unknown languages are rejected.
	_, status, err := user.Post("/language/").Json(map[string]string{
		"language": "klingon",
	}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLanguageAffectsNotificationContent(t *testing.T) {
	env := setupTestEnv(t)

	ptMember, err := env.newUser("pt_member")
	require.NoError(t, err)
	enMember, err := env.newUser("en_member")
	require.NoError(t, err)

	require.NoError(t, enMember.Post("/language/").Json(map[string]string{
		"language": "english",
	}).Do(nil))

	admin, err := env.adminClient()
	require.NoError(t, err)

	_, err = admin.createProject(map[string]interface{}{
		"name":    "Bilingual Project",
		"members": []string{ptMember.userId, enMember.userId},
	})
	require.NoError(t, err)

	ptNotifications, err := ptMember.notifications()
	require.NoError(t, err)
	require.Len(t, ptNotifications, 1)

	enNotifications, err := enMember.notifications()
	require.NoError(t, err)
	require.Len(t, enNotifications, 1)

	assert.NotEqual(t, ptNotifications[0]["title"], enNotifications[0]["title"])
	assert.Contains(t, ptNotifications[0]["description"], "Bilingual Project")
	assert.Contains(t, enNotifications[0]["description"], "Bilingual Project")
}
