package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("new_user")
	require.NoError(t, err)
	assert.NotEmpty(t, user.authToken)
	assert.NotEmpty(t, user.userId)

	var info map[string]interface{}
	require.NoError(t, user.Get("/user/info").Do(&info))
	assert.Equal(t, "new_user", info["username"])
	assert.Equal(t, false, info["admin"])
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.newUser("dupe_user")
	require.NoError(t, err)

	c := env.newClient()
	_, status, err := c.Post("/user/signup").Json(map[string]string{
		"username": "other_name",
		"email":    "dupe_user@mail.com",
		"password": "password123",
	}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, status)
}

func TestLoginBadCredentials(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.newUser("login_user")
	require.NoError(t, err)

	c := env.newClient()
	err = c.login(loginInfo{Email: "login_user@mail.com", Password: "wrong_password"})
	require.Error(t, err)

	err = c.login(loginInfo{Email: "nobody@mail.com", Password: "whatever"})
	require.Error(t, err)
}

func TestPromoteAndDemoteAdmin(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("future_admin")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	// Regular users cannot promote.
	_, status, err := user.Post(fmt.Sprintf("/user/%v/admin", user.userId)).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	require.NoError(t, admin.Post(fmt.Sprintf("/user/%v/admin", user.userId)).Do(nil))

	var info map[string]interface{}
	require.NoError(t, user.Get("/user/info").Do(&info))
	assert.Equal(t, true, info["admin"])

	require.NoError(t, admin.Delete(fmt.Sprintf("/user/%v/admin", user.userId)).Do(nil))

	require.NoError(t, user.Get("/user/info").Do(&info))
	assert.Equal(t, false, info["admin"])
}

func TestCannotDemoteLastAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	require.NoError(t, err)

	_, status, err := admin.Delete(fmt.Sprintf("/user/%v/admin", admin.userId)).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestDeleteUserCleansUp(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("doomed_user")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{
		"name":    "Orphan Project",
		"members": []string{user.userId},
	})
	require.NoError(t, err)

	require.NoError(t, admin.Delete(fmt.Sprintf("/user/%v", user.userId)).Do(nil))

	var members int64
	require.NoError(t, env.db.Model(&schema.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", project.Id, user.userId).
		Count(&members).Error)
	assert.Zero(t, members)

	var notifications int64
	require.NoError(t, env.db.Model(&schema.Notification{}).
		Where("member_id = ?", user.userId).Count(&notifications).Error)
	assert.Zero(t, notifications)

	// The deleted user can no longer log in.
	c := env.newClient()
	err = c.login(loginInfo{Email: "doomed_user@mail.com", Password: "doomed_user_password"})
	require.Error(t, err)
}

func TestUpdateFcmToken(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("device_user")
	require.NoError(t, err)

	require.NoError(t, user.Post("/user/fcm-token").Json(map[string]string{
		"fcmDeviceToken": "device-token-1",
	}).Do(nil))

	var stored schema.User
	require.NoError(t, env.db.First(&stored, "id = ?", user.userId).Error)
	assert.Equal(t, "device-token-1", stored.FcmDeviceToken)
	assert.Equal(t, "device-token-1", stored.EffectiveToken())

	// The explicit notification token takes precedence once set.
	require.NoError(t, user.Post("/user/fcm-token").Json(map[string]string{
		"notificationToken": "notif-token-9",
	}).Do(nil))

	require.NoError(t, env.db.First(&stored, "id = ?", user.userId).Error)
	assert.Equal(t, "notif-token-9", stored.EffectiveToken())

	_, status, err := user.Post("/user/fcm-token").Json(map[string]string{}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUserUpdateAssignsRoleAndBusinessAreas(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("assigned_user")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	var role map[string]interface{}
	require.NoError(t, admin.Post("/role/create").Json(map[string]interface{}{
		"name":              "Supervisor",
		"canManageProjects": true,
	}).Do(&role))

	var area map[string]interface{}
	require.NoError(t, admin.Post("/business-area/create").Json(map[string]string{
		"name": "Civil Works",
	}).Do(&area))

	require.NoError(t, admin.Post(fmt.Sprintf("/user/%v/update", user.userId)).Json(map[string]interface{}{
		"userType":      schema.UserTypeProduction,
		"roleId":        role["id"],
		"businessAreas": []interface{}{area["id"]},
	}).Do(nil))

	var info map[string]interface{}
	require.NoError(t, user.Get("/user/info").Do(&info))
	assert.Equal(t, schema.UserTypeProduction, info["userType"])
	assert.Equal(t, role["id"], info["roleId"])

	areas := info["businessAreas"].([]interface{})
	require.Len(t, areas, 1)
	assert.Equal(t, "Civil Works", areas[0].(map[string]interface{})["name"])

	// Unknown user types are rejected.
	_, status, err := admin.Post(fmt.Sprintf("/user/%v/update", user.userId)).Json(map[string]string{
		"userType": "Wizard",
	}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBusinessAreaGrantsProjectVisibility(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("area_user")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	var area map[string]interface{}
	require.NoError(t, admin.Post("/business-area/create").Json(map[string]string{
		"name": "Maritime",
	}).Do(&area))

	require.NoError(t, admin.Post(fmt.Sprintf("/user/%v/update", user.userId)).Json(map[string]interface{}{
		"businessAreas": []interface{}{area["id"]},
	}).Do(nil))

	project, err := admin.createProject(map[string]interface{}{
		"name":         "Port Project",
		"businessArea": "Maritime",
	})
	require.NoError(t, err)

	// Business area membership grants member-level access.
	var info map[string]interface{}
	require.NoError(t, user.Get(fmt.Sprintf("/project/%v", project.Id)).Do(&info))
	assert.Equal(t, "Port Project", info["name"])

	type listResponse struct {
		Projects []map[string]interface{} `json:"projects"`
	}
	var list listResponse
	require.NoError(t, user.Get("/project/list").Do(&list))
	assert.Len(t, list.Projects, 1)
}
