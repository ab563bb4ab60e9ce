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

func TestRoleCrud(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	require.NoError(t, err)

	var created map[string]interface{}
	require.NoError(t, admin.Post("/role/create").Json(map[string]interface{}{
		"name":             "Accountant",
		"canManageFinance": true,
	}).Do(&created))
	assert.Equal(t, true, created["canManageFinance"])

	// Duplicate role names are rejected.
	_, status, err := admin.Post("/role/create").Json(map[string]string{
		"name": "Accountant",
	}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	var roles []map[string]interface{}
	require.NoError(t, admin.Get("/role/list").Do(&roles))
	require.Len(t, roles, 1)

	require.NoError(t, admin.Post(fmt.Sprintf("/role/%v/update", created["id"])).Json(map[string]interface{}{
		"name":           "Senior Accountant",
		"canManageUsers": true,
	}).Do(nil))

	require.NoError(t, admin.Get("/role/list").Do(&roles))
	assert.Equal(t, "Senior Accountant", roles[0]["name"])
	assert.Equal(t, true, roles[0]["canManageUsers"])

	require.NoError(t, admin.Delete(fmt.Sprintf("/role/%v/delete", created["id"])).Do(nil))

	require.NoError(t, admin.Get("/role/list").Do(&roles))
	assert.Empty(t, roles)
}

func TestRoleDeleteDetachesUsers(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("role_holder")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	var role map[string]interface{}
	require.NoError(t, admin.Post("/role/create").Json(map[string]string{"name": "Temp Role"}).Do(&role))

	require.NoError(t, admin.Post(fmt.Sprintf("/user/%v/update", user.userId)).Json(map[string]interface{}{
		"roleId": role["id"],
	}).Do(nil))

	require.NoError(t, admin.Delete(fmt.Sprintf("/role/%v/delete", role["id"])).Do(nil))

	var stored schema.User
	require.NoError(t, env.db.First(&stored, "id = ?", user.userId).Error)
	assert.Nil(t, stored.RoleId)
}

func TestCompanyCrud(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("company_viewer")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	var created map[string]interface{}
	require.NoError(t, admin.Post("/company/create").Json(map[string]string{
		"name": "Acme Construction",
	}).Do(&created))

	_, status, err := admin.Post("/company/create").Json(map[string]string{
		"name": "Acme Construction",
	}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	// Any authenticated user can list companies, only admins mutate them.
	var companies []map[string]interface{}
	require.NoError(t, user.Get("/company/list").Do(&companies))
	require.Len(t, companies, 1)

	_, status, err = user.Post("/company/create").Json(map[string]string{"name": "Rogue Inc"}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	require.NoError(t, admin.Post(fmt.Sprintf("/company/%v/update", created["id"])).Json(map[string]string{
		"name": "Acme Holdings",
	}).Do(nil))

	require.NoError(t, admin.Delete(fmt.Sprintf("/company/%v/delete", created["id"])).Do(nil))

	_, status, err = admin.Delete(fmt.Sprintf("/company/%v/delete", created["id"])).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBusinessAreaCrudNotifiesAdmins(t *testing.T) {
	env := setupTestEnv(t)

	secondAdmin, err := env.newUser("second_admin")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)
	require.NoError(t, admin.Post(fmt.Sprintf("/user/%v/admin", secondAdmin.userId)).Do(nil))

	var created map[string]interface{}
	require.NoError(t, admin.Post("/business-area/create").Json(map[string]string{
		"name": "Energy",
	}).Do(&created))

	// Every admin, the performer included, gets an in-app record.
	for _, adminId := range []string{admin.userId, secondAdmin.userId} {
		var count int64
		require.NoError(t, env.db.Model(&schema.Notification{}).
			Where("member_id = ? AND type = ?", uuid.MustParse(adminId), "business_area_created").
			Count(&count).Error)
		assert.Equal(t, int64(1), count, "admin %v should be notified", adminId)
	}

	require.NoError(t, admin.Post(fmt.Sprintf("/business-area/%v/update", created["id"])).Json(map[string]string{
		"name": "Renewable Energy",
	}).Do(nil))

	var updatedCount int64
	require.NoError(t, env.db.Model(&schema.Notification{}).
		Where("type = ?", "business_area_updated").Count(&updatedCount).Error)
	assert.Equal(t, int64(2), updatedCount)

	require.NoError(t, admin.Delete(fmt.Sprintf("/business-area/%v/delete", created["id"])).Do(nil))

	var areas []map[string]interface{}
	require.NoError(t, admin.Get("/business-area/list").Do(&areas))
	assert.Empty(t, areas)
}

func TestBusinessAreaDuplicateName(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	require.NoError(t, err)

	require.NoError(t, admin.Post("/business-area/create").Json(map[string]string{"name": "Roads"}).Do(nil))

	_, status, err := admin.Post("/business-area/create").Json(map[string]string{"name": "Roads"}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}
