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

type milestoneResponse struct {
	Id          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CompletedAt *string `json:"completedAt"`
}

func TestMilestoneCreateOrUpdate(t *testing.T) {
	env := setupTestEnv(t)

	member, err := env.newUser("ms_member")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{
		"name":    "Milestone Project",
		"members": []string{member.userId},
	})
	require.NoError(t, err)

	var created milestoneResponse
	err = member.Post(fmt.Sprintf("/milestone/project/%v", project.Id)).Json(map[string]string{
		"title":       "Foundation",
		"description": "Pour the foundation",
	}).Do(&created)
	require.NoError(t, err)
	assert.Equal(t, schema.MilestoneStatusPending, created.Status)

	// Submitting the same title updates the existing milestone instead of
	// creating a second one.
	var updated milestoneResponse
	err = member.Post(fmt.Sprintf("/milestone/project/%v", project.Id)).Json(map[string]string{
		"title":  "Foundation",
		"status": schema.MilestoneStatusCompleted,
	}).Do(&updated)
	require.NoError(t, err)
	assert.Equal(t, created.Id, updated.Id)
	assert.Equal(t, schema.MilestoneStatusCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	var count int64
	require.NoError(t, env.db.Model(&schema.Milestone{}).
		Where("project_id = ?", project.Id).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMilestoneEventsIncludePerformer(t *testing.T) {
	env := setupTestEnv(t)

	member, err := env.newUser("ms_performer")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{
		"name":    "Performer Project",
		"members": []string{member.userId},
	})
	require.NoError(t, err)

	err = member.Post(fmt.Sprintf("/milestone/project/%v", project.Id)).Json(map[string]string{
		"title": "Survey",
	}).Do(nil)
	require.NoError(t, err)

	// Unlike project updates, milestone events notify the performer too.
	var performerNotifications int64
	require.NoError(t, env.db.Model(&schema.Notification{}).
		Where("member_id = ? AND type = ?", uuid.MustParse(member.userId), "milestone_created").
		Count(&performerNotifications).Error)
	assert.Equal(t, int64(1), performerNotifications)
}

func TestMilestoneUpdateAndDelete(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{"name": "MS Lifecycle"})
	require.NoError(t, err)

	var created milestoneResponse
	err = admin.Post(fmt.Sprintf("/milestone/project/%v", project.Id)).Json(map[string]string{
		"title": "Roofing",
	}).Do(&created)
	require.NoError(t, err)

	envelope, status, err := admin.Post(fmt.Sprintf("/milestone/%v/update", created.Id)).Json(map[string]string{
		"description": "Install trusses",
	}).DoRaw()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status, envelope.Message)

	// No-op update reports that nothing changed.
	envelope, status, err = admin.Post(fmt.Sprintf("/milestone/%v/update", created.Id)).Json(map[string]string{
		"description": "Install trusses",
	}).DoRaw()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, envelope.Message, "no changes")

	require.NoError(t, admin.Delete(fmt.Sprintf("/milestone/%v/delete", created.Id)).Do(nil))

	var count int64
	require.NoError(t, env.db.Model(&schema.Milestone{}).Where("id = ?", created.Id).Count(&count).Error)
	assert.Zero(t, count)

	// Updating a deleted milestone is a 404.
	_, status, err = admin.Post(fmt.Sprintf("/milestone/%v/update", created.Id)).Json(map[string]string{
		"description": "too late",
	}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}
