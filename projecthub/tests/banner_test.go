package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadBanners(c client, projectId string, names ...string) (*httpTestRequest, error) {
	files := make(map[string][]byte, len(names))
	for _, name := range names {
		files[name] = []byte("image bytes for " + name)
	}

	body, contentType, err := multipartBody("banners", files)
	if err != nil {
		return nil, err
	}

	return c.Post(fmt.Sprintf("/project/%v/banners", projectId)).Body(body).Header("Content-Type", contentType), nil
}

func TestProjectBannerUpload(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{"name": "Banner Project"})
	require.NoError(t, err)

	req, err := uploadBanners(admin, project.Id, "a.png", "b.png", "c.png", "d.png")
	require.NoError(t, err)
	require.NoError(t, req.Do(nil))

	var banners []schema.ProjectBanner
	require.NoError(t, env.db.Find(&banners, "project_id = ?", project.Id).Error)
	assert.Len(t, banners, 4)

	// The upload is recorded in the project logs.
	var logs int64
	require.NoError(t, env.db.Model(&schema.ProjectLog{}).
		Where("project_id = ? AND action_type = ?", project.Id, "banners_added").
		Count(&logs).Error)
	assert.Equal(t, int64(1), logs)
}

func TestProjectBannerCap(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{"name": "Capped Banners"})
	require.NoError(t, err)

	names := make([]string, 0, schema.MaxProjectBanners)
	for i := 0; i < schema.MaxProjectBanners; i++ {
		names = append(names, fmt.Sprintf("banner-%d.png", i))
	}

	req, err := uploadBanners(admin, project.Id, names...)
	require.NoError(t, err)
	require.NoError(t, req.Do(nil))

	// One more pushes past the cap and is rejected.
	req, err = uploadBanners(admin, project.Id, "overflow.png")
	require.NoError(t, err)
	envelope, status, err := req.DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, envelope.Message, "banner")

	var count int64
	require.NoError(t, env.db.Model(&schema.ProjectBanner{}).
		Where("project_id = ?", project.Id).Count(&count).Error)
	assert.Equal(t, int64(schema.MaxProjectBanners), count)
}

func TestProjectBannerRemove(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{"name": "Removable Banners"})
	require.NoError(t, err)

	req, err := uploadBanners(admin, project.Id, "keep.png", "drop.png")
	require.NoError(t, err)
	require.NoError(t, req.Do(nil))

	var banners []schema.ProjectBanner
	require.NoError(t, env.db.Find(&banners, "project_id = ?", project.Id).Error)
	require.Len(t, banners, 2)

	require.NoError(t, admin.Delete(fmt.Sprintf("/project/%v/banners/%v", project.Id, banners[0].Id)).Do(nil))

	var count int64
	require.NoError(t, env.db.Model(&schema.ProjectBanner{}).
		Where("project_id = ?", project.Id).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Removing it again is a 404.
	_, status, err := admin.Delete(fmt.Sprintf("/project/%v/banners/%v", project.Id, banners[0].Id)).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}
