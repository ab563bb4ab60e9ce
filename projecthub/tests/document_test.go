package tests

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"testing"

	"bytes"

	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documentResponse struct {
	Id       string `json:"id"`
	FileName string `json:"fileName"`
	FileUrl  string `json:"fileUrl"`
	Status   string `json:"status"`
}

func (c *client) uploadDocument(endpoint, filename string, content []byte, fields map[string]string) (*httpTestRequest, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return c.Post(endpoint).Body(body).Header("Content-Type", writer.FormDataContentType()), nil
}

func TestDocumentUploadAndStatus(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{"name": "Doc Project"})
	require.NoError(t, err)

	req, err := admin.uploadDocument(fmt.Sprintf("/document/project/%v/upload", project.Id), "contract.pdf", []byte("pdf bytes"), nil)
	require.NoError(t, err)

	var uploaded documentResponse
	require.NoError(t, req.Do(&uploaded))
	assert.Equal(t, "contract.pdf", uploaded.FileName)
	assert.Equal(t, schema.DocumentStatusPending, uploaded.Status)
	assert.NotEmpty(t, uploaded.FileUrl)

	var listed []documentResponse
	require.NoError(t, admin.Get(fmt.Sprintf("/document/project/%v/list", project.Id)).Do(&listed))
	require.Len(t, listed, 1)

	require.NoError(t, admin.Post(fmt.Sprintf("/document/%v/status", uploaded.Id)).Json(map[string]string{
		"status": schema.DocumentStatusApproved,
	}).Do(nil))

	require.NoError(t, admin.Get(fmt.Sprintf("/document/project/%v/list", project.Id)).Do(&listed))
	assert.Equal(t, schema.DocumentStatusApproved, listed[0].Status)

	// Invalid statuses are rejected.
	_, status, err := admin.Post(fmt.Sprintf("/document/%v/status", uploaded.Id)).Json(map[string]string{
		"status": "shredded",
	}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	require.NoError(t, admin.Delete(fmt.Sprintf("/document/%v/delete", uploaded.Id)).Do(nil))

	require.NoError(t, admin.Get(fmt.Sprintf("/document/project/%v/list", project.Id)).Do(&listed))
	assert.Empty(t, listed)
}

func TestDocumentUploadNotifiesRecipients(t *testing.T) {
	env := setupTestEnv(t)

	member, err := env.newUser("doc_member")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{
		"name":    "Doc Notify Project",
		"members": []string{member.userId},
	})
	require.NoError(t, err)

	req, err := member.uploadDocument(fmt.Sprintf("/document/project/%v/upload", project.Id), "site-plan.pdf", []byte("plan"), nil)
	require.NoError(t, err)
	require.NoError(t, req.Do(nil))

	notifications, err := member.notifications()
	require.NoError(t, err)

	types := make([]string, 0, len(notifications))
	for _, n := range notifications {
		types = append(types, n["type"].(string))
	}
	assert.Contains(t, types, "document_created")
}

func TestUserDocumentLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{"name": "User Doc Project"})
	require.NoError(t, err)

	req, err := admin.uploadDocument(fmt.Sprintf("/user-document/project/%v/upload", project.Id), "license.png", []byte("png"), nil)
	require.NoError(t, err)

	var uploaded documentResponse
	require.NoError(t, req.Do(&uploaded))
	assert.Equal(t, "license.png", uploaded.FileName)

	var listed []documentResponse
	require.NoError(t, admin.Get(fmt.Sprintf("/user-document/project/%v/list", project.Id)).Do(&listed))
	require.Len(t, listed, 1)

	require.NoError(t, admin.Delete(fmt.Sprintf("/user-document/%v/delete", uploaded.Id)).Do(nil))

	require.NoError(t, admin.Get(fmt.Sprintf("/user-document/project/%v/list", project.Id)).Do(&listed))
	assert.Empty(t, listed)
}

func TestFinanceDocumentValidation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{"name": "Finance Project"})
	require.NoError(t, err)

	req, err := admin.uploadDocument(fmt.Sprintf("/finance/project/%v/upload", project.Id), "budget.xlsx", []byte("xlsx"), map[string]string{
		"reference":          "INV-001",
		"financialExecution": "45.5",
		"physicalExecution":  "30",
	})
	require.NoError(t, err)

	type financeResponse struct {
		Id        string  `json:"id"`
		Reference string  `json:"reference"`
		Financial float64 `json:"financialExecution"`
	}

	var uploaded financeResponse
	require.NoError(t, req.Do(&uploaded))
	assert.Equal(t, "INV-001", uploaded.Reference)
	assert.Equal(t, 45.5, uploaded.Financial)

	// Execution percentages outside 0-100 are rejected.
	req, err = admin.uploadDocument(fmt.Sprintf("/finance/project/%v/upload", project.Id), "bad.xlsx", []byte("xlsx"), map[string]string{
		"financialExecution": "130",
	})
	require.NoError(t, err)
	_, status, err := req.DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	_, status, err = admin.Post(fmt.Sprintf("/finance/%v/update", uploaded.Id)).Json(map[string]interface{}{
		"physicalExecution": -5,
	}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	require.NoError(t, admin.Post(fmt.Sprintf("/finance/%v/update", uploaded.Id)).Json(map[string]interface{}{
		"physicalExecution": 60,
	}).Do(nil))

	// Only the valid upload exists, with the accepted update applied.
	var documents []schema.FinanceDocument
	require.NoError(t, env.db.Find(&documents, "project_id = ?", project.Id).Error)
	require.Len(t, documents, 1)
	assert.Equal(t, 60.0, documents[0].PhysicalExecution)
}

func TestReviewOnePerUserPerProject(t *testing.T) {
	env := setupTestEnv(t)

	member, err := env.newUser("review_member")
	require.NoError(t, err)

	admin, err := env.adminClient()
	require.NoError(t, err)

	project, err := admin.createProject(map[string]interface{}{
		"name":    "Review Project",
		"members": []string{member.userId},
	})
	require.NoError(t, err)

	require.NoError(t, member.Post(fmt.Sprintf("/review/project/%v/create", project.Id)).Json(map[string]interface{}{
		"message": "Solid delivery",
		"rating":  5,
	}).Do(nil))

	// A second review from the same user is rejected.
	_, status, err := member.Post(fmt.Sprintf("/review/project/%v/create", project.Id)).Json(map[string]interface{}{
		"message": "Changed my mind",
		"rating":  2,
	}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	// Ratings outside 1-5 are rejected.
	_, status, err = admin.Post(fmt.Sprintf("/review/project/%v/create", project.Id)).Json(map[string]interface{}{
		"rating": 9,
	}).DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	type reviewResponse struct {
		UserName string `json:"userName"`
		Rating   int    `json:"rating"`
	}

	var reviews []reviewResponse
	require.NoError(t, member.Get(fmt.Sprintf("/review/project/%v/list", project.Id)).Do(&reviews))
	require.Len(t, reviews, 1)
	assert.Equal(t, "review_member", reviews[0].UserName)
	assert.Equal(t, 5, reviews[0].Rating)

	// Only admins can list across projects.
	_, status, err = member.Get("/review/list").DoRaw()
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	require.NoError(t, admin.Get("/review/list").Do(&reviews))
	assert.Len(t, reviews, 1)
}
