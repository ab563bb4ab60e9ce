package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/notify"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/projecthub/storage"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentService struct {
	db         *gorm.DB
	userAuth   auth.IdentityProvider
	dispatcher *notify.Dispatcher
	store      storage.ObjectStore
}

func (s *DocumentService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Route("/project/{project_id}", func(r chi.Router) {
		r.Use(auth.ProjectAccessOnly(s.db, auth.MemberAccess))
		r.Post("/upload", s.Upload)
		r.Get("/list", s.List)
	})

	r.Post("/{document_id}/status", s.UpdateStatus)
	r.Delete("/{document_id}/delete", s.Delete)

	return r
}

type documentInfo struct {
	Id         uuid.UUID `json:"id"`
	ProjectId  uuid.UUID `json:"projectId"`
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	FileUrl    string    `json:"fileUrl"`
	Status     string    `json:"status"`
	UploadedBy uuid.UUID `json:"uploadedBy"`
}

func convertDocument(document schema.Document) documentInfo {
	return documentInfo{
		Id:         document.Id,
		ProjectId:  document.ProjectId,
		FileName:   document.FileName,
		FileSize:   document.FileSize,
		FileUrl:    document.FileUrl,
		Status:     document.Status,
		UploadedBy: document.UploadedBy,
	}
}

// uploadFile stores one multipart file under the given prefix and returns
// the upload result.
func uploadFile(r *http.Request, store storage.ObjectStore, field, prefix string) (storage.UploadResult, string, error) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		return storage.UploadResult{}, "", CodedError(fmt.Errorf("error parsing multipart form: %w", err), http.StatusBadRequest)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return storage.UploadResult{}, "", CodedError(fmt.Errorf("missing '%v' file in request", field), http.StatusBadRequest)
	}
	defer file.Close()

	key := fmt.Sprintf("%v/%v-%v", prefix, uuid.New().String()[:8], header.Filename)
	result, err := store.Upload(key, file)
	if err != nil {
		return storage.UploadResult{}, "", CodedError(errors.New("error storing uploaded file"), http.StatusInternalServerError)
	}

	return result, header.Filename, nil
}

func (s *DocumentService) notifyProject(projectId uuid.UUID, kind notify.EventKind, entity notify.EntityKind, name string, performer schema.User) {
	notifyProjectEvent(s.db, s.dispatcher, projectId, kind, entity, name, performer)
}

// notifyProjectEvent is the shared fan-out used by the document, finance and
// review flows: in-app records for all project recipients, then async push
// and email delivery.
func notifyProjectEvent(db *gorm.DB, dispatcher *notify.Dispatcher, projectId uuid.UUID, kind notify.EventKind, entity notify.EntityKind, name string, performer schema.User) {
	project, err := schema.GetProject(projectId, db, true)
	if err != nil {
		slog.Error("error loading project for notification fan-out", "project_id", projectId, "error", err)
		return
	}

	event := notify.Event{
		Kind:          kind,
		Entity:        entity,
		EntityName:    name,
		ProjectId:     &project.Id,
		ProjectName:   project.Name,
		PerformedBy:   performer.Id,
		PerformerName: performer.UserName,
	}

	recipients, err := notify.ProjectRecipients(project, performer.Id, db)
	if err != nil {
		slog.Error("error resolving notification recipients", "project_id", projectId, "error", err)
		return
	}

	if err := dispatcher.InAppRecords(db, event, recipients); err != nil {
		slog.Error("error recording notifications", "project_id", projectId, "type", event.Type(), "error", err)
	}
	dispatcher.DispatchAsync(event, recipients)
}

func (s *DocumentService) Upload(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	result, fileName, err := uploadFile(r, s.store, "file", fmt.Sprintf("projects/%v/documents", projectId))
	if err != nil {
		writeError(w, err)
		return
	}

	document := schema.Document{
		Id:         uuid.New(),
		ProjectId:  projectId,
		FileName:   fileName,
		FileSize:   result.Size,
		FileUrl:    result.Url,
		Status:     schema.DocumentStatusPending,
		UploadedBy: user.Id,
		CreatedAt:  time.Now().UTC(),
	}

	if result := s.db.Create(&document); result.Error != nil {
		writeError(w, dbError("create document", result.Error))
		return
	}

	s.notifyProject(projectId, notify.EventCreated, notify.EntityDocument, fileName, user)

	utils.WriteJsonResponse(w, http.StatusCreated, convertDocument(document), "document uploaded")
}

func (s *DocumentService) List(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	var documents []schema.Document
	query := s.db.Order("created_at desc")
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if result := query.Find(&documents, "project_id = ?", projectId); result.Error != nil {
		writeError(w, dbError("list documents", result.Error))
		return
	}

	infos := make([]documentInfo, 0, len(documents))
	for _, document := range documents {
		infos = append(infos, convertDocument(document))
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "documents retrieved")
}

type documentStatusRequest struct {
	Status string `json:"status"`
}

func (s *DocumentService) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var params documentStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !schema.ValidDocumentStatus(params.Status) {
		utils.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid document status '%v'", params.Status))
		return
	}

	var document schema.Document
	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.First(&document, "id = ?", documentId)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return CodedError(schema.ErrDocumentNotFound, http.StatusNotFound)
			}
			return dbError("get document", result.Error)
		}

		if document.Status == params.Status {
			return nil
		}

		result = txn.Model(&schema.Document{}).Where("id = ?", documentId).
			Updates(map[string]interface{}{"status": params.Status, "updated_at": time.Now().UTC()})
		if result.Error != nil {
			return dbError("update document status", result.Error)
		}
		document.Status = params.Status
		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	s.notifyProject(document.ProjectId, notify.EventUpdated, notify.EntityDocument, document.FileName, user)

	utils.WriteJsonResponse(w, http.StatusOK, convertDocument(document), "document status updated")
}

func (s *DocumentService) Delete(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var document schema.Document
	result := s.db.First(&document, "id = ?", documentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, schema.ErrDocumentNotFound)
			return
		}
		writeError(w, dbError("get document", result.Error))
		return
	}

	if result := s.db.Delete(&schema.Document{}, "id = ?", documentId); result.Error != nil {
		writeError(w, dbError("delete document", result.Error))
		return
	}

	s.notifyProject(document.ProjectId, notify.EventDeleted, notify.EntityDocument, document.FileName, user)

	utils.WriteSuccess(w, "document deleted")
}

type UserDocumentService struct {
	db         *gorm.DB
	userAuth   auth.IdentityProvider
	dispatcher *notify.Dispatcher
	store      storage.ObjectStore
}

func (s *UserDocumentService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Route("/project/{project_id}", func(r chi.Router) {
		r.Use(auth.ProjectAccessOnly(s.db, auth.MemberAccess))
		r.Post("/upload", s.Upload)
		r.Get("/list", s.List)
	})

	r.Delete("/{document_id}/delete", s.Delete)

	return r
}

type userDocumentInfo struct {
	Id         uuid.UUID `json:"id"`
	ProjectId  uuid.UUID `json:"projectId"`
	FileName   string    `json:"fileName"`
	FileUrl    string    `json:"fileUrl"`
	UploadedBy uuid.UUID `json:"uploadedBy"`
}

func (s *UserDocumentService) Upload(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	result, fileName, err := uploadFile(r, s.store, "file", fmt.Sprintf("projects/%v/user-documents", projectId))
	if err != nil {
		writeError(w, err)
		return
	}

	document := schema.UserDocument{
		Id:         uuid.New(),
		ProjectId:  projectId,
		FileName:   fileName,
		FileUrl:    result.Url,
		UploadedBy: user.Id,
		CreatedAt:  time.Now().UTC(),
	}
	if result := s.db.Create(&document); result.Error != nil {
		writeError(w, dbError("create user document", result.Error))
		return
	}

	notifyProjectEvent(s.db, s.dispatcher, projectId, notify.EventCreated, notify.EntityUserDocument, fileName, user)

	info := userDocumentInfo{Id: document.Id, ProjectId: projectId, FileName: fileName, FileUrl: result.Url, UploadedBy: user.Id}
	utils.WriteJsonResponse(w, http.StatusCreated, info, "document uploaded")
}

func (s *UserDocumentService) List(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	var documents []schema.UserDocument
	if result := s.db.Order("created_at desc").Find(&documents, "project_id = ?", projectId); result.Error != nil {
		writeError(w, dbError("list user documents", result.Error))
		return
	}

	infos := make([]userDocumentInfo, 0, len(documents))
	for _, document := range documents {
		infos = append(infos, userDocumentInfo{
			Id: document.Id, ProjectId: document.ProjectId, FileName: document.FileName,
			FileUrl: document.FileUrl, UploadedBy: document.UploadedBy,
		})
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "documents retrieved")
}

func (s *UserDocumentService) Delete(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var document schema.UserDocument
	result := s.db.First(&document, "id = ?", documentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, schema.ErrDocumentNotFound)
			return
		}
		writeError(w, dbError("get user document", result.Error))
		return
	}

	if result := s.db.Delete(&schema.UserDocument{}, "id = ?", documentId); result.Error != nil {
		writeError(w, dbError("delete user document", result.Error))
		return
	}

	notifyProjectEvent(s.db, s.dispatcher, document.ProjectId, notify.EventDeleted, notify.EntityUserDocument, document.FileName, user)

	utils.WriteSuccess(w, "document deleted")
}
