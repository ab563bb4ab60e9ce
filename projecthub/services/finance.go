package services

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
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

type FinanceService struct {
	db         *gorm.DB
	userAuth   auth.IdentityProvider
	dispatcher *notify.Dispatcher
	store      storage.ObjectStore
}

func (s *FinanceService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Route("/project/{project_id}", func(r chi.Router) {
		r.Use(auth.ProjectAccessOnly(s.db, auth.MemberAccess))
		r.Post("/upload", s.Upload)
		r.Get("/list", s.List)
	})

	r.Post("/{document_id}/update", s.Update)
	r.Delete("/{document_id}/delete", s.Delete)

	return r
}

type financeDocumentInfo struct {
	Id         uuid.UUID `json:"id"`
	ProjectId  uuid.UUID `json:"projectId"`
	Reference  string    `json:"reference"`
	FileName   string    `json:"fileName"`
	FileUrl    string    `json:"fileUrl"`
	Financial  float64   `json:"financialExecution"`
	Physical   float64   `json:"physicalExecution"`
	UploadedBy uuid.UUID `json:"uploadedBy"`
}

func convertFinanceDocument(document schema.FinanceDocument) financeDocumentInfo {
	return financeDocumentInfo{
		Id:         document.Id,
		ProjectId:  document.ProjectId,
		Reference:  document.Reference,
		FileName:   document.FileName,
		FileUrl:    document.FileUrl,
		Financial:  document.FinancialExecution,
		Physical:   document.PhysicalExecution,
		UploadedBy: document.UploadedBy,
	}
}

func parseExecution(r *http.Request, field string) (float64, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, CodedError(fmt.Errorf("invalid value '%v' for %v", raw, field), http.StatusBadRequest)
	}
	if !validExecution(value) {
		return 0, CodedError(fmt.Errorf("%v must be between 0 and 100", field), http.StatusBadRequest)
	}
	return value, nil
}

func (s *FinanceService) Upload(w http.ResponseWriter, r *http.Request) {
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

	result, fileName, err := uploadFile(r, s.store, "file", fmt.Sprintf("projects/%v/finance", projectId))
	if err != nil {
		writeError(w, err)
		return
	}

	financial, err := parseExecution(r, "financialExecution")
	if err != nil {
		writeError(w, err)
		return
	}
	physical, err := parseExecution(r, "physicalExecution")
	if err != nil {
		writeError(w, err)
		return
	}

	document := schema.FinanceDocument{
		Id:                 uuid.New(),
		ProjectId:          projectId,
		Reference:          r.FormValue("reference"),
		FileName:           fileName,
		FileUrl:            result.Url,
		FinancialExecution: financial,
		PhysicalExecution:  physical,
		UploadedBy:         user.Id,
		CreatedAt:          time.Now().UTC(),
	}
	if result := s.db.Create(&document); result.Error != nil {
		writeError(w, dbError("create finance document", result.Error))
		return
	}

	notifyProjectEvent(s.db, s.dispatcher, projectId, notify.EventCreated, notify.EntityFinanceDocument, fileName, user)

	utils.WriteJsonResponse(w, http.StatusCreated, convertFinanceDocument(document), "finance document uploaded")
}

func (s *FinanceService) List(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	var documents []schema.FinanceDocument
	if result := s.db.Order("created_at desc").Find(&documents, "project_id = ?", projectId); result.Error != nil {
		writeError(w, dbError("list finance documents", result.Error))
		return
	}

	infos := make([]financeDocumentInfo, 0, len(documents))
	for _, document := range documents {
		infos = append(infos, convertFinanceDocument(document))
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "finance documents retrieved")
}

type financeUpdateRequest struct {
	Reference *string  `json:"reference"`
	Financial *float64 `json:"financialExecution"`
	Physical  *float64 `json:"physicalExecution"`
}

func (s *FinanceService) Update(w http.ResponseWriter, r *http.Request) {
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

	var params financeUpdateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Financial != nil && !validExecution(*params.Financial) {
		utils.WriteError(w, http.StatusBadRequest, errors.New("financial execution must be between 0 and 100"))
		return
	}
	if params.Physical != nil && !validExecution(*params.Physical) {
		utils.WriteError(w, http.StatusBadRequest, errors.New("physical execution must be between 0 and 100"))
		return
	}

	var document schema.FinanceDocument
	var changed bool

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.First(&document, "id = ?", documentId)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return CodedError(schema.ErrDocumentNotFound, http.StatusNotFound)
			}
			return dbError("get finance document", result.Error)
		}

		if params.Reference != nil && *params.Reference != document.Reference {
			document.Reference = *params.Reference
			changed = true
		}
		if params.Financial != nil && *params.Financial != document.FinancialExecution {
			document.FinancialExecution = *params.Financial
			changed = true
		}
		if params.Physical != nil && *params.Physical != document.PhysicalExecution {
			document.PhysicalExecution = *params.Physical
			changed = true
		}

		if !changed {
			return nil
		}

		document.UpdatedAt = time.Now().UTC()
		if result := txn.Save(&document); result.Error != nil {
			return dbError("update finance document", result.Error)
		}
		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	if changed {
		notifyProjectEvent(s.db, s.dispatcher, document.ProjectId, notify.EventUpdated, notify.EntityFinanceDocument, document.FileName, user)
	}

	utils.WriteJsonResponse(w, http.StatusOK, convertFinanceDocument(document), "finance document updated")
}

func (s *FinanceService) Delete(w http.ResponseWriter, r *http.Request) {
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

	var document schema.FinanceDocument
	result := s.db.First(&document, "id = ?", documentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, schema.ErrDocumentNotFound)
			return
		}
		writeError(w, dbError("get finance document", result.Error))
		return
	}

	if result := s.db.Delete(&schema.FinanceDocument{}, "id = ?", documentId); result.Error != nil {
		writeError(w, dbError("delete finance document", result.Error))
		return
	}

	notifyProjectEvent(s.db, s.dispatcher, document.ProjectId, notify.EventDeleted, notify.EntityFinanceDocument, document.FileName, user)

	utils.WriteSuccess(w, "finance document deleted")
}
