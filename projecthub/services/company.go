package services

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CompanyService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *CompanyService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))
		r.Post("/create", s.Create)
		r.Post("/{company_id}/update", s.Update)
		r.Delete("/{company_id}/delete", s.Delete)
	})

	return r
}

type companyInfo struct {
	Id   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type companyRequest struct {
	Name string `json:"name"`
}

func (s *CompanyService) Create(w http.ResponseWriter, r *http.Request) {
	var params companyRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, errors.New("company name must be specified"))
		return
	}

	company := schema.Company{Id: uuid.New(), Name: params.Name, CreatedAt: time.Now().UTC()}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing int64
		result := txn.Model(&schema.Company{}).Where("name = ?", params.Name).Count(&existing)
		if result.Error != nil {
			return dbError("check company name", result.Error)
		}
		if existing > 0 {
			return CodedError(fmt.Errorf("company '%v' already exists", params.Name), http.StatusBadRequest)
		}

		if result := txn.Create(&company); result.Error != nil {
			return dbError("create company", result.Error)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, companyInfo{Id: company.Id, Name: company.Name}, "company created")
}

func (s *CompanyService) List(w http.ResponseWriter, r *http.Request) {
	var companies []schema.Company
	if result := s.db.Order("name asc").Find(&companies); result.Error != nil {
		writeError(w, dbError("list companies", result.Error))
		return
	}

	infos := make([]companyInfo, 0, len(companies))
	for _, company := range companies {
		infos = append(infos, companyInfo{Id: company.Id, Name: company.Name})
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "companies retrieved")
}

func (s *CompanyService) Update(w http.ResponseWriter, r *http.Request) {
	companyId, err := utils.URLParamUUID(r, "company_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	var params companyRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, errors.New("company name must be specified"))
		return
	}

	var company schema.Company

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.First(&company, "id = ?", companyId)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return CodedError(schema.ErrCompanyNotFound, http.StatusNotFound)
			}
			return dbError("get company", result.Error)
		}

		if params.Name != company.Name {
			var existing int64
			result := txn.Model(&schema.Company{}).Where("name = ? AND id <> ?", params.Name, companyId).Count(&existing)
			if result.Error != nil {
				return dbError("check company name", result.Error)
			}
			if existing > 0 {
				return CodedError(fmt.Errorf("company '%v' already exists", params.Name), http.StatusBadRequest)
			}
			company.Name = params.Name
			if result := txn.Save(&company); result.Error != nil {
				return dbError("update company", result.Error)
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, companyInfo{Id: company.Id, Name: company.Name}, "company updated")
}

func (s *CompanyService) Delete(w http.ResponseWriter, r *http.Request) {
	companyId, err := utils.URLParamUUID(r, "company_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	result := s.db.Delete(&schema.Company{}, "id = ?", companyId)
	if result.Error != nil {
		writeError(w, dbError("delete company", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		utils.WriteError(w, http.StatusNotFound, schema.ErrCompanyNotFound)
		return
	}

	utils.WriteSuccess(w, "company deleted")
}
