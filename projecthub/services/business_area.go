package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/notify"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BusinessAreaService struct {
	db         *gorm.DB
	userAuth   auth.IdentityProvider
	dispatcher *notify.Dispatcher
}

func (s *BusinessAreaService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))
		r.Post("/create", s.Create)
		r.Post("/{business_area_id}/update", s.Update)
		r.Delete("/{business_area_id}/delete", s.Delete)
	})

	return r
}

type businessAreaInfo struct {
	Id     uuid.UUID  `json:"id"`
	Name   string     `json:"name"`
	RoleId *uuid.UUID `json:"roleId"`
}

func convertBusinessArea(area schema.BusinessArea) businessAreaInfo {
	return businessAreaInfo{Id: area.Id, Name: area.Name, RoleId: area.RoleId}
}

// notifyAdmins fans a business area event out to every admin user.
// Failures here must not fail the request that triggered them.
func (s *BusinessAreaService) notifyAdmins(kind notify.EventKind, name string, performer schema.User) {
	recipients, err := notify.AdminRecipients(s.db)
	if err != nil {
		return
	}

	event := notify.Event{
		Kind:          kind,
		Entity:        notify.EntityBusinessArea,
		EntityName:    name,
		PerformedBy:   performer.Id,
		PerformerName: performer.UserName,
	}

	if err := s.dispatcher.InAppRecords(s.db, event, recipients); err != nil {
		return
	}
	s.dispatcher.DispatchAsync(event, recipients)
}

type businessAreaRequest struct {
	Name   string     `json:"name"`
	RoleId *uuid.UUID `json:"roleId"`
}

func (s *BusinessAreaService) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var params businessAreaRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, errors.New("business area name must be specified"))
		return
	}

	area := schema.BusinessArea{Id: uuid.New(), Name: params.Name, RoleId: params.RoleId}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existing int64
		result := txn.Model(&schema.BusinessArea{}).Where("name = ?", params.Name).Count(&existing)
		if result.Error != nil {
			return dbError("check business area name", result.Error)
		}
		if existing > 0 {
			return CodedError(fmt.Errorf("business area '%v' already exists", params.Name), http.StatusBadRequest)
		}

		if result := txn.Create(&area); result.Error != nil {
			return dbError("create business area", result.Error)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.notifyAdmins(notify.EventCreated, area.Name, user)

	utils.WriteJsonResponse(w, http.StatusCreated, convertBusinessArea(area), "business area created")
}

func (s *BusinessAreaService) List(w http.ResponseWriter, r *http.Request) {
	var areas []schema.BusinessArea
	if result := s.db.Order("name asc").Find(&areas); result.Error != nil {
		writeError(w, dbError("list business areas", result.Error))
		return
	}

	infos := make([]businessAreaInfo, 0, len(areas))
	for _, area := range areas {
		infos = append(infos, convertBusinessArea(area))
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "business areas retrieved")
}

func (s *BusinessAreaService) Update(w http.ResponseWriter, r *http.Request) {
	areaId, err := utils.URLParamUUID(r, "business_area_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var params businessAreaRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var area schema.BusinessArea
	var changed bool

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.First(&area, "id = ?", areaId)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return CodedError(schema.ErrBusinessAreaNotFound, http.StatusNotFound)
			}
			return dbError("get business area", result.Error)
		}

		if params.Name != "" && params.Name != area.Name {
			var existing int64
			result := txn.Model(&schema.BusinessArea{}).
				Where("name = ? AND id <> ?", params.Name, areaId).
				Count(&existing)
			if result.Error != nil {
				return dbError("check business area name", result.Error)
			}
			if existing > 0 {
				return CodedError(fmt.Errorf("business area '%v' already exists", params.Name), http.StatusBadRequest)
			}
			area.Name = params.Name
			changed = true
		}
		if params.RoleId != nil {
			area.RoleId = params.RoleId
			changed = true
		}

		if !changed {
			return nil
		}
		if result := txn.Save(&area); result.Error != nil {
			return dbError("update business area", result.Error)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if changed {
		s.notifyAdmins(notify.EventUpdated, area.Name, user)
	}

	utils.WriteJsonResponse(w, http.StatusOK, convertBusinessArea(area), "business area updated")
}

func (s *BusinessAreaService) Delete(w http.ResponseWriter, r *http.Request) {
	areaId, err := utils.URLParamUUID(r, "business_area_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var area schema.BusinessArea
	result := s.db.First(&area, "id = ?", areaId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, schema.ErrBusinessAreaNotFound)
			return
		}
		writeError(w, dbError("get business area", result.Error))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if result := txn.Delete(&schema.UserBusinessArea{}, "business_area_id = ?", areaId); result.Error != nil {
			return dbError("delete business area memberships", result.Error)
		}
		if result := txn.Delete(&schema.BusinessArea{}, "id = ?", areaId); result.Error != nil {
			return dbError("delete business area", result.Error)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.notifyAdmins(notify.EventDeleted, area.Name, user)

	utils.WriteSuccess(w, "business area deleted")
}
