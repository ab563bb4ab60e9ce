package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *RoleService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))
		r.Post("/create", s.Create)
		r.Post("/{role_id}/update", s.Update)
		r.Delete("/{role_id}/delete", s.Delete)
	})

	return r
}

type roleInfo struct {
	Id                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	CanManageProjects bool      `json:"canManageProjects"`
	CanManageUsers    bool      `json:"canManageUsers"`
	CanManageFinance  bool      `json:"canManageFinance"`
}

func convertRole(role schema.Role) roleInfo {
	return roleInfo{
		Id:                role.Id,
		Name:              role.Name,
		CanManageProjects: role.CanManageProjects,
		CanManageUsers:    role.CanManageUsers,
		CanManageFinance:  role.CanManageFinance,
	}
}

type roleRequest struct {
	Name              string `json:"name"`
	CanManageProjects bool   `json:"canManageProjects"`
	CanManageUsers    bool   `json:"canManageUsers"`
	CanManageFinance  bool   `json:"canManageFinance"`
}

func (s *RoleService) Create(w http.ResponseWriter, r *http.Request) {
	var params roleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, errors.New("role name must be specified"))
		return
	}

	role := schema.Role{
		Id:                uuid.New(),
		Name:              params.Name,
		CanManageProjects: params.CanManageProjects,
		CanManageUsers:    params.CanManageUsers,
		CanManageFinance:  params.CanManageFinance,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing int64
		result := txn.Model(&schema.Role{}).Where("name = ?", params.Name).Count(&existing)
		if result.Error != nil {
			return dbError("check role name", result.Error)
		}
		if existing > 0 {
			return CodedError(fmt.Errorf("role '%v' already exists", params.Name), http.StatusBadRequest)
		}

		if result := txn.Create(&role); result.Error != nil {
			return dbError("create role", result.Error)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, convertRole(role), "role created")
}

func (s *RoleService) List(w http.ResponseWriter, r *http.Request) {
	var roles []schema.Role
	if result := s.db.Order("name asc").Find(&roles); result.Error != nil {
		writeError(w, dbError("list roles", result.Error))
		return
	}

	infos := make([]roleInfo, 0, len(roles))
	for _, role := range roles {
		infos = append(infos, convertRole(role))
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "roles retrieved")
}

func (s *RoleService) Update(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	var params roleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var role schema.Role

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.First(&role, "id = ?", roleId)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return CodedError(schema.ErrRoleNotFound, http.StatusNotFound)
			}
			return dbError("get role", result.Error)
		}

		if params.Name != "" && params.Name != role.Name {
			var existing int64
			result := txn.Model(&schema.Role{}).Where("name = ? AND id <> ?", params.Name, roleId).Count(&existing)
			if result.Error != nil {
				return dbError("check role name", result.Error)
			}
			if existing > 0 {
				return CodedError(fmt.Errorf("role '%v' already exists", params.Name), http.StatusBadRequest)
			}
			role.Name = params.Name
		}
		role.CanManageProjects = params.CanManageProjects
		role.CanManageUsers = params.CanManageUsers
		role.CanManageFinance = params.CanManageFinance

		if result := txn.Save(&role); result.Error != nil {
			return dbError("update role", result.Error)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, convertRole(role), "role updated")
}

func (s *RoleService) Delete(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Model(&schema.User{}).Where("role_id = ?", roleId).Update("role_id", nil)
		if result.Error != nil {
			return dbError("detach role from users", result.Error)
		}
		result = txn.Model(&schema.BusinessArea{}).Where("role_id = ?", roleId).Update("role_id", nil)
		if result.Error != nil {
			return dbError("detach role from business areas", result.Error)
		}

		result = txn.Delete(&schema.Role{}, "id = ?", roleId)
		if result.Error != nil {
			return dbError("delete role", result.Error)
		}
		if result.RowsAffected == 0 {
			return CodedError(schema.ErrRoleNotFound, http.StatusNotFound)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "role deleted")
}
