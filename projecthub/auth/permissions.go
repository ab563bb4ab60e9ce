package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin {
				http.Error(w, fmt.Sprintf("user %v is not an admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// SelfOrAdminOnly guards endpoints keyed by a {user_id} url param so users
// can only manage their own resources unless they are an admin.
func SelfOrAdminOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			userId, err := utils.URLParamUUID(r, "user_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin && user.Id != userId {
				http.Error(w, "user can only access their own resources", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

type projectPermission int // Private so that no other permissions can be defined

const (
	NoAccess     projectPermission = 0
	MemberAccess projectPermission = 1
	OwnerAccess  projectPermission = 2
)

// GetProjectPermissions determines whether a user can see a project: admins
// see everything, owners and members see their projects, and other users see
// projects in one of their assigned business areas.
func GetProjectPermissions(project schema.Project, user schema.User, db *gorm.DB) (projectPermission, error) {
	if user.IsAdmin {
		return OwnerAccess, nil
	}

	for _, owner := range project.Owners {
		if owner.OwnerId == user.Id {
			return OwnerAccess, nil
		}
	}

	for _, member := range project.Members {
		if member.UserId == user.Id {
			return MemberAccess, nil
		}
	}

	if project.BusinessArea != "" {
		var count int64
		result := db.Model(&schema.UserBusinessArea{}).
			Joins("JOIN business_areas ON business_areas.id = user_business_areas.business_area_id").
			Where("user_business_areas.user_id = ? AND business_areas.name = ?", user.Id, project.BusinessArea).
			Count(&count)
		if result.Error != nil {
			slog.Error("sql error checking business area access", "user_id", user.Id, "error", result.Error)
			return NoAccess, schema.ErrDbAccessFailed
		}
		if count > 0 {
			return MemberAccess, nil
		}
	}

	return NoAccess, nil
}

func projectFromRequest(r *http.Request, db *gorm.DB) (schema.Project, error) {
	var projectId uuid.UUID
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		return schema.Project{}, err
	}
	return schema.GetProject(projectId, db, true)
}

func ProjectAccessOnly(db *gorm.DB, minPermission projectPermission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			project, err := projectFromRequest(r, db)
			if err != nil {
				if err == schema.ErrProjectNotFound {
					http.Error(w, err.Error(), http.StatusNotFound)
					return
				}
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			permission, err := GetProjectPermissions(project, user, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if permission < minPermission {
				http.Error(w, fmt.Sprintf("user %v does not have access to project %v", user.Id, project.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
