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

type UserService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if s.userAuth.AllowDirectSignup() {
			r.Post("/signup", s.Signup)
		}

		r.Get("/login", s.LoginWithEmail)
		r.Post("/login-with-token", s.LoginWithToken)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/list", s.List)
		r.Get("/info", s.Info)
		r.Post("/fcm-token", s.UpdateFcmToken)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly(s.db))

		r.Post("/create", s.CreateUser)

		r.Delete("/{user_id}", s.DeleteUser)

		r.Post("/{user_id}/admin", s.PromoteAdmin)
		r.Delete("/{user_id}/admin", s.DemoteAdmin)

		r.Post("/{user_id}/update", s.Update)
	})

	return r
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	UserId uuid.UUID `json:"userId"`
}

func (s *UserService) Signup(w http.ResponseWriter, r *http.Request) {
	var params signupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if !s.userAuth.AllowDirectSignup() {
		utils.WriteError(w, http.StatusBadRequest, errors.New("direct signup is not supported for this identity provider"))
		return
	}

	userId, err := s.userAuth.CreateUser(params.Username, params.Email, params.Password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrEmailAlreadyInUse):
			responseCode = http.StatusConflict
		case errors.Is(err, auth.ErrUsernameAlreadyInUse):
			responseCode = http.StatusConflict
		}
		utils.WriteError(w, responseCode, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, signupResponse{UserId: userId}, "user registered")
}

type loginResponse struct {
	UserId      uuid.UUID `json:"userId"`
	AccessToken string    `json:"accessToken"`
}

func (s *UserService) LoginWithEmail(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, errors.New("missing or invalid Authorization header"))
		return
	}

	login, err := s.userAuth.LoginWithEmail(email, password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrUserNotFoundWithEmail):
			responseCode = http.StatusNotFound
		case errors.Is(err, auth.ErrInvalidCredentials):
			responseCode = http.StatusUnauthorized
		}
		utils.WriteError(w, responseCode, fmt.Errorf("login failed: %w", err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, loginResponse{UserId: login.UserId, AccessToken: login.AccessToken}, "login successful")
}

type loginWithTokenRequest struct {
	AccessToken string `json:"accessToken"`
}

func (s *UserService) LoginWithToken(w http.ResponseWriter, r *http.Request) {
	var params loginWithTokenRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	login, err := s.userAuth.LoginWithToken(params.AccessToken)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, fmt.Errorf("login failed: %w", err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, loginResponse{UserId: login.UserId, AccessToken: login.AccessToken}, "login successful")
}

func (s *UserService) CreateUser(w http.ResponseWriter, r *http.Request) {
	var params signupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	userId, err := s.userAuth.CreateUser(params.Username, params.Email, params.Password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		if errors.Is(err, auth.ErrEmailAlreadyInUse) || errors.Is(err, auth.ErrUsernameAlreadyInUse) {
			responseCode = http.StatusConflict
		}
		utils.WriteError(w, responseCode, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, signupResponse{UserId: userId}, "user created")
}

func (s *UserService) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if result := txn.Delete(&schema.ProjectMember{}, "user_id = ?", userId); result.Error != nil {
			return dbError("delete user project memberships", result.Error)
		}
		if result := txn.Delete(&schema.ProjectOwner{}, "owner_id = ?", userId); result.Error != nil {
			return dbError("delete user project ownerships", result.Error)
		}
		if result := txn.Delete(&schema.Notification{}, "member_id = ?", userId); result.Error != nil {
			return dbError("delete user notifications", result.Error)
		}
		if result := txn.Delete(&schema.UserBusinessArea{}, "user_id = ?", userId); result.Error != nil {
			return dbError("delete user business areas", result.Error)
		}
		if result := txn.Delete(&schema.LanguagePreference{}, "user_id = ?", userId); result.Error != nil {
			return dbError("delete user language preference", result.Error)
		}
		if result := txn.Delete(&schema.NotificationSetting{}, "user_id = ?", userId); result.Error != nil {
			return dbError("delete user notification setting", result.Error)
		}
		if result := txn.Delete(&schema.User{Id: userId}); result.Error != nil {
			return dbError("delete user", result.Error)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.userAuth.DeleteUser(userId); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, fmt.Errorf("error deleting user %v: %w", userId, err))
		return
	}

	utils.WriteSuccess(w, "user deleted")
}

func (s *UserService) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		user.IsAdmin = true

		if result := txn.Save(&user); result.Error != nil {
			return dbError("promote user to admin", result.Error)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "user promoted to admin")
}

func (s *UserService) DemoteAdmin(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if !user.IsAdmin {
			return CodedError(errors.New("user is already not an admin"), http.StatusUnprocessableEntity)
		}

		var count int64
		result := txn.Model(&schema.User{}).Where("is_admin = ?", true).Count(&count)
		if result.Error != nil {
			return dbError("count existing admins", result.Error)
		}
		if count < 2 {
			return CodedError(fmt.Errorf("cannot demote admin %v since there would be no admins left", userId), http.StatusUnprocessableEntity)
		}

		user.IsAdmin = false

		if result := txn.Save(&user); result.Error != nil {
			return dbError("demote admin", result.Error)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "admin demoted")
}

type userBusinessAreaInfo struct {
	Id   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type userInfo struct {
	Id            uuid.UUID              `json:"id"`
	Username      string                 `json:"username"`
	Email         string                 `json:"email"`
	Admin         bool                   `json:"admin"`
	UserType      string                 `json:"userType"`
	RoleId        *uuid.UUID             `json:"roleId"`
	BusinessAreas []userBusinessAreaInfo `json:"businessAreas"`
}

func convertToUserInfo(user *schema.User) userInfo {
	areas := make([]userBusinessAreaInfo, 0, len(user.BusinessAreas))
	for _, membership := range user.BusinessAreas {
		if membership.BusinessArea == nil {
			continue
		}
		areas = append(areas, userBusinessAreaInfo{
			Id:   membership.BusinessAreaId,
			Name: membership.BusinessArea.Name,
		})
	}

	return userInfo{
		Id:            user.Id,
		Username:      user.UserName,
		Email:         user.Email,
		Admin:         user.IsAdmin,
		UserType:      user.UserType,
		RoleId:        user.RoleId,
		BusinessAreas: areas,
	}
}

func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	var users []schema.User
	result := s.db.Preload("BusinessAreas").Preload("BusinessAreas.BusinessArea").Order("user_name asc").Find(&users)
	if result.Error != nil {
		writeError(w, dbError("list users", result.Error))
		return
	}

	infos := make([]userInfo, 0, len(users))
	for i := range users {
		infos = append(infos, convertToUserInfo(&users[i]))
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "users retrieved")
}

func (s *UserService) Info(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var loaded schema.User
	result := s.db.Preload("BusinessAreas").Preload("BusinessAreas.BusinessArea").First(&loaded, "id = ?", user.Id)
	if result.Error != nil {
		writeError(w, dbError("load user info", result.Error))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, convertToUserInfo(&loaded), "user info retrieved")
}

type fcmTokenRequest struct {
	NotificationToken *string `json:"notificationToken"`
	FcmDeviceToken    *string `json:"fcmDeviceToken"`
}

func (s *UserService) UpdateFcmToken(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var params fcmTokenRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.NotificationToken == nil && params.FcmDeviceToken == nil {
		utils.WriteError(w, http.StatusBadRequest, errors.New("no token fields provided"))
		return
	}

	updates := map[string]any{}
	if params.NotificationToken != nil {
		updates["notification_token"] = *params.NotificationToken
	}
	if params.FcmDeviceToken != nil {
		updates["fcm_device_token"] = *params.FcmDeviceToken
	}

	result := s.db.Model(&schema.User{}).Where("id = ?", user.Id).Updates(updates)
	if result.Error != nil {
		writeError(w, dbError("update device tokens", result.Error))
		return
	}

	utils.WriteSuccess(w, "device tokens updated")
}

type userUpdateRequest struct {
	UserType      *string      `json:"userType"`
	RoleId        *uuid.UUID   `json:"roleId"`
	BusinessAreas *[]uuid.UUID `json:"businessAreas"`
}

func (s *UserService) Update(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	var params userUpdateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.UserType != nil && *params.UserType != schema.UserTypeFinance && *params.UserType != schema.UserTypeProduction {
		utils.WriteError(w, http.StatusBadRequest,
			fmt.Errorf("invalid user type '%v', must be '%v' or '%v'", *params.UserType, schema.UserTypeFinance, schema.UserTypeProduction))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.UserType != nil {
			user.UserType = *params.UserType
		}
		if params.RoleId != nil {
			var role schema.Role
			result := txn.First(&role, "id = ?", *params.RoleId)
			if result.Error != nil {
				if errors.Is(result.Error, gorm.ErrRecordNotFound) {
					return CodedError(schema.ErrRoleNotFound, http.StatusNotFound)
				}
				return dbError("get role", result.Error)
			}
			user.RoleId = params.RoleId
		}

		if result := txn.Save(&user); result.Error != nil {
			return dbError("update user", result.Error)
		}

		if params.BusinessAreas != nil {
			if result := txn.Delete(&schema.UserBusinessArea{}, "user_id = ?", userId); result.Error != nil {
				return dbError("clear user business areas", result.Error)
			}
			if len(*params.BusinessAreas) > 0 {
				memberships := make([]schema.UserBusinessArea, 0, len(*params.BusinessAreas))
				for _, areaId := range *params.BusinessAreas {
					memberships = append(memberships, schema.UserBusinessArea{UserId: userId, BusinessAreaId: areaId})
				}
				if result := txn.Create(&memberships); result.Error != nil {
					return dbError("assign user business areas", result.Error)
				}
			}
		}

		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "user updated")
}
