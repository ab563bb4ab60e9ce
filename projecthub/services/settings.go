package services

import (
	"net/http"

	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationSettingService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *NotificationSettingService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Route("/{user_id}", func(r chi.Router) {
		r.Use(auth.SelfOrAdminOnly())
		r.Get("/", s.Get)
		r.Post("/", s.Set)
	})

	return r
}

type notificationSettingInfo struct {
	UserId  uuid.UUID `json:"userId"`
	Enabled bool      `json:"enabled"`
}

func (s *NotificationSettingService) Get(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	if err := checkUserExists(s.db, userId); err != nil {
		writeError(w, err)
		return
	}

	setting := schema.NotificationSetting{UserId: userId, Enabled: true}
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&setting)
	if result.Error != nil {
		writeError(w, dbError("init notification setting", result.Error))
		return
	}
	if result := s.db.First(&setting, "user_id = ?", userId); result.Error != nil {
		writeError(w, dbError("get notification setting", result.Error))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK,
		notificationSettingInfo{UserId: setting.UserId, Enabled: setting.Enabled},
		"notification setting retrieved")
}

type notificationSettingRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *NotificationSettingService) Set(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	if err := checkUserExists(s.db, userId); err != nil {
		writeError(w, err)
		return
	}

	var params notificationSettingRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	setting := schema.NotificationSetting{UserId: userId, Enabled: params.Enabled}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"enabled": params.Enabled}),
	}).Create(&setting)
	if result.Error != nil {
		writeError(w, dbError("update notification setting", result.Error))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK,
		notificationSettingInfo{UserId: userId, Enabled: params.Enabled},
		"notification setting updated")
}
