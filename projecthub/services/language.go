package services

import (
	"fmt"
	"net/http"

	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/notify"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LanguageService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *LanguageService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/", s.Get)
	r.Post("/", s.Set)

	return r
}

type languageInfo struct {
	Language notify.Language `json:"language"`
}

func (s *LanguageService) Get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	preference := schema.LanguagePreference{
		UserId:   user.Id,
		Language: string(notify.Portuguese),
	}

	// First read creates the default row so later updates are plain saves.
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&preference)
	if result.Error != nil {
		writeError(w, dbError("init language preference", result.Error))
		return
	}
	if result := s.db.First(&preference, "user_id = ?", user.Id); result.Error != nil {
		writeError(w, dbError("get language preference", result.Error))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, languageInfo{Language: notify.ParseLanguage(preference.Language)}, "language preference retrieved")
}

type languageUpdateRequest struct {
	Language string `json:"language"`
}

func (s *LanguageService) Set(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var params languageUpdateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !notify.ValidLanguage(params.Language) {
		utils.WriteError(w, http.StatusBadRequest,
			fmt.Errorf("unsupported language '%v', must be one of '%v' or '%v'", params.Language, notify.Portuguese, notify.English))
		return
	}

	preference := schema.LanguagePreference{UserId: user.Id, Language: params.Language}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"language"}),
	}).Create(&preference)
	if result.Error != nil {
		writeError(w, dbError("update language preference", result.Error))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, languageInfo{Language: notify.Language(params.Language)}, "language preference updated")
}
