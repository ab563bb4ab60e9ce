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

type ReviewService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ReviewService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Route("/project/{project_id}", func(r chi.Router) {
		r.Use(auth.ProjectAccessOnly(s.db, auth.MemberAccess))
		r.Post("/create", s.Create)
		r.Get("/list", s.List)
	})

	r.With(auth.AdminOnly(s.db)).Get("/list", s.ListAll)

	return r
}

type reviewInfo struct {
	Id        uuid.UUID `json:"id"`
	ProjectId uuid.UUID `json:"projectId"`
	UserId    uuid.UUID `json:"userId"`
	UserName  string    `json:"userName"`
	Message   string    `json:"message"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
}

func convertReview(review schema.Review) reviewInfo {
	info := reviewInfo{
		Id:        review.Id,
		ProjectId: review.ProjectId,
		UserId:    review.UserId,
		Message:   review.Message,
		Rating:    review.Rating,
		CreatedAt: review.CreatedAt,
	}
	if review.User != nil {
		info.UserName = review.User.UserName
	}
	return info
}

type reviewCreateRequest struct {
	Message string `json:"message"`
	Rating  int    `json:"rating"`
}

func (s *ReviewService) Create(w http.ResponseWriter, r *http.Request) {
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

	var params reviewCreateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Rating < 1 || params.Rating > 5 {
		utils.WriteError(w, http.StatusBadRequest, errors.New("rating must be between 1 and 5"))
		return
	}

	review := schema.Review{
		Id:        uuid.New(),
		ProjectId: projectId,
		UserId:    user.Id,
		Message:   params.Message,
		Rating:    params.Rating,
		CreatedAt: time.Now().UTC(),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existing int64
		result := txn.Model(&schema.Review{}).
			Where("project_id = ? AND user_id = ?", projectId, user.Id).
			Count(&existing)
		if result.Error != nil {
			return dbError("check existing review", result.Error)
		}
		if existing > 0 {
			return CodedError(fmt.Errorf("user has already reviewed this project"), http.StatusBadRequest)
		}

		if result := txn.Create(&review); result.Error != nil {
			return dbError("create review", result.Error)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	review.User = &user
	utils.WriteJsonResponse(w, http.StatusCreated, convertReview(review), "review submitted")
}

func (s *ReviewService) List(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	var reviews []schema.Review
	result := s.db.Preload("User").Order("created_at desc").Find(&reviews, "project_id = ?", projectId)
	if result.Error != nil {
		writeError(w, dbError("list reviews", result.Error))
		return
	}

	infos := make([]reviewInfo, 0, len(reviews))
	for _, review := range reviews {
		infos = append(infos, convertReview(review))
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "reviews retrieved")
}

func (s *ReviewService) ListAll(w http.ResponseWriter, r *http.Request) {
	var reviews []schema.Review
	result := s.db.Preload("User").Order("created_at desc").Find(&reviews)
	if result.Error != nil {
		writeError(w, dbError("list reviews", result.Error))
		return
	}

	infos := make([]reviewInfo, 0, len(reviews))
	for _, review := range reviews {
		infos = append(infos, convertReview(review))
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "reviews retrieved")
}
