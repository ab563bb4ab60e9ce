package services

import (
	"errors"
	"net/http"
	"time"

	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *NotificationService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.Create)
	r.Get("/list", s.List)
	r.Delete("/clear", s.Clear)
	r.Get("/{notification_id}", s.Get)
	r.Post("/{notification_id}/read", s.MarkRead)

	return r
}

type notificationInfo struct {
	Id          uuid.UUID  `json:"id"`
	MemberId    uuid.UUID  `json:"memberId"`
	ProjectId   *uuid.UUID `json:"projectId"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	LengthyDesc string     `json:"lengthyDesc"`
	IsRead      bool       `json:"isRead"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func convertNotification(notification schema.Notification) notificationInfo {
	return notificationInfo{
		Id:          notification.Id,
		MemberId:    notification.MemberId,
		ProjectId:   notification.ProjectId,
		Title:       notification.Title,
		Type:        notification.Type,
		Description: notification.Description,
		LengthyDesc: notification.LengthyDesc,
		IsRead:      notification.IsRead,
		CreatedAt:   notification.CreatedAt,
	}
}

type notificationCreateRequest struct {
	MemberId    uuid.UUID  `json:"memberId"`
	ProjectId   *uuid.UUID `json:"projectId"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	LengthyDesc string     `json:"lengthyDesc"`
}

func (s *NotificationService) Create(w http.ResponseWriter, r *http.Request) {
	var params notificationCreateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.MemberId == uuid.Nil {
		utils.WriteError(w, http.StatusBadRequest, errors.New("memberId must be specified"))
		return
	}
	if params.Title == "" {
		utils.WriteError(w, http.StatusBadRequest, errors.New("title must be specified"))
		return
	}

	if err := checkUserExists(s.db, params.MemberId); err != nil {
		writeError(w, err)
		return
	}

	// Recipients who turned notifications off are skipped without error so
	// callers fanning out to many users don't have to special case them.
	if !schema.NotificationsEnabled(params.MemberId, s.db) {
		utils.WriteJsonResponse(w, http.StatusOK, nil, "notifications are disabled for this user")
		return
	}

	notification := schema.Notification{
		Id:          uuid.New(),
		MemberId:    params.MemberId,
		ProjectId:   params.ProjectId,
		Title:       params.Title,
		Type:        params.Type,
		Description: params.Description,
		LengthyDesc: params.LengthyDesc,
		CreatedAt:   time.Now().UTC(),
	}
	if result := s.db.Create(&notification); result.Error != nil {
		writeError(w, dbError("create notification", result.Error))
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, convertNotification(notification), "notification created")
}

func (s *NotificationService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var notifications []schema.Notification
	result := s.db.Order("created_at desc").Find(&notifications, "member_id = ?", user.Id)
	if result.Error != nil {
		writeError(w, dbError("list notifications", result.Error))
		return
	}

	infos := make([]notificationInfo, 0, len(notifications))
	for _, notification := range notifications {
		infos = append(infos, convertNotification(notification))
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "notifications retrieved")
}

func (s *NotificationService) Get(w http.ResponseWriter, r *http.Request) {
	notificationId, err := utils.URLParamUUID(r, "notification_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	notification, err := schema.GetNotification(notificationId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrNotificationNotFound) {
			utils.WriteError(w, http.StatusNotFound, err)
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, convertNotification(notification), "notification retrieved")
}

func (s *NotificationService) MarkRead(w http.ResponseWriter, r *http.Request) {
	notificationId, err := utils.URLParamUUID(r, "notification_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	result := s.db.Model(&schema.Notification{}).
		Where("id = ? AND member_id = ?", notificationId, user.Id).
		Update("is_read", true)
	if result.Error != nil {
		writeError(w, dbError("mark notification read", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		utils.WriteError(w, http.StatusNotFound, schema.ErrNotificationNotFound)
		return
	}

	utils.WriteSuccess(w, "notification marked as read")
}

func (s *NotificationService) Clear(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	result := s.db.Delete(&schema.Notification{}, "member_id = ?", user.Id)
	if result.Error != nil {
		writeError(w, dbError("clear notifications", result.Error))
		return
	}

	utils.WriteSuccess(w, "notifications cleared")
}
