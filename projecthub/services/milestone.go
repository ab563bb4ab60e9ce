package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cerineuginga/client-backend/projecthub/audit"
	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/notify"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MilestoneService struct {
	db         *gorm.DB
	userAuth   auth.IdentityProvider
	dispatcher *notify.Dispatcher
}

func (s *MilestoneService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Route("/project/{project_id}", func(r chi.Router) {
		r.Use(auth.ProjectAccessOnly(s.db, auth.MemberAccess))
		r.Post("/", s.CreateOrUpdate)
		r.Get("/list", s.ListForProject)
	})

	r.Post("/{milestone_id}/update", s.Update)
	r.Delete("/{milestone_id}/delete", s.Delete)
	r.Get("/list", s.ListForUser)

	return r
}

type milestoneInfo struct {
	Id          uuid.UUID  `json:"id"`
	ProjectId   uuid.UUID  `json:"projectId"`
	UserId      *uuid.UUID `json:"userId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func convertMilestone(milestone schema.Milestone) milestoneInfo {
	return milestoneInfo{
		Id:          milestone.Id,
		ProjectId:   milestone.ProjectId,
		UserId:      milestone.UserId,
		Title:       milestone.Title,
		Description: milestone.Description,
		Status:      milestone.Status,
		CompletedAt: milestone.CompletedAt,
	}
}

func validMilestoneStatus(status string) bool {
	return status == schema.MilestoneStatusPending || status == schema.MilestoneStatusCompleted
}

type milestoneRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// applyMilestoneChanges diffs an incoming request against a milestone and
// records the differences. Returns whether anything changed.
func applyMilestoneChanges(milestone *schema.Milestone, params milestoneRequest, recorder *audit.Recorder) bool {
	changed := false

	if params.Description != milestone.Description {
		recorder.Field("Descrição do marco", "Milestone description", milestone.Description, params.Description)
		milestone.Description = params.Description
		changed = true
	}

	if params.Status != "" && params.Status != milestone.Status {
		recorder.Field("Estado do marco", "Milestone status", milestone.Status, params.Status)
		milestone.Status = params.Status
		if params.Status == schema.MilestoneStatusCompleted {
			now := time.Now().UTC()
			milestone.CompletedAt = &now
		} else {
			milestone.CompletedAt = nil
		}
		changed = true
	}

	return changed
}

func (s *MilestoneService) notifyProject(projectId uuid.UUID, kind notify.EventKind, milestoneTitle string, performer schema.User, changes notify.ChangeList) {
	project, err := schema.GetProject(projectId, s.db, true)
	if err != nil {
		slog.Error("error loading project for milestone notification", "project_id", projectId, "error", err)
		return
	}

	// Milestone events include the performer in delivery, matching the
	// project activity feed semantics.
	event := notify.Event{
		Kind:          kind,
		Entity:        notify.EntityMilestone,
		EntityName:    milestoneTitle,
		ProjectId:     &project.Id,
		ProjectName:   project.Name,
		PerformedBy:   performer.Id,
		PerformerName: performer.UserName,
		Changes:       changes,
	}

	recipients, err := notify.ProjectRecipients(project, performer.Id, s.db)
	if err != nil {
		slog.Error("error resolving milestone notification recipients", "project_id", projectId, "error", err)
		return
	}

	if err := s.dispatcher.InAppRecords(s.db, event, recipients); err != nil {
		slog.Error("error recording milestone notifications", "project_id", projectId, "error", err)
	}
	s.dispatcher.DispatchAsync(event, recipients)
}

// CreateOrUpdate upserts a milestone by title within a project: posting an
// existing title updates that milestone, a new title creates one.
func (s *MilestoneService) CreateOrUpdate(w http.ResponseWriter, r *http.Request) {
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

	var params milestoneRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		utils.WriteError(w, http.StatusBadRequest, errors.New("milestone title must be specified"))
		return
	}
	if params.Status != "" && !validMilestoneStatus(params.Status) {
		utils.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid milestone status '%v'", params.Status))
		return
	}

	var milestone schema.Milestone
	var created, changed bool
	recorder := audit.NewRecorder(projectId, user.Id)

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Limit(1).Find(&milestone, "project_id = ? AND title = ?", projectId, params.Title)
		if result.Error != nil {
			return dbError("find milestone by title", result.Error)
		}

		if result.RowsAffected == 0 {
			created = true
			status := params.Status
			if status == "" {
				status = schema.MilestoneStatusPending
			}
			milestone = schema.Milestone{
				Id:          uuid.New(),
				ProjectId:   projectId,
				UserId:      &user.Id,
				Title:       params.Title,
				Description: params.Description,
				Status:      status,
				CreatedAt:   time.Now().UTC(),
			}
			if status == schema.MilestoneStatusCompleted {
				now := time.Now().UTC()
				milestone.CompletedAt = &now
			}
			if result := txn.Create(&milestone); result.Error != nil {
				return dbError("create milestone", result.Error)
			}
			recorder.Note("milestone_created",
				fmt.Sprintf("Marco '%v' adicionado", params.Title),
				fmt.Sprintf("Milestone '%v' added", params.Title))
		} else {
			changed = applyMilestoneChanges(&milestone, params, recorder)
			if changed {
				milestone.UpdatedAt = time.Now().UTC()
				if result := txn.Save(&milestone); result.Error != nil {
					return dbError("update milestone", result.Error)
				}
			}
		}

		if err := recorder.Flush(txn); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	if created {
		s.notifyProject(projectId, notify.EventCreated, milestone.Title, user, recorder.Changes())
		utils.WriteJsonResponse(w, http.StatusCreated, convertMilestone(milestone), "milestone created")
		return
	}
	if changed {
		s.notifyProject(projectId, notify.EventUpdated, milestone.Title, user, recorder.Changes())
	}
	utils.WriteJsonResponse(w, http.StatusOK, convertMilestone(milestone), "milestone updated")
}

func (s *MilestoneService) Update(w http.ResponseWriter, r *http.Request) {
	milestoneId, err := utils.URLParamUUID(r, "milestone_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var params milestoneRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Status != "" && !validMilestoneStatus(params.Status) {
		utils.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid milestone status '%v'", params.Status))
		return
	}

	var milestone schema.Milestone
	var changed bool
	var recorder *audit.Recorder

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var err error
		milestone, err = schema.GetMilestone(milestoneId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrMilestoneNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		recorder = audit.NewRecorder(milestone.ProjectId, user.Id)

		if params.Title != "" && params.Title != milestone.Title {
			recorder.Field("Título do marco", "Milestone title", milestone.Title, params.Title)
			milestone.Title = params.Title
			changed = true
		}
		if applyMilestoneChanges(&milestone, params, recorder) {
			changed = true
		}

		if !changed {
			return nil
		}

		milestone.UpdatedAt = time.Now().UTC()
		if result := txn.Save(&milestone); result.Error != nil {
			return dbError("update milestone", result.Error)
		}
		if err := recorder.Flush(txn); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	if !changed {
		utils.WriteJsonResponse(w, http.StatusOK, convertMilestone(milestone), "no changes detected")
		return
	}

	s.notifyProject(milestone.ProjectId, notify.EventUpdated, milestone.Title, user, recorder.Changes())
	utils.WriteJsonResponse(w, http.StatusOK, convertMilestone(milestone), "milestone updated")
}

func (s *MilestoneService) Delete(w http.ResponseWriter, r *http.Request) {
	milestoneId, err := utils.URLParamUUID(r, "milestone_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var milestone schema.Milestone

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var err error
		milestone, err = schema.GetMilestone(milestoneId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrMilestoneNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if result := txn.Delete(&schema.Milestone{}, "id = ?", milestoneId); result.Error != nil {
			return dbError("delete milestone", result.Error)
		}

		recorder := audit.NewRecorder(milestone.ProjectId, user.Id)
		recorder.Note("milestone_deleted",
			fmt.Sprintf("Marco '%v' eliminado", milestone.Title),
			fmt.Sprintf("Milestone '%v' deleted", milestone.Title))
		if err := recorder.Flush(txn); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	s.notifyProject(milestone.ProjectId, notify.EventDeleted, milestone.Title, user, notify.ChangeList{})
	utils.WriteSuccess(w, "milestone deleted")
}

func (s *MilestoneService) ListForProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	var milestones []schema.Milestone
	result := s.db.Order("created_at asc").Find(&milestones, "project_id = ?", projectId)
	if result.Error != nil {
		writeError(w, dbError("list project milestones", result.Error))
		return
	}

	infos := make([]milestoneInfo, 0, len(milestones))
	for _, milestone := range milestones {
		infos = append(infos, convertMilestone(milestone))
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "milestones retrieved")
}

func (s *MilestoneService) ListForUser(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var milestones []schema.Milestone
	result := s.db.Order("created_at desc").Find(&milestones, "user_id = ?", user.Id)
	if result.Error != nil {
		writeError(w, dbError("list user milestones", result.Error))
		return
	}

	infos := make([]milestoneInfo, 0, len(milestones))
	for _, milestone := range milestones {
		infos = append(infos, convertMilestone(milestone))
	}
	utils.WriteJsonResponse(w, http.StatusOK, infos, "milestones retrieved")
}
