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
	"github.com/cerineuginga/client-backend/projecthub/storage"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectService struct {
	db         *gorm.DB
	userAuth   auth.IdentityProvider
	dispatcher *notify.Dispatcher
	store      storage.ObjectStore
}

func (s *ProjectService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.Create)
	r.Get("/list", s.List)

	r.Route("/{project_id}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.ProjectAccessOnly(s.db, auth.MemberAccess))
			r.Get("/", s.Get)
			r.Post("/update", s.Update)
			r.Post("/banners", s.AddBanners)
			r.Delete("/banners/{banner_id}", s.RemoveBanner)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.ProjectAccessOnly(s.db, auth.OwnerAccess))
			r.Delete("/delete", s.Delete)
		})
	})

	return r
}

type projectCreateRequest struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Location     string  `json:"location"`
	BusinessArea string  `json:"businessArea"`
	CompanyName  string  `json:"companyName"`
	Deadline     string  `json:"deadline"`
	Status       string  `json:"status"`
	Physical     float64 `json:"physicalExecution"`
	Financial    float64 `json:"financialExecution"`

	Members []uuid.UUID `json:"members"`
	Owners  []uuid.UUID `json:"owners"`
}

type projectInfo struct {
	Id           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	BusinessArea string    `json:"businessArea"`
	CompanyName  string    `json:"companyName"`
	Status       string    `json:"status"`
	Deadline     string    `json:"deadline"`
	Physical     float64   `json:"physicalExecution"`
	Financial    float64   `json:"financialExecution"`
	FirstUpdate  bool      `json:"firstUpdatePending"`
	Revision     int64     `json:"revision"`

	Members []uuid.UUID         `json:"members"`
	Owners  []projectOwnerInfo  `json:"owners"`
	Banners []projectBannerInfo `json:"banners"`
	Logs    []projectLogInfo    `json:"logs,omitempty"`
	Renamed bool                `json:"renamed,omitempty"`
}

type projectOwnerInfo struct {
	OwnerId   uuid.UUID `json:"ownerId"`
	OwnerName string    `json:"ownerName"`
}

type projectBannerInfo struct {
	Id         uuid.UUID `json:"id"`
	Url        string    `json:"url"`
	UploadDate time.Time `json:"uploadDate"`
}

type projectLogInfo struct {
	ActionType string    `json:"actionType"`
	Message    string    `json:"message"`
	UserId     uuid.UUID `json:"userId"`
	Timestamp  time.Time `json:"timestamp"`
}

func convertProject(project schema.Project) projectInfo {
	info := projectInfo{
		Id:           project.Id,
		Name:         project.Name,
		Description:  project.Description,
		Location:     project.Location,
		BusinessArea: project.BusinessArea,
		CompanyName:  project.CompanyName,
		Status:       project.Status,
		Deadline:     project.Deadline,
		Physical:     project.PhysicalExecution,
		Financial:    project.FinancialExecution,
		FirstUpdate:  project.FirstUpdatePending,
		Revision:     project.Revision,
		Members:      make([]uuid.UUID, 0, len(project.Members)),
		Owners:       make([]projectOwnerInfo, 0, len(project.Owners)),
		Banners:      make([]projectBannerInfo, 0, len(project.Banners)),
	}
	for _, member := range project.Members {
		info.Members = append(info.Members, member.UserId)
	}
	for _, owner := range project.Owners {
		info.Owners = append(info.Owners, projectOwnerInfo{OwnerId: owner.OwnerId, OwnerName: owner.OwnerName})
	}
	for _, banner := range project.Banners {
		info.Banners = append(info.Banners, projectBannerInfo{Id: banner.Id, Url: banner.Url, UploadDate: banner.UploadDate})
	}
	for _, log := range project.Logs {
		info.Logs = append(info.Logs, projectLogInfo{ActionType: log.ActionType, Message: log.Message, UserId: log.UserId, Timestamp: log.Timestamp})
	}
	return info
}

func (s *ProjectService) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	var params projectCreateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, errors.New("project name must be specified"))
		return
	}
	if params.Status == "" {
		params.Status = schema.StatusOngoing
	}
	if !schema.ValidProjectStatus(params.Status) {
		utils.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid project status '%v'", params.Status))
		return
	}
	if !validExecution(params.Physical) || !validExecution(params.Financial) {
		utils.WriteError(w, http.StatusBadRequest, errors.New("execution percentages must be between 0 and 100"))
		return
	}

	slog.Info("creating project", "name", params.Name, "user_id", user.Id)

	var project schema.Project
	var event notify.Event
	var recipients []schema.User
	renamed := false

	err = s.db.Transaction(func(txn *gorm.DB) error {
		name, wasRenamed, err := resolveProjectName(txn, params.Name, uuid.Nil)
		if err != nil {
			return err
		}
		renamed = wasRenamed

		owners, err := schema.GetUsers(params.Owners, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if len(owners) != len(params.Owners) {
			return CodedError(errors.New("one or more project owners not found"), http.StatusNotFound)
		}

		members, err := schema.GetUsers(params.Members, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if len(members) != len(params.Members) {
			return CodedError(errors.New("one or more project members not found"), http.StatusNotFound)
		}

		project = schema.Project{
			Id:                 uuid.New(),
			Name:               name,
			Description:        params.Description,
			Location:           params.Location,
			BusinessArea:       params.BusinessArea,
			CompanyName:        params.CompanyName,
			Status:             params.Status,
			Deadline:           params.Deadline,
			PhysicalExecution:  params.Physical,
			FinancialExecution: params.Financial,
			FirstUpdatePending: true,
			CreatedBy:          user.Id,
			CreatedAt:          time.Now().UTC(),
		}
		for _, member := range members {
			project.Members = append(project.Members, schema.ProjectMember{ProjectId: project.Id, UserId: member.Id})
		}
		for _, owner := range owners {
			project.Owners = append(project.Owners, schema.ProjectOwner{ProjectId: project.Id, OwnerId: owner.Id, OwnerName: owner.UserName})
		}

		result := txn.Create(&project)
		if result.Error != nil {
			return dbError("create project", result.Error)
		}

		recorder := audit.NewRecorder(project.Id, user.Id)
		recorder.Note("project_created", fmt.Sprintf("Projeto '%v' criado", name), fmt.Sprintf("Project '%v' created", name))
		if renamed {
			recorder.Note("project_renamed",
				fmt.Sprintf("Nome ajustado para '%v' por já existir um projeto com o mesmo nome", name),
				fmt.Sprintf("Name adjusted to '%v' because a project with the requested name already exists", name))
		}
		if err := recorder.Flush(txn); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		event = notify.Event{
			Kind:          notify.EventCreated,
			Entity:        notify.EntityProject,
			EntityName:    name,
			ProjectId:     &project.Id,
			ProjectName:   name,
			PerformedBy:   user.Id,
			PerformerName: user.UserName,
		}

		recipients, err = notify.ProjectRecipients(project, user.Id, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		if err := s.dispatcher.InAppRecords(txn, event, recipients); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	event.ExcludePerformer = true
	s.dispatcher.DispatchAsync(event, recipients)

	slog.Info("created project successfully", "project_id", project.Id, "name", project.Name)

	info := convertProject(project)
	info.Renamed = renamed
	utils.WriteJsonResponse(w, http.StatusCreated, info, "project created")
}

type projectUpdateRequest struct {
	Revision int64 `json:"revision"`

	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Location     *string  `json:"location"`
	BusinessArea *string  `json:"businessArea"`
	CompanyName  *string  `json:"companyName"`
	Deadline     *string  `json:"deadline"`
	Status       *string  `json:"status"`
	Physical     *float64 `json:"physicalExecution"`
	Financial    *float64 `json:"financialExecution"`

	Members *[]uuid.UUID `json:"members"`
	Owners  *[]uuid.UUID `json:"owners"`
}

func sameIdSet(a []uuid.UUID, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

func (s *ProjectService) Update(w http.ResponseWriter, r *http.Request) {
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

	var params projectUpdateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Status != nil && !schema.ValidProjectStatus(*params.Status) {
		utils.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid project status '%v'", *params.Status))
		return
	}
	if params.Physical != nil && !validExecution(*params.Physical) {
		utils.WriteError(w, http.StatusBadRequest, errors.New("physical execution must be between 0 and 100"))
		return
	}
	if params.Financial != nil && !validExecution(*params.Financial) {
		utils.WriteError(w, http.StatusBadRequest, errors.New("financial execution must be between 0 and 100"))
		return
	}

	slog.Info("updating project", "project_id", projectId, "user_id", user.Id)

	var project schema.Project
	var event notify.Event
	var recipients []schema.User
	var completed, noChanges, renamed bool

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var err error
		project, err = schema.GetProject(projectId, txn, true)
		if err != nil {
			if errors.Is(err, schema.ErrProjectNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.Revision != project.Revision {
			return CodedError(fmt.Errorf("project was modified concurrently, expected revision %d", project.Revision), http.StatusConflict)
		}

		recorder := audit.NewRecorder(project.Id, user.Id)

		if params.Name != nil && *params.Name != project.Name {
			name, wasRenamed, err := resolveProjectName(txn, *params.Name, project.Id)
			if err != nil {
				return err
			}
			renamed = wasRenamed
			recorder.Field("Nome", "Name", project.Name, name)
			if wasRenamed {
				recorder.Note("project_renamed",
					fmt.Sprintf("Nome ajustado para '%v' por já existir um projeto com o mesmo nome", name),
					fmt.Sprintf("Name adjusted to '%v' because a project with the requested name already exists", name))
			}
			project.Name = name
		}
		if params.Description != nil && recorder.Field("Descrição", "Description", project.Description, *params.Description) {
			project.Description = *params.Description
		}
		if params.Location != nil && recorder.Field("Localização", "Location", project.Location, *params.Location) {
			project.Location = *params.Location
		}
		if params.BusinessArea != nil && recorder.Field("Área de negócio", "Business area", project.BusinessArea, *params.BusinessArea) {
			project.BusinessArea = *params.BusinessArea
		}
		if params.CompanyName != nil && recorder.Field("Empresa", "Company", project.CompanyName, *params.CompanyName) {
			project.CompanyName = *params.CompanyName
		}
		if params.Deadline != nil && recorder.Field("Prazo", "Deadline", project.Deadline, *params.Deadline) {
			project.Deadline = *params.Deadline
		}
		if params.Status != nil && recorder.Field("Estado", "Status", project.Status, *params.Status) {
			completed = project.Status != schema.StatusCompleted && *params.Status == schema.StatusCompleted
			project.Status = *params.Status
		}
		if params.Physical != nil && recorder.Percent("Execução física", "Physical execution", project.PhysicalExecution, *params.Physical) {
			project.PhysicalExecution = *params.Physical
		}
		if params.Financial != nil && recorder.Percent("Execução financeira", "Financial execution", project.FinancialExecution, *params.Financial) {
			project.FinancialExecution = *params.Financial
		}

		if params.Members != nil {
			current := make([]uuid.UUID, 0, len(project.Members))
			for _, member := range project.Members {
				current = append(current, member.UserId)
			}
			if !sameIdSet(current, *params.Members) {
				members, err := schema.GetUsers(*params.Members, txn)
				if err != nil {
					return CodedError(err, http.StatusInternalServerError)
				}
				if len(members) != len(*params.Members) {
					return CodedError(errors.New("one or more project members not found"), http.StatusNotFound)
				}

				if result := txn.Where("project_id = ?", project.Id).Delete(&schema.ProjectMember{}); result.Error != nil {
					return dbError("replace project members", result.Error)
				}
				project.Members = nil
				for _, member := range members {
					project.Members = append(project.Members, schema.ProjectMember{ProjectId: project.Id, UserId: member.Id})
				}
				if len(project.Members) > 0 {
					if result := txn.Create(&project.Members); result.Error != nil {
						return dbError("replace project members", result.Error)
					}
				}
				recorder.Note("members_updated", "Membros do projeto atualizados", "Project members updated")
			}
		}

		if params.Owners != nil {
			current := make([]uuid.UUID, 0, len(project.Owners))
			for _, owner := range project.Owners {
				current = append(current, owner.OwnerId)
			}
			if !sameIdSet(current, *params.Owners) {
				owners, err := schema.GetUsers(*params.Owners, txn)
				if err != nil {
					return CodedError(err, http.StatusInternalServerError)
				}
				if len(owners) != len(*params.Owners) {
					return CodedError(errors.New("one or more project owners not found"), http.StatusNotFound)
				}

				if result := txn.Where("project_id = ?", project.Id).Delete(&schema.ProjectOwner{}); result.Error != nil {
					return dbError("replace project owners", result.Error)
				}
				project.Owners = nil
				for _, owner := range owners {
					project.Owners = append(project.Owners, schema.ProjectOwner{ProjectId: project.Id, OwnerId: owner.Id, OwnerName: owner.UserName})
				}
				if len(project.Owners) > 0 {
					if result := txn.Create(&project.Owners); result.Error != nil {
						return dbError("replace project owners", result.Error)
					}
				}
				recorder.Note("owners_updated", "Responsáveis do projeto atualizados", "Project owners updated")
			}
		}

		if recorder.Empty() {
			noChanges = true
			return nil
		}

		firstUpdate := project.FirstUpdatePending
		project.FirstUpdatePending = false
		project.Revision++
		project.UpdatedAt = time.Now().UTC()

		result := txn.Model(&schema.Project{}).Where("id = ?", project.Id).Updates(map[string]interface{}{
			"name":                 project.Name,
			"description":          project.Description,
			"location":             project.Location,
			"business_area":        project.BusinessArea,
			"company_name":         project.CompanyName,
			"status":               project.Status,
			"deadline":             project.Deadline,
			"physical_execution":   project.PhysicalExecution,
			"financial_execution":  project.FinancialExecution,
			"first_update_pending": project.FirstUpdatePending,
			"revision":             project.Revision,
			"updated_at":           project.UpdatedAt,
		})
		if result.Error != nil {
			return dbError("update project", result.Error)
		}

		if err := recorder.Flush(txn); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		// The first update after creation is announced as the project going
		// live rather than as an ordinary update.
		kind := notify.EventUpdated
		if firstUpdate {
			kind = notify.EventActivated
		}

		event = notify.Event{
			Kind:          kind,
			Entity:        notify.EntityProject,
			EntityName:    project.Name,
			ProjectId:     &project.Id,
			ProjectName:   project.Name,
			PerformedBy:   user.Id,
			PerformerName: user.UserName,
			Changes:       recorder.Changes(),
		}

		recipients, err = notify.ProjectRecipients(project, user.Id, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		if err := s.dispatcher.InAppRecords(txn, event, recipients); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	if noChanges {
		utils.WriteJsonResponse(w, http.StatusOK, convertProject(project), "no changes detected")
		return
	}

	event.ExcludePerformer = true
	s.dispatcher.DispatchAsync(event, recipients)

	if completed {
		review := notify.Event{
			Kind:             notify.EventReviewRequest,
			Entity:           notify.EntityProject,
			EntityName:       project.Name,
			ProjectId:        &project.Id,
			ProjectName:      project.Name,
			PerformedBy:      user.Id,
			PerformerName:    user.UserName,
			ExcludePerformer: true,
		}
		reviewers, err := notify.ProjectRecipients(project, uuid.Nil, s.db)
		if err == nil {
			if err := s.dispatcher.InAppRecords(s.db, review, notify.ExcludeUser(reviewers, user.Id)); err != nil {
				slog.Error("error recording review request notifications", "project_id", project.Id, "error", err)
			}
			s.dispatcher.DispatchAsync(review, reviewers)
		} else {
			slog.Error("error resolving review request recipients", "project_id", project.Id, "error", err)
		}
	}

	slog.Info("updated project successfully", "project_id", project.Id, "revision", project.Revision)

	info := convertProject(project)
	info.Renamed = renamed
	utils.WriteJsonResponse(w, http.StatusOK, info, "project updated")
}

type projectDetail struct {
	projectInfo

	Documents  []documentInfo  `json:"documents"`
	Milestones []milestoneInfo `json:"milestones"`
}

func (s *ProjectService) loadRelated(projectIds []uuid.UUID) (map[uuid.UUID][]documentInfo, map[uuid.UUID][]milestoneInfo, error) {
	documents := make(map[uuid.UUID][]documentInfo)
	milestones := make(map[uuid.UUID][]milestoneInfo)

	if len(projectIds) == 0 {
		return documents, milestones, nil
	}

	var docs []schema.Document
	if result := s.db.Find(&docs, "project_id IN ?", projectIds); result.Error != nil {
		return nil, nil, dbError("list project documents", result.Error)
	}
	for _, doc := range docs {
		documents[doc.ProjectId] = append(documents[doc.ProjectId], convertDocument(doc))
	}

	var stones []schema.Milestone
	if result := s.db.Order("created_at asc").Find(&stones, "project_id IN ?", projectIds); result.Error != nil {
		return nil, nil, dbError("list project milestones", result.Error)
	}
	for _, stone := range stones {
		milestones[stone.ProjectId] = append(milestones[stone.ProjectId], convertMilestone(stone))
	}

	return documents, milestones, nil
}

func (s *ProjectService) Get(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	project, err := schema.GetProject(projectId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			utils.WriteError(w, http.StatusNotFound, err)
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	documents, milestones, err := s.loadRelated([]uuid.UUID{project.Id})
	if err != nil {
		writeError(w, err)
		return
	}

	detail := projectDetail{
		projectInfo: convertProject(project),
		Documents:   orEmptyDocs(documents[project.Id]),
		Milestones:  orEmptyMilestones(milestones[project.Id]),
	}
	utils.WriteJsonResponse(w, http.StatusOK, detail, "project retrieved")
}

func orEmptyDocs(docs []documentInfo) []documentInfo {
	if docs == nil {
		return []documentInfo{}
	}
	return docs
}

func orEmptyMilestones(stones []milestoneInfo) []milestoneInfo {
	if stones == nil {
		return []milestoneInfo{}
	}
	return stones
}

const defaultPageSize = 10

type projectListResponse struct {
	Projects []projectDetail `json:"projects"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

// List returns the projects visible to the caller. Admins see every project;
// other users see projects they are a member or owner of, plus projects in
// one of their assigned business areas.
func (s *ProjectService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	page := utils.QueryInt(r, "page", 1)
	pageSize := utils.QueryInt(r, "pageSize", defaultPageSize)

	query := s.db.Model(&schema.Project{})

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	if !user.IsAdmin {
		var areaNames []string
		result := s.db.Model(&schema.BusinessArea{}).
			Joins("JOIN user_business_areas ON user_business_areas.business_area_id = business_areas.id").
			Where("user_business_areas.user_id = ?", user.Id).
			Pluck("business_areas.name", &areaNames)
		if result.Error != nil {
			writeError(w, dbError("list user business areas", result.Error))
			return
		}

		scope := s.db.Where(
			"id IN (?)",
			s.db.Model(&schema.ProjectMember{}).Select("project_id").Where("user_id = ?", user.Id),
		).Or(
			"id IN (?)",
			s.db.Model(&schema.ProjectOwner{}).Select("project_id").Where("owner_id = ?", user.Id),
		)
		if len(areaNames) > 0 {
			scope = scope.Or("business_area IN ?", areaNames)
		}
		query = query.Where(scope)
	}

	var total int64
	if result := query.Count(&total); result.Error != nil {
		writeError(w, dbError("count projects", result.Error))
		return
	}

	var projects []schema.Project
	result := query.
		Preload("Banners").
		Preload("Members").
		Preload("Owners").
		Order("created_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&projects)
	if result.Error != nil {
		writeError(w, dbError("list projects", result.Error))
		return
	}

	projectIds := make([]uuid.UUID, 0, len(projects))
	for _, project := range projects {
		projectIds = append(projectIds, project.Id)
	}

	documents, milestones, err := s.loadRelated(projectIds)
	if err != nil {
		writeError(w, err)
		return
	}

	response := projectListResponse{Projects: make([]projectDetail, 0, len(projects)), Total: total, Page: page, PageSize: pageSize}
	for _, project := range projects {
		response.Projects = append(response.Projects, projectDetail{
			projectInfo: convertProject(project),
			Documents:   orEmptyDocs(documents[project.Id]),
			Milestones:  orEmptyMilestones(milestones[project.Id]),
		})
	}

	utils.WriteJsonResponse(w, http.StatusOK, response, "projects retrieved")
}

// Delete removes a project and everything attached to it in a single
// transaction, then notifies the former members and owners.
func (s *ProjectService) Delete(w http.ResponseWriter, r *http.Request) {
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

	slog.Info("deleting project", "project_id", projectId, "user_id", user.Id)

	var event notify.Event
	var recipients []schema.User

	err = s.db.Transaction(func(txn *gorm.DB) error {
		project, err := schema.GetProject(projectId, txn, true)
		if err != nil {
			if errors.Is(err, schema.ErrProjectNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		// Recipients are resolved before the rows disappear.
		recipients, err = notify.ProjectRecipients(project, user.Id, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		for _, model := range []interface{}{
			&schema.Milestone{}, &schema.Document{}, &schema.UserDocument{}, &schema.FinanceDocument{},
			&schema.Review{}, &schema.Notification{}, &schema.ProjectBanner{}, &schema.ProjectMember{},
			&schema.ProjectOwner{}, &schema.ProjectLog{},
		} {
			if result := txn.Where("project_id = ?", projectId).Delete(model); result.Error != nil {
				return dbError("delete project relations", result.Error)
			}
		}

		if result := txn.Delete(&schema.Project{}, "id = ?", projectId); result.Error != nil {
			return dbError("delete project", result.Error)
		}

		event = notify.Event{
			Kind:             notify.EventDeleted,
			Entity:           notify.EntityProject,
			EntityName:       project.Name,
			ProjectName:      project.Name,
			PerformedBy:      user.Id,
			PerformerName:    user.UserName,
			ExcludePerformer: true,
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	s.dispatcher.DispatchAsync(event, recipients)

	slog.Info("deleted project successfully", "project_id", projectId)

	utils.WriteSuccess(w, "project deleted")
}

// AddBanners uploads a batch of banner images for a project. Uploads run
// with bounded concurrency; individual failures are dropped from the result.
// A batch that would push the gallery past its cap is rejected outright.
func (s *ProjectService) AddBanners(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		utils.WriteError(w, http.StatusBadRequest, fmt.Errorf("error parsing multipart form: %w", err))
		return
	}
	fileHeaders := r.MultipartForm.File["banners"]
	if len(fileHeaders) == 0 {
		utils.WriteError(w, http.StatusBadRequest, errors.New("no banner files provided"))
		return
	}

	var existing int64
	if result := s.db.Model(&schema.ProjectBanner{}).Where("project_id = ?", projectId).Count(&existing); result.Error != nil {
		writeError(w, dbError("count project banners", result.Error))
		return
	}
	if int(existing)+len(fileHeaders) > schema.MaxProjectBanners {
		utils.WriteError(w, http.StatusBadRequest,
			fmt.Errorf("project can have at most %d banners, has %d and %d were provided", schema.MaxProjectBanners, existing, len(fileHeaders)))
		return
	}

	files := make([]storage.PendingFile, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		file, err := header.Open()
		if err != nil {
			slog.Error("error opening uploaded banner", "name", header.Filename, "error", err)
			continue
		}
		defer file.Close()
		files = append(files, storage.PendingFile{Name: header.Filename, Data: file})
	}

	uploaded := storage.BatchUpload(r.Context(), s.store, fmt.Sprintf("projects/%v/banners", projectId), files)

	banners := make([]schema.ProjectBanner, 0, len(uploaded))
	for _, result := range uploaded {
		banners = append(banners, schema.ProjectBanner{
			Id:         uuid.New(),
			ProjectId:  projectId,
			Url:        result.Url,
			UploadDate: time.Now().UTC(),
		})
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkProjectExists(txn, projectId); err != nil {
			return err
		}

		if len(banners) > 0 {
			if result := txn.Create(&banners); result.Error != nil {
				return dbError("create project banners", result.Error)
			}

			recorder := audit.NewRecorder(projectId, user.Id)
			recorder.Note("banners_added",
				fmt.Sprintf("%d imagens adicionadas ao projeto", len(banners)),
				fmt.Sprintf("%d banner images added to the project", len(banners)))
			if err := recorder.Flush(txn); err != nil {
				return CodedError(err, http.StatusInternalServerError)
			}
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	infos := make([]projectBannerInfo, 0, len(banners))
	for _, banner := range banners {
		infos = append(infos, projectBannerInfo{Id: banner.Id, Url: banner.Url, UploadDate: banner.UploadDate})
	}

	slog.Info("added project banners", "project_id", projectId, "uploaded", len(banners), "failed", len(files)-len(banners))

	utils.WriteJsonResponse(w, http.StatusOK, infos, "banners uploaded")
}

func (s *ProjectService) RemoveBanner(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}
	bannerId, err := utils.URLParamUUID(r, "banner_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Where("id = ? AND project_id = ?", bannerId, projectId).Delete(&schema.ProjectBanner{})
		if result.Error != nil {
			return dbError("delete project banner", result.Error)
		}
		if result.RowsAffected == 0 {
			return CodedError(errors.New("banner not found"), http.StatusNotFound)
		}

		recorder := audit.NewRecorder(projectId, user.Id)
		recorder.Note("banner_removed", "Imagem removida do projeto", "Banner image removed from the project")
		if err := recorder.Flush(txn); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w, "banner removed")
}
