package schema

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusOngoing       = "Ongoing"
	StatusPending       = "Pending"
	StatusCompleted     = "Completed"
	StatusAwaitingStart = "Awaiting Start"
	StatusOnHold        = "On Hold"
	StatusCancelled     = "Cancelled"
	StatusArchived      = "Archived"
)

func ValidProjectStatus(status string) bool {
	switch status {
	case StatusOngoing, StatusPending, StatusCompleted, StatusAwaitingStart, StatusOnHold, StatusCancelled, StatusArchived:
		return true
	}
	return false
}

const (
	UserTypeFinance    = "Finance"
	UserTypeProduction = "Production"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserName string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	IsAdmin  bool   `gorm:"not null;default:false"`
	UserType string `gorm:"size:50"`

	NotificationToken string `gorm:"size:500"`
	FcmDeviceToken    string `gorm:"size:500"`

	RoleId *uuid.UUID `gorm:"type:uuid"`
	Role   *Role      `gorm:"constraint:OnDelete:SET NULL"`

	BusinessAreas []UserBusinessArea `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
}

// EffectiveToken is the device token push delivery should use, preferring
// the explicitly registered notification token over the ambient FCM token.
func (u *User) EffectiveToken() string {
	if u.NotificationToken != "" {
		return u.NotificationToken
	}
	return u.FcmDeviceToken
}

type Role struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"unique;size:100;not null"`

	CanManageProjects bool `gorm:"not null;default:false"`
	CanManageUsers    bool `gorm:"not null;default:false"`
	CanManageFinance  bool `gorm:"not null;default:false"`
}

type Company struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"unique;size:200;not null"`

	CreatedAt time.Time
}

type BusinessArea struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"unique;size:200;not null"`

	RoleId *uuid.UUID `gorm:"type:uuid"`
	Role   *Role      `gorm:"constraint:OnDelete:SET NULL"`
}

type UserBusinessArea struct {
	UserId         uuid.UUID `gorm:"type:uuid;primaryKey"`
	BusinessAreaId uuid.UUID `gorm:"type:uuid;primaryKey"`

	User         *User         `gorm:"constraint:OnDelete:CASCADE"`
	BusinessArea *BusinessArea `gorm:"constraint:OnDelete:CASCADE"`
}

type Project struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"unique;size:200;not null"`
	Description string
	Location    string `gorm:"size:200"`

	BusinessArea string `gorm:"size:200"`
	CompanyName  string `gorm:"size:200"`

	Status   string `gorm:"size:50;not null;default:'Ongoing'"`
	Deadline string `gorm:"size:100"`

	PhysicalExecution  float64 `gorm:"not null;default:0"`
	FinancialExecution float64 `gorm:"not null;default:0"`

	// FirstUpdatePending distinguishes the very first edit after creation so
	// clients can prompt for the initial project setup flow.
	FirstUpdatePending bool `gorm:"not null;default:true"`

	// Revision is bumped on every successful update; writers carrying a stale
	// revision are rejected.
	Revision int64 `gorm:"not null;default:0"`

	Banners []ProjectBanner `gorm:"constraint:OnDelete:CASCADE"`
	Members []ProjectMember `gorm:"constraint:OnDelete:CASCADE"`
	Owners  []ProjectOwner  `gorm:"constraint:OnDelete:CASCADE"`
	Logs    []ProjectLog    `gorm:"constraint:OnDelete:CASCADE"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaxProjectBanners caps the banner gallery per project.
const MaxProjectBanners = 10

type ProjectBanner struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectId uuid.UUID `gorm:"type:uuid;not null;index"`

	Url        string `gorm:"size:1000;not null"`
	UploadDate time.Time
}

type ProjectMember struct {
	ProjectId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;primaryKey"`

	User *User `gorm:"constraint:OnDelete:CASCADE"`
}

type ProjectOwner struct {
	ProjectId uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerId   uuid.UUID `gorm:"type:uuid;primaryKey"`

	OwnerName string `gorm:"size:100"`

	Owner *User `gorm:"foreignKey:OwnerId;constraint:OnDelete:CASCADE"`
}

// MaxProjectLogs caps the retained audit trail per project; appends keep
// only the newest entries.
const MaxProjectLogs = 50

type ProjectLog struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectId uuid.UUID `gorm:"type:uuid;not null;index"`

	ActionType string `gorm:"size:100;not null"`
	Message    string
	UserId     uuid.UUID `gorm:"type:uuid"`

	Timestamp time.Time `gorm:"not null"`
}

const (
	MilestoneStatusPending   = "pending"
	MilestoneStatusCompleted = "completed"
)

type Milestone struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectId uuid.UUID `gorm:"type:uuid;not null;index"`

	UserId *uuid.UUID `gorm:"type:uuid"`

	Title       string `gorm:"size:200;not null"`
	Description string
	Status      string `gorm:"size:50;not null;default:'pending'"`
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	DocumentStatusPending  = "pending"
	DocumentStatusApproved = "approved"
	DocumentStatusRejected = "rejected"
	DocumentStatusArchived = "archived"
	DocumentStatusReview   = "review"
)

func ValidDocumentStatus(status string) bool {
	switch status {
	case DocumentStatusPending, DocumentStatusApproved, DocumentStatusRejected, DocumentStatusArchived, DocumentStatusReview:
		return true
	}
	return false
}

type Document struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectId uuid.UUID `gorm:"type:uuid;not null;index"`

	FileName string `gorm:"size:500;not null"`
	FileSize int64
	FileUrl  string `gorm:"size:1000;not null"`
	Status   string `gorm:"size:50;not null;default:'pending'"`

	UploadedBy uuid.UUID `gorm:"type:uuid;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserDocument struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectId uuid.UUID `gorm:"type:uuid;not null;index"`

	FileName string `gorm:"size:500;not null"`
	FileUrl  string `gorm:"size:1000;not null"`

	UploadedBy uuid.UUID `gorm:"type:uuid;not null"`

	CreatedAt time.Time
}

type FinanceDocument struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectId uuid.UUID `gorm:"type:uuid;not null;index"`

	Reference string `gorm:"size:200"`
	FileName  string `gorm:"size:500;not null"`
	FileUrl   string `gorm:"size:1000;not null"`

	FinancialExecution float64 `gorm:"not null;default:0"`
	PhysicalExecution  float64 `gorm:"not null;default:0"`

	UploadedBy uuid.UUID `gorm:"type:uuid;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Review struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectId uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId    uuid.UUID `gorm:"type:uuid;not null"`

	Message string
	Rating  int `gorm:"not null"`

	User *User `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
}

type Notification struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	MemberId  uuid.UUID  `gorm:"type:uuid;not null;index"`
	ProjectId *uuid.UUID `gorm:"type:uuid;index"`

	Title       string `gorm:"size:200;not null"`
	Type        string `gorm:"size:100;not null"`
	Description string
	LengthyDesc string

	IsRead bool `gorm:"not null;default:false"`

	CreatedAt time.Time
}

type LanguagePreference struct {
	UserId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Language string    `gorm:"size:50;not null;default:'portuguese'"`

	User *User `gorm:"constraint:OnDelete:CASCADE"`
}

// Enabled carries no column default on purpose: gorm omits zero valued
// fields that have one, which would turn an insert of false into true.
// Rows are always created with an explicit value.
type NotificationSetting struct {
	UserId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Enabled bool      `gorm:"not null"`

	User *User `gorm:"constraint:OnDelete:CASCADE"`
}
