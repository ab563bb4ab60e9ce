package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrMilestoneNotFound    = errors.New("milestone not found")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrRoleNotFound         = errors.New("role not found")
	ErrCompanyNotFound      = errors.New("company not found")
	ErrBusinessAreaNotFound = errors.New("business area not found")
	ErrDbAccessFailed       = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetUsers(userIds []uuid.UUID, db *gorm.DB) ([]User, error) {
	var users []User

	result := db.Find(&users, "id IN ?", userIds)
	if result.Error != nil {
		slog.Error("sql error in get users", "error", result.Error)
		return nil, ErrDbAccessFailed
	}

	return users, nil
}

func GetProject(projectId uuid.UUID, db *gorm.DB, loadRelations bool) (Project, error) {
	var project Project

	var result *gorm.DB = db
	if loadRelations {
		result = result.
			Preload("Banners").
			Preload("Members").
			Preload("Members.User").
			Preload("Owners").
			Preload("Owners.Owner").
			Preload("Logs", func(db *gorm.DB) *gorm.DB {
				return db.Order("timestamp asc")
			})
	}
	result = result.First(&project, "id = ?", projectId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return project, ErrProjectNotFound
		}
		slog.Error("sql error in get project", "project_id", projectId, "error", result.Error)
		return project, ErrDbAccessFailed
	}

	return project, nil
}

func GetMilestone(milestoneId uuid.UUID, db *gorm.DB) (Milestone, error) {
	var milestone Milestone

	result := db.First(&milestone, "id = ?", milestoneId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return milestone, ErrMilestoneNotFound
		}
		slog.Error("sql error in get milestone", "milestone_id", milestoneId, "error", result.Error)
		return milestone, ErrDbAccessFailed
	}

	return milestone, nil
}

func GetNotification(notificationId uuid.UUID, db *gorm.DB) (Notification, error) {
	var notification Notification

	result := db.First(&notification, "id = ?", notificationId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return notification, ErrNotificationNotFound
		}
		slog.Error("sql error in get notification", "notification_id", notificationId, "error", result.Error)
		return notification, ErrDbAccessFailed
	}

	return notification, nil
}

// NotificationsEnabled reports whether the user should receive in-app and
// push notifications. Users without a stored setting default to enabled;
// lookup failures also default to enabled so delivery is never silently
// dropped on a storage error.
func NotificationsEnabled(userId uuid.UUID, db *gorm.DB) bool {
	var setting NotificationSetting

	result := db.First(&setting, "user_id = ?", userId)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Error("sql error in get notification setting", "user_id", userId, "error", result.Error)
		}
		return true
	}

	return setting.Enabled
}
