package versions

import (
	"log"

	"gorm.io/gorm"
)

// Adds the revision counter and first-update flag to projects that were
// created before optimistic concurrency was introduced, and backfills the
// notification settings table so every existing user has an explicit row.
func Migration_1_project_revisions(txn *gorm.DB) error {
	log.Println("migrating table 'projects'")

	type Project struct {
		Revision           int64 `gorm:"not null;default:0"`
		FirstUpdatePending bool  `gorm:"not null;default:true"`
	}

	if !txn.Migrator().HasColumn(&Project{}, "revision") {
		if err := txn.Migrator().AddColumn(&Project{}, "Revision"); err != nil {
			return err
		}
	}
	if !txn.Migrator().HasColumn(&Project{}, "first_update_pending") {
		if err := txn.Migrator().AddColumn(&Project{}, "FirstUpdatePending"); err != nil {
			return err
		}
	}

	// Projects that already have logs have clearly been updated before.
	err := txn.Exec(`
		UPDATE projects SET first_update_pending = false
		WHERE id IN (SELECT DISTINCT project_id FROM project_logs)
	`).Error
	if err != nil {
		return err
	}

	log.Println("migrating table 'notification_settings'")

	type NotificationSetting struct{}

	if txn.Migrator().HasTable(&NotificationSetting{}) {
		err = txn.Exec(`
			INSERT INTO notification_settings (user_id, enabled)
			SELECT id, true FROM users
			WHERE id NOT IN (SELECT user_id FROM notification_settings)
		`).Error
		if err != nil {
			return err
		}
	}

	log.Println("table migrations complete")

	return nil
}
