package notify

import (
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectRecipients resolves the users a project event should notify: the
// project's members, then its owners, deduped by user id, with the
// performing user appended if not already present. Order is stable so
// delivery and tests are deterministic.
func ProjectRecipients(project schema.Project, performedBy uuid.UUID, db *gorm.DB) ([]schema.User, error) {
	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0, len(project.Members)+len(project.Owners)+1)

	for _, member := range project.Members {
		if !seen[member.UserId] {
			seen[member.UserId] = true
			ids = append(ids, member.UserId)
		}
	}
	for _, owner := range project.Owners {
		if !seen[owner.OwnerId] {
			seen[owner.OwnerId] = true
			ids = append(ids, owner.OwnerId)
		}
	}
	if performedBy != uuid.Nil && !seen[performedBy] {
		ids = append(ids, performedBy)
	}

	users, err := schema.GetUsers(ids, db)
	if err != nil {
		return nil, err
	}

	byId := make(map[uuid.UUID]schema.User, len(users))
	for _, user := range users {
		byId[user.Id] = user
	}

	// Users deleted since the project snapshot was loaded are skipped.
	ordered := make([]schema.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := byId[id]; ok {
			ordered = append(ordered, user)
		}
	}

	return ordered, nil
}

// ExcludeUser filters one user out of a recipient list, used to skip the
// performer on channels that should not echo their own action back.
func ExcludeUser(recipients []schema.User, userId uuid.UUID) []schema.User {
	filtered := make([]schema.User, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient.Id != userId {
			filtered = append(filtered, recipient)
		}
	}
	return filtered
}

// AdminRecipients resolves all admin users, used for events that target
// administrators rather than project members.
func AdminRecipients(db *gorm.DB) ([]schema.User, error) {
	var admins []schema.User
	result := db.Find(&admins, "is_admin = ?", true)
	if result.Error != nil {
		return nil, schema.ErrDbAccessFailed
	}
	return admins, nil
}
