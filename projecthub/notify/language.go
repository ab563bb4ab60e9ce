package notify

import (
	"log/slog"
	"strings"

	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Language string

const (
	Portuguese Language = "portuguese"
	English    Language = "english"
)

// ParseLanguage maps a stored preference onto the closed language set.
// Anything unrecognized falls back to Portuguese, the default for new users.
func ParseLanguage(value string) Language {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(English):
		return English
	default:
		return Portuguese
	}
}

func ValidLanguage(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(English), string(Portuguese):
		return true
	}
	return false
}

// ResolveLanguages returns the preferred language for every requested user
// in a single query. Users without a stored preference get Portuguese. A
// lookup failure also resolves every user to Portuguese so notification
// delivery never fails on a preference read.
func ResolveLanguages(userIds []uuid.UUID, db *gorm.DB) map[uuid.UUID]Language {
	languages := make(map[uuid.UUID]Language, len(userIds))
	for _, id := range userIds {
		languages[id] = Portuguese
	}

	if len(userIds) == 0 {
		return languages
	}

	var preferences []schema.LanguagePreference
	result := db.Find(&preferences, "user_id IN ?", userIds)
	if result.Error != nil {
		slog.Error("sql error resolving language preferences", "error", result.Error)
		return languages
	}

	for _, pref := range preferences {
		languages[pref.UserId] = ParseLanguage(pref.Language)
	}

	return languages
}
