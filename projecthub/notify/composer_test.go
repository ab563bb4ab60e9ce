package notify

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, English, ParseLanguage("english"))
	assert.Equal(t, English, ParseLanguage("  English "))
	assert.Equal(t, Portuguese, ParseLanguage("portuguese"))
	assert.Equal(t, Portuguese, ParseLanguage(""))
	assert.Equal(t, Portuguese, ParseLanguage("french"))
}

func TestValidLanguage(t *testing.T) {
	assert.True(t, ValidLanguage("english"))
	assert.True(t, ValidLanguage("Portuguese"))
	assert.False(t, ValidLanguage(""))
	assert.False(t, ValidLanguage("spanish"))
}

func TestEventType(t *testing.T) {
	event := Event{Kind: EventCreated, Entity: EntityProject}
	assert.Equal(t, "project_created", event.Type())

	event = Event{Kind: EventReviewRequest, Entity: EntityProject}
	assert.Equal(t, "project_review_request", event.Type())

	event = Event{Kind: EventDeleted, Entity: EntityMilestone}
	assert.Equal(t, "milestone_deleted", event.Type())
}

func TestComposeUsesLanguageTemplates(t *testing.T) {
	event := Event{
		Kind:          EventCreated,
		Entity:        EntityProject,
		EntityName:    "Harbour Expansion",
		PerformerName: "alice",
	}

	pt := Compose(event, Portuguese)
	assert.Equal(t, "Novo Projeto", pt.Title)
	assert.Contains(t, pt.Description, "Harbour Expansion")
	assert.Contains(t, pt.Description, "alice")

	en := Compose(event, English)
	assert.Equal(t, "New Project", en.Title)
	assert.Contains(t, en.Description, "Harbour Expansion")
	assert.Contains(t, en.Description, "alice")

	assert.NotEqual(t, pt.Description, en.Description)
}

func TestComposeActivationDistinctFromUpdate(t *testing.T) {
	activation := Event{
		Kind:          EventActivated,
		Entity:        EntityProject,
		EntityName:    "Crane Installation",
		PerformerName: "alice",
	}
	update := Event{
		Kind:          EventUpdated,
		Entity:        EntityProject,
		EntityName:    "Crane Installation",
		PerformerName: "alice",
	}

	assert.Equal(t, "project_activated", activation.Type())

	pt := Compose(activation, Portuguese)
	assert.Equal(t, "Novo Projeto Criado", pt.Title)
	assert.NotEqual(t, Compose(update, Portuguese).Title, pt.Title)

	en := Compose(activation, English)
	assert.Equal(t, "Project Creation", en.Title)
	assert.Contains(t, en.Description, "Crane Installation")
}

func TestComposeFallsBackToGenericTemplate(t *testing.T) {
	// user_document has no "updated" entry in the template table.
	event := Event{
		Kind:          EventUpdated,
		Entity:        EntityUserDocument,
		EntityName:    "passport.png",
		PerformerName: "bob",
	}

	message := Compose(event, English)
	assert.NotEmpty(t, message.Title)
	assert.Contains(t, message.Description, "passport.png")
}

func TestComposeIncludesChanges(t *testing.T) {
	var changes ChangeList
	changes.Add("Estado alterado de 'Pending' para 'Ongoing'", "Status changed from 'Pending' to 'Ongoing'")

	event := Event{
		Kind:          EventUpdated,
		Entity:        EntityProject,
		EntityName:    "Dock Renovation",
		PerformerName: "carol",
		Changes:       changes,
	}

	pt := Compose(event, Portuguese)
	assert.Contains(t, pt.LengthyDesc, "Estado alterado")

	en := Compose(event, English)
	assert.Contains(t, en.LengthyDesc, "Status changed")
	assert.NotContains(t, en.LengthyDesc, "Estado alterado")
}

func TestComposeEmailBody(t *testing.T) {
	event := Event{
		Kind:        EventCreated,
		Entity:      EntityProject,
		EntityName:  "Quay Wall",
		ProjectName: "Quay Wall",
	}

	pt := Compose(event, Portuguese)
	assert.Contains(t, pt.EmailBody, "Equipa de Projetos")

	en := Compose(event, English)
	assert.Contains(t, en.EmailBody, "Project Team")
}

func TestChangeListForLanguage(t *testing.T) {
	var changes ChangeList
	assert.True(t, changes.Empty())

	changes.Add("mudança", "change")
	assert.False(t, changes.Empty())
	assert.Equal(t, []string{"mudança"}, changes.ForLanguage(Portuguese))
	assert.Equal(t, []string{"change"}, changes.ForLanguage(English))
}

func TestExcludeUser(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	users := makeUsers(a, b)
	filtered := ExcludeUser(users, a)
	assert.Len(t, filtered, 1)
	assert.Equal(t, b, filtered[0].Id)

	// Excluding an id that is not present leaves the list unchanged.
	filtered = ExcludeUser(users, uuid.New())
	assert.Len(t, filtered, 2)
}
