package notify

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	// EventActivated marks the first update a project receives after
	// creation, announced with its own content instead of the ordinary
	// update wording.
	EventActivated     EventKind = "activated"
	EventDeleted       EventKind = "deleted"
	EventReviewRequest EventKind = "review_request"
)

type EntityKind string

const (
	EntityProject         EntityKind = "project"
	EntityMilestone       EntityKind = "milestone"
	EntityDocument        EntityKind = "document"
	EntityUserDocument    EntityKind = "user_document"
	EntityFinanceDocument EntityKind = "finance_document"
	EntityBusinessArea    EntityKind = "business_area"
)

// ChangeList carries pre-built human readable change descriptions in both
// languages so the composer never has to translate at dispatch time.
type ChangeList struct {
	Portuguese []string
	English    []string
}

func (c *ChangeList) Add(portuguese, english string) {
	c.Portuguese = append(c.Portuguese, portuguese)
	c.English = append(c.English, english)
}

func (c ChangeList) Empty() bool {
	return len(c.Portuguese) == 0
}

func (c ChangeList) ForLanguage(lang Language) []string {
	if lang == English {
		return c.English
	}
	return c.Portuguese
}

type Event struct {
	Kind   EventKind
	Entity EntityKind

	EntityName  string
	ProjectId   *uuid.UUID
	ProjectName string

	PerformedBy   uuid.UUID
	PerformerName string

	// ExcludePerformer drops the performing user from push and email
	// delivery so they are not echoed their own action.
	ExcludePerformer bool

	Changes ChangeList
}

// Type is the notification type stored with in-app records, e.g.
// "project_updated".
func (e Event) Type() string {
	return fmt.Sprintf("%v_%v", e.Entity, e.Kind)
}

type templateText struct {
	title       string
	description string
}

type eventTemplate struct {
	portuguese templateText
	english    templateText
}

func (t eventTemplate) forLanguage(lang Language) templateText {
	if lang == English {
		return t.english
	}
	return t.portuguese
}

// Every supported (entity, event) pair has an entry with both language
// variants. Compose falls back to a generic template for pairs outside this
// table so an unmapped event still produces a readable message.
var templates = map[EntityKind]map[EventKind]eventTemplate{
	EntityProject: {
		EventCreated: {
			portuguese: templateText{"Novo Projeto", "O projeto %v foi criado por %v."},
			english:    templateText{"New Project", "Project %v was created by %v."},
		},
		EventUpdated: {
			portuguese: templateText{"Projeto Atualizado", "O projeto %v foi atualizado por %v."},
			english:    templateText{"Project Updated", "Project %v was updated by %v."},
		},
		EventActivated: {
			portuguese: templateText{"Novo Projeto Criado", "O projeto %v está agora em curso. Atualizado por %v."},
			english:    templateText{"Project Creation", "Project %v is now underway. Updated by %v."},
		},
		EventDeleted: {
			portuguese: templateText{"Projeto Eliminado", "O projeto %v foi eliminado por %v."},
			english:    templateText{"Project Deleted", "Project %v was deleted by %v."},
		},
		EventReviewRequest: {
			portuguese: templateText{"Pedido de Avaliação", "O projeto %v foi concluído por %v. Partilhe a sua avaliação."},
			english:    templateText{"Review Request", "Project %v was completed by %v. Please share your review."},
		},
	},
	EntityMilestone: {
		EventCreated: {
			portuguese: templateText{"Novo Marco", "O marco %v foi adicionado por %v."},
			english:    templateText{"New Milestone", "Milestone %v was added by %v."},
		},
		EventUpdated: {
			portuguese: templateText{"Marco Atualizado", "O marco %v foi atualizado por %v."},
			english:    templateText{"Milestone Updated", "Milestone %v was updated by %v."},
		},
		EventDeleted: {
			portuguese: templateText{"Marco Eliminado", "O marco %v foi eliminado por %v."},
			english:    templateText{"Milestone Deleted", "Milestone %v was deleted by %v."},
		},
	},
	EntityDocument: {
		EventCreated: {
			portuguese: templateText{"Novo Documento", "O documento %v foi carregado por %v."},
			english:    templateText{"New Document", "Document %v was uploaded by %v."},
		},
		EventUpdated: {
			portuguese: templateText{"Documento Atualizado", "O documento %v foi atualizado por %v."},
			english:    templateText{"Document Updated", "Document %v was updated by %v."},
		},
		EventDeleted: {
			portuguese: templateText{"Documento Eliminado", "O documento %v foi eliminado por %v."},
			english:    templateText{"Document Deleted", "Document %v was deleted by %v."},
		},
	},
	EntityUserDocument: {
		EventCreated: {
			portuguese: templateText{"Novo Documento de Utilizador", "O documento %v foi carregado por %v."},
			english:    templateText{"New User Document", "Document %v was uploaded by %v."},
		},
		EventDeleted: {
			portuguese: templateText{"Documento de Utilizador Eliminado", "O documento %v foi eliminado por %v."},
			english:    templateText{"User Document Deleted", "Document %v was deleted by %v."},
		},
	},
	EntityFinanceDocument: {
		EventCreated: {
			portuguese: templateText{"Novo Documento Financeiro", "O documento financeiro %v foi carregado por %v."},
			english:    templateText{"New Finance Document", "Finance document %v was uploaded by %v."},
		},
		EventUpdated: {
			portuguese: templateText{"Documento Financeiro Atualizado", "O documento financeiro %v foi atualizado por %v."},
			english:    templateText{"Finance Document Updated", "Finance document %v was updated by %v."},
		},
		EventDeleted: {
			portuguese: templateText{"Documento Financeiro Eliminado", "O documento financeiro %v foi eliminado por %v."},
			english:    templateText{"Finance Document Deleted", "Finance document %v was deleted by %v."},
		},
	},
	EntityBusinessArea: {
		EventCreated: {
			portuguese: templateText{"Nova Área de Negócio", "A área de negócio %v foi criada por %v."},
			english:    templateText{"New Business Area", "Business area %v was created by %v."},
		},
		EventUpdated: {
			portuguese: templateText{"Área de Negócio Atualizada", "A área de negócio %v foi atualizada por %v."},
			english:    templateText{"Business Area Updated", "Business area %v was updated by %v."},
		},
		EventDeleted: {
			portuguese: templateText{"Área de Negócio Eliminada", "A área de negócio %v foi eliminada por %v."},
			english:    templateText{"Business Area Deleted", "Business area %v was deleted by %v."},
		},
	},
}

var genericTemplate = eventTemplate{
	portuguese: templateText{"Notificação", "%v foi alterado por %v."},
	english:    templateText{"Notification", "%v was changed by %v."},
}

type Message struct {
	Title       string
	Description string
	LengthyDesc string

	EmailSubject string
	EmailBody    string
}

// Compose renders an event into the language-specific content delivered on
// every channel.
func Compose(event Event, lang Language) Message {
	template, ok := templates[event.Entity][event.Kind]
	if !ok {
		template = genericTemplate
	}
	text := template.forLanguage(lang)

	description := fmt.Sprintf(text.description, event.EntityName, event.PerformerName)

	lengthyDesc := description
	if changes := event.Changes.ForLanguage(lang); len(changes) > 0 {
		lengthyDesc = strings.Join(changes, "; ")
	}

	return Message{
		Title:        text.title,
		Description:  description,
		LengthyDesc:  lengthyDesc,
		EmailSubject: fmt.Sprintf("%v: %v", text.title, event.EntityName),
		EmailBody:    emailBody(text.title, description, event.Changes.ForLanguage(lang), lang),
	}
}

func emailBody(title, description string, changes []string, lang Language) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<html><body><h2>%v</h2><p>%v</p>", title, description))
	if len(changes) > 0 {
		b.WriteString("<ul>")
		for _, change := range changes {
			b.WriteString(fmt.Sprintf("<li>%v</li>", change))
		}
		b.WriteString("</ul>")
	}
	if lang == English {
		b.WriteString("<p>Project Team</p>")
	} else {
		b.WriteString("<p>Equipa de Projetos</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
