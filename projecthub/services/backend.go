package services

import (
	"log"
	"net/http"
	"os"

	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/notify"
	"github.com/cerineuginga/client-backend/projecthub/storage"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type Backend struct {
	user                UserService
	role                RoleService
	company             CompanyService
	businessArea        BusinessAreaService
	project             ProjectService
	milestone           MilestoneService
	document            DocumentService
	userDocument        UserDocumentService
	finance             FinanceService
	review              ReviewService
	notification        NotificationService
	language            LanguageService
	notificationSetting NotificationSettingService

	db      *gorm.DB
	metrics *notify.Metrics
}

func NewBackend(
	db *gorm.DB, store storage.ObjectStore, push notify.PushGateway, email notify.EmailSender, userAuth auth.IdentityProvider,
) Backend {
	metrics := notify.NewMetrics()
	dispatcher := notify.NewDispatcher(db, push, email, metrics)

	return Backend{
		user:                UserService{db: db, userAuth: userAuth},
		role:                RoleService{db: db, userAuth: userAuth},
		company:             CompanyService{db: db, userAuth: userAuth},
		businessArea:        BusinessAreaService{db: db, userAuth: userAuth, dispatcher: dispatcher},
		project:             ProjectService{db: db, userAuth: userAuth, dispatcher: dispatcher, store: store},
		milestone:           MilestoneService{db: db, userAuth: userAuth, dispatcher: dispatcher},
		document:            DocumentService{db: db, userAuth: userAuth, dispatcher: dispatcher, store: store},
		userDocument:        UserDocumentService{db: db, userAuth: userAuth, dispatcher: dispatcher, store: store},
		finance:             FinanceService{db: db, userAuth: userAuth, dispatcher: dispatcher, store: store},
		review:              ReviewService{db: db, userAuth: userAuth},
		notification:        NotificationService{db: db, userAuth: userAuth},
		language:            LanguageService{db: db, userAuth: userAuth},
		notificationSetting: NotificationSettingService{db: db, userAuth: userAuth},
		db:                  db,
		metrics:             metrics,
	}
}

func (b *Backend) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", b.user.Routes())
	r.Mount("/role", b.role.Routes())
	r.Mount("/company", b.company.Routes())
	r.Mount("/business-area", b.businessArea.Routes())
	r.Mount("/project", b.project.Routes())
	r.Mount("/milestone", b.milestone.Routes())
	r.Mount("/document", b.document.Routes())
	r.Mount("/user-document", b.userDocument.Routes())
	r.Mount("/finance", b.finance.Routes())
	r.Mount("/review", b.review.Routes())
	r.Mount("/notification", b.notification.Routes())
	r.Mount("/language", b.language.Routes())
	r.Mount("/notification-setting", b.notificationSetting.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w, "ok")
	})
	r.Handle("/metrics", b.metrics.Handler())

	return r
}
