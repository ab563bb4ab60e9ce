package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/notify"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/projecthub/services"
	"github.com/cerineuginga/client-backend/projecthub/storage"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/cerineuginga/client-backend/utils/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type backendEnv struct {
	PublicHostname string
	ShareDir       string
	JwtSecret      string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	IdentityProvider      string
	KeycloakServerUrl     string
	KeycloakAdminUsername string
	keycloakAdminPassword string
	SslCertPath           string
	SslKeyPath            string

	FcmEndpoint  string
	FcmServerKey string

	SmtpHost     string
	SmtpPort     int
	SmtpUsername string
	smtpPassword string
	SmtpFrom     string

	DatabaseUri string
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

/**
 * ==========================================================================
 * ==== All variables that are used by the backend must be loaded here.  ====
 * ==== This is to make the data flow clear so that a user can see what  ====
 * ==== variables are exposed, and how the values are propagated through ====
 * ==== the system.                                                      ====
 * ==========================================================================
 */
func loadEnv() backendEnv {
	missingEnvs := []string{}

	requiredEnv := func(key string) string {
		env := os.Getenv(key)
		if env == "" {
			missingEnvs = append(missingEnvs, key)
			slog.Error("missing required env variable", "key", key)
		}
		return env
	}

	env := backendEnv{
		PublicHostname: requiredEnv("PUBLIC_HOSTNAME"),
		ShareDir:       requiredEnv("SHARE_DIR"),
		JwtSecret:      requiredEnv("JWT_SECRET"),

		AdminUsername: requiredEnv("ADMIN_USERNAME"),
		AdminEmail:    requiredEnv("ADMIN_MAIL"),
		AdminPassword: requiredEnv("ADMIN_PASSWORD"),

		IdentityProvider:      requiredEnv("IDENTITY_PROVIDER"),
		KeycloakServerUrl:     utils.OptionalEnv("KEYCLOAK_SERVER_URL"),
		KeycloakAdminUsername: utils.OptionalEnv("KEYCLOAK_ADMIN_USER"),
		keycloakAdminPassword: utils.OptionalEnv("KEYCLOAK_ADMIN_PASSWORD"),
		SslCertPath:           utils.OptionalEnv("SSL_CERT_PATH"),
		SslKeyPath:            utils.OptionalEnv("SSL_KEY_PATH"),

		FcmEndpoint:  utils.OptionalEnv("FCM_ENDPOINT"),
		FcmServerKey: utils.OptionalEnv("FCM_SERVER_KEY"),

		SmtpHost:     utils.OptionalEnv("SMTP_HOST"),
		SmtpPort:     utils.IntEnvVar("SMTP_PORT", 587),
		SmtpUsername: utils.OptionalEnv("SMTP_USERNAME"),
		smtpPassword: utils.OptionalEnv("SMTP_PASSWORD"),
		SmtpFrom:     utils.OptionalEnv("SMTP_FROM"),

		DatabaseUri: requiredEnv("DATABASE_URI"),
	}

	if len(missingEnvs) > 0 {
		log.Fatalf("The following required env vars are missing: %s", strings.Join(missingEnvs, ", "))
	}

	if env.IdentityProvider == "keycloak" && env.KeycloakServerUrl == "" {
		log.Fatal("KEYCLOAK_SERVER_URL must be specified when IDENTITY_PROVIDER is keycloak")
	}

	return env
}

func (env *backendEnv) postgresDsn() string {
	parts, err := url.Parse(env.DatabaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(
		&schema.User{}, &schema.Role{}, &schema.Company{},
		&schema.BusinessArea{}, &schema.UserBusinessArea{},
		&schema.Project{}, &schema.ProjectBanner{}, &schema.ProjectMember{},
		&schema.ProjectOwner{}, &schema.ProjectLog{},
		&schema.Milestone{}, &schema.Document{}, &schema.UserDocument{},
		&schema.FinanceDocument{}, &schema.Review{},
		&schema.Notification{}, &schema.LanguagePreference{}, &schema.NotificationSetting{},
	)
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")
	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	env := loadEnv()

	err := os.MkdirAll(filepath.Join(env.ShareDir, "logs/"), 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(env.ShareDir, "logs/backend.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(env.ShareDir, "logs/audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	logging.Setup(logFile)

	db := initDb(env.postgresDsn())

	store := storage.NewSharedDisk(
		filepath.Join(env.ShareDir, "files"),
		fmt.Sprintf("https://%v/files", env.PublicHostname),
	)

	var push notify.PushGateway
	if env.FcmServerKey != "" {
		push, err = notify.NewFcmGateway(notify.FcmArgs{
			Endpoint:  env.FcmEndpoint,
			ServerKey: env.FcmServerKey,
		})
		if err != nil {
			log.Fatalf("error creating push gateway: %v", err)
		}
	} else {
		slog.Warn("FCM_SERVER_KEY not specified, push notifications are disabled")
		push = notify.NoopPushGateway{}
	}

	var email notify.EmailSender
	if env.SmtpHost != "" {
		email, err = notify.NewSmtpSender(notify.SmtpArgs{
			Host:     env.SmtpHost,
			Port:     env.SmtpPort,
			Username: env.SmtpUsername,
			Password: env.smtpPassword,
			From:     env.SmtpFrom,
		})
		if err != nil {
			log.Fatalf("error creating smtp sender: %v", err)
		}
	} else {
		slog.Warn("SMTP_HOST not specified, email notifications are disabled")
		email = notify.NoopEmailSender{}
	}

	var identityProvider auth.IdentityProvider
	if env.IdentityProvider == "keycloak" {
		identityProvider, err = auth.NewKeycloakIdentityProvider(
			db,
			auth.NewAuditLogger(auditLog),
			auth.KeycloakArgs{
				KeycloakServerUrl:     env.KeycloakServerUrl,
				KeycloakAdminUsername: env.KeycloakAdminUsername,
				KeycloakAdminPassword: env.keycloakAdminPassword,
				AdminUsername:         env.AdminUsername,
				AdminEmail:            env.AdminEmail,
				AdminPassword:         env.AdminPassword,
				PublicHostname:        env.PublicHostname,
				SslCertPath:           env.SslCertPath,
				SslKeyPath:            env.SslKeyPath,
			},
		)
		if err != nil {
			log.Fatalf("error creating keycloak identity provider: %v", err)
		}
	} else {
		identityProvider, err = auth.NewBasicIdentityProvider(
			db,
			auth.NewAuditLogger(auditLog),
			auth.BasicProviderArgs{
				Secret:        []byte(env.JwtSecret),
				AdminUsername: env.AdminUsername,
				AdminEmail:    env.AdminEmail,
				AdminPassword: env.AdminPassword,
			},
		)
		if err != nil {
			log.Fatalf("error creating basic identity provider: %v", err)
		}
	}

	backend := services.NewBackend(db, store, push, email, identityProvider)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{fmt.Sprintf("https://%v", env.PublicHostname)},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", backend.Routes())

	slog.Info("starting server", "port", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
