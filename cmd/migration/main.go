package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/cerineuginga/client-backend/cmd/migration/versions"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func postgresDsn(uri string) string {
	if uri == "" {
		log.Fatalf("Missing --db_uri arg")
	}
	parts, err := url.Parse(uri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func allModels() []any {
	return []any{
		&schema.User{}, &schema.Role{}, &schema.Company{},
		&schema.BusinessArea{}, &schema.UserBusinessArea{},
		&schema.Project{}, &schema.ProjectBanner{}, &schema.ProjectMember{},
		&schema.ProjectOwner{}, &schema.ProjectLog{},
		&schema.Milestone{}, &schema.Document{}, &schema.UserDocument{},
		&schema.FinanceDocument{}, &schema.Review{},
		&schema.Notification{}, &schema.LanguagePreference{}, &schema.NotificationSetting{},
	}
}

func main() {
	dbUri := flag.String("db_uri", "", "Database URI")
	flag.Parse()

	db, err := gorm.Open(postgres.Open(postgresDsn(*dbUri)), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	migration := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			// Placeholder to represent the schema state before versioned migrations.
			ID:      "0",
			Migrate: func(*gorm.DB) error { return nil },
		},
		{
			ID:      "1",
			Migrate: versions.Migration_1_project_revisions,
			// Rollback is not supported for this migration since there is no
			// sensible way to reverse the backfills.
		},
	})

	migration.InitSchema(func(txn *gorm.DB) error {
		log.Println("clean database detected, running full schema initialization")

		return txn.AutoMigrate(allModels()...)
	})

	if err := migration.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Println("migration completed successfully")
}
