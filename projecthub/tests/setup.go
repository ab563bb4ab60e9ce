package tests

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cerineuginga/client-backend/projecthub/auth"
	"github.com/cerineuginga/client-backend/projecthub/notify"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/projecthub/services"
	"github.com/cerineuginga/client-backend/projecthub/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	backend services.Backend
	api     chi.Router
	db      *gorm.DB
	storage storage.ObjectStore
	push    *pushStub
	email   *emailStub
}

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	// Each test gets its own named in-memory database. The shared cache plus
	// a single pooled connection keeps every query, including reads the
	// dispatcher makes outside the request transaction, on the same database.
	dsn := fmt.Sprintf("file:%v?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	sqlDb, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDb.SetMaxOpenConns(1)

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
		t.Fatal(err)
	}

	storagePath := filepath.Join(t.TempDir(), "storage")
	err = os.MkdirAll(storagePath, 0777)
	if err != nil {
		t.Fatalf("error creating storage directory: %v", err)
	}

	store := storage.NewSharedDisk(storagePath, "http://localhost/files")

	secret := []byte("290zcv02ai249")

	userAuth, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicProviderArgs{
			Secret:        secret,
			AdminUsername: adminUsername,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	push := &pushStub{}
	email := &emailStub{}

	backend := services.NewBackend(db, store, push, email, userAuth)

	return &testEnv{
		backend: backend,
		api:     backend.Routes(),
		db:      db,
		storage: store,
		push:    push,
		email:   email,
	}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) newUser(username string) (client, error) {
	c := t.newClient()
	login, err := c.signup(username, username+"@mail.com", username+"_password")
	if err != nil {
		return client{}, err
	}

	err = c.login(login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

func (t *testEnv) adminClient() (client, error) {
	c := t.newClient()
	err := c.login(loginInfo{Email: adminEmail, Password: adminPassword})
	return c, err
}

type pushCall struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

type pushStub struct {
	mu    sync.Mutex
	calls []pushCall
}

func (p *pushStub) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (notify.PushResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushCall{Tokens: tokens, Title: title, Body: body, Data: data})
	return notify.PushResult{SuccessCount: len(tokens)}, nil
}

func (p *pushStub) Calls() []pushCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushCall{}, p.calls...)
}

type emailCall struct {
	To      string
	Subject string
	Body    string
}

type emailStub struct {
	mu    sync.Mutex
	calls []emailCall
}

func (e *emailStub) Send(to, subject, htmlBody string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, emailCall{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (e *emailStub) Calls() []emailCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]emailCall{}, e.calls...)
}
