package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/resumate/internal/auth"
	"github.com/MarcoPoloResearchLab/resumate/internal/database"
	"github.com/MarcoPoloResearchLab/resumate/internal/editor"
	"github.com/MarcoPoloResearchLab/resumate/internal/imports"
	"github.com/MarcoPoloResearchLab/resumate/internal/localcache"
	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
	"github.com/MarcoPoloResearchLab/resumate/internal/users"
)

const (
	testSigningSecret = "server-test-secret"
	testUserID        = "user-1"
)

type testEnv struct {
	handler  http.Handler
	issuer   *auth.TokenIssuer
	store    *resumes.Store
	registry *SessionRegistry
}

type counterIDs struct {
	next atomic.Int64
}

func (c *counterIDs) NewID() (string, error) {
	return fmt.Sprintf("id-%d", c.next.Add(1)), nil
}

// newTestEnv wires the handler to sqlite-backed stores. Auto-save is off so
// every write happens inside a request.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&localcache.Entry{}); err != nil {
		t.Fatalf("failed to migrate cache table: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := resumes.NewStore(resumes.StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	cache, err := localcache.NewSQLiteCache(localcache.SQLiteConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build cache: %v", err)
	}
	identities, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}
	ids := &counterIDs{}
	importer, err := imports.NewImporter(imports.Config{IDProvider: ids})
	if err != nil {
		t.Fatalf("failed to build importer: %v", err)
	}
	service, err := editor.NewService(editor.ServiceConfig{
		Store:            store,
		Cache:            cache,
		Profiles:         identities,
		Importer:         importer,
		IDProvider:       ids,
		AutoSaveDisabled: true,
	})
	if err != nil {
		t.Fatalf("failed to build editor service: %v", err)
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to build issuer: %v", err)
	}

	registry := NewSessionRegistry(service)
	handler, err := NewHTTPHandler(Dependencies{
		Validator: validator,
		Owners:    identities,
		Sessions:  registry,
		Profiles:  identities,
		Drafts:    cache,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testEnv{handler: handler, issuer: issuer, store: store, registry: registry}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := e.issuer.Issue(auth.SessionClaims{
		UserID:          userID,
		UserEmail:       userID + "@example.com",
		UserDisplayName: "Test " + userID,
	})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch typed := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(typed))
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(recorder.Body.Bytes(), &value); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return value
}
