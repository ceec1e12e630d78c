package users

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/resumate/internal/auth"
	"github.com/MarcoPoloResearchLab/resumate/internal/editor"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:users_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Identity{}); err != nil {
		t.Fatalf("failed to migrate identity schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestResolveOwnerIDStripsProviderPrefix(t *testing.T) {
	service, db := newTestService(t)
	claims := auth.SessionClaims{
		UserID:          "google:12345",
		UserEmail:       "user@example.com",
		UserDisplayName: "Example User",
		UserAvatarURL:   "https://example.com/avatar.png",
	}
	owner, err := service.ResolveOwnerID(context.Background(), claims)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if owner != "12345" {
		t.Fatalf("expected canonical owner id without provider prefix, got %q", owner)
	}

	owner, err = service.ResolveOwnerID(context.Background(), claims)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if owner != "12345" {
		t.Fatalf("expected owner id to remain stable, got %q", owner)
	}
	var count int64
	if err := db.Model(&Identity{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single identity row, got %d", count)
	}
}

func TestResolveOwnerIDRejectsEmptyClaims(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.ResolveOwnerID(context.Background(), auth.SessionClaims{}); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestProfileReflectsIdentityAndUpdates(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.Profile(ctx, "nobody"); !errors.Is(err, editor.ErrProfileUnavailable) {
		t.Fatalf("expected ErrProfileUnavailable, got %v", err)
	}

	owner, err := service.ResolveOwnerID(ctx, auth.SessionClaims{
		UserID:          "google:ada",
		UserEmail:       "ada@example.com",
		UserDisplayName: "Ada Lovelace",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	phone := " 555-0100 "
	bio := "Analyst"
	if err := service.UpdateProfile(ctx, owner, ProfileUpdate{Phone: &phone, Bio: &bio}); err != nil {
		t.Fatalf("update profile failed: %v", err)
	}

	profile, err := service.Profile(ctx, owner)
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if profile.FullName != "Ada Lovelace" || profile.Email != "ada@example.com" {
		t.Fatalf("unexpected identity fields: %+v", profile)
	}
	if profile.Phone != "555-0100" || profile.Bio != "Analyst" {
		t.Fatalf("unexpected profile fields: %+v", profile)
	}

	patch := editor.PersonalInfoPatch(profile)
	if patch.Summary == nil || *patch.Summary != "Analyst" || patch.Website != nil {
		t.Fatalf("unexpected personal info patch: %+v", patch)
	}
}

func TestUpdateProfileForUnknownOwner(t *testing.T) {
	service, _ := newTestService(t)
	location := "Berlin"
	err := service.UpdateProfile(context.Background(), "ghost", ProfileUpdate{Location: &location})
	if !errors.Is(err, editor.ErrProfileUnavailable) {
		t.Fatalf("expected ErrProfileUnavailable, got %v", err)
	}
}
