package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/resumate/internal/auth"
	"github.com/MarcoPoloResearchLab/resumate/internal/editor"
	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

const (
	defaultProvider = "default"
	queryOwnerID    = "owner_id = ?"
	queryProvider   = "provider = ? AND subject = ?"
)

var _ editor.ProfileSource = (*Service)(nil)

// ServiceConfig describes the dependencies required for identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service resolves canonical owner ids and serves profiles for autofill.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// ResolveOwnerID returns the canonical owner id for the session claims, creating
// the identity mapping the first time a provider+subject pair is seen.
func (s *Service) ResolveOwnerID(ctx context.Context, claims auth.SessionClaims) (resumes.OwnerID, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cached, ok := s.cache.Load(cacheKey); ok {
		if owner, ok := cached.(resumes.OwnerID); ok {
			return owner, nil
		}
	}

	var identity Identity
	err := s.db.WithContext(ctx).
		Where(queryProvider, provider, subject).
		First(&identity).
		Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		identity = Identity{
			Provider:    provider,
			Subject:     subject,
			OwnerID:     subject,
			Email:       normalize(claims.UserEmail),
			DisplayName: normalize(claims.UserDisplayName),
			AvatarURL:   normalize(claims.UserAvatarURL),
			LastSeenAt:  s.now(),
		}
		if err := s.db.WithContext(ctx).Create(&identity).Error; err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	default:
		updates := map[string]any{"last_seen_at": s.now()}
		if email := normalize(claims.UserEmail); email != "" && email != identity.Email {
			updates["user_email"] = email
		}
		if display := normalize(claims.UserDisplayName); display != "" && display != identity.DisplayName {
			updates["user_display_name"] = display
		}
		if avatar := normalize(claims.UserAvatarURL); avatar != "" && avatar != identity.AvatarURL {
			updates["user_avatar_url"] = avatar
		}
		if err := s.db.WithContext(ctx).Model(&Identity{}).Where(queryProvider, provider, subject).Updates(updates).Error; err != nil {
			s.logger.Warn("identity refresh failed", zap.String("subject", subject), zap.Error(err))
		}
	}

	owner, err := resumes.NewOwnerID(identity.OwnerID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	s.cache.Store(cacheKey, owner)
	return owner, nil
}

// Profile returns the profile recorded for owner. Owners without an identity
// yield editor.ErrProfileUnavailable.
func (s *Service) Profile(ctx context.Context, owner resumes.OwnerID) (editor.Profile, error) {
	var identity Identity
	err := s.db.WithContext(ctx).
		Where(queryOwnerID, owner.String()).
		Order("last_seen_at DESC").
		First(&identity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return editor.Profile{}, editor.ErrProfileUnavailable
	}
	if err != nil {
		return editor.Profile{}, fmt.Errorf("%w: %v", editor.ErrProfileUnavailable, err)
	}
	return editor.Profile{
		FullName: identity.DisplayName,
		Email:    identity.Email,
		Phone:    identity.Phone,
		Location: identity.Location,
		Website:  identity.Website,
		LinkedIn: identity.LinkedIn,
		GitHub:   identity.GitHub,
		Bio:      identity.Bio,
	}, nil
}

// UpdateProfile writes the non-nil fields to every identity of owner.
func (s *Service) UpdateProfile(ctx context.Context, owner resumes.OwnerID, update ProfileUpdate) error {
	columns := update.columns()
	if len(columns) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&Identity{}).Where(queryOwnerID, owner.String()).Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return editor.ErrProfileUnavailable
	}
	return nil
}

func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := defaultProvider
	subject := normalize(claims.Subject)

	raw := normalize(claims.UserID)
	if raw != "" {
		if strings.Contains(raw, ":") {
			segments := strings.SplitN(raw, ":", 2)
			if normalize(segments[0]) != "" && normalize(segments[1]) != "" {
				provider = normalize(segments[0])
				subject = normalize(segments[1])
			}
		} else if subject == "" {
			subject = raw
		}
	}

	if subject == "" {
		subject = normalize(claims.UserEmail)
	}

	return provider, subject
}
