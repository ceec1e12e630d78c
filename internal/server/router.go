package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/resumate/internal/auth"
	"github.com/MarcoPoloResearchLab/resumate/internal/localcache"
	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
	"github.com/MarcoPoloResearchLab/resumate/internal/users"
)

const (
	ownerIDContextKey = "resumate_owner_id"
	accessTokenQuery  = "access_token"
)

var (
	errMissingValidator     = errors.New("session validator dependency required")
	errMissingOwnerResolver = errors.New("owner resolver dependency required")
	errMissingSessions      = errors.New("session registry dependency required")
)

// SessionValidator extracts and validates session claims from a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	ValidateToken(token string) (auth.SessionClaims, error)
}

// OwnerResolver maps validated claims to a canonical owner id.
type OwnerResolver interface {
	ResolveOwnerID(ctx context.Context, claims auth.SessionClaims) (resumes.OwnerID, error)
}

// ProfileUpdater persists the owner's autofill profile.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, owner resumes.OwnerID, update users.ProfileUpdate) error
}

// DraftLister lists snapshots retained in the local cache.
type DraftLister interface {
	List(ctx context.Context, owner resumes.OwnerID) ([]localcache.Draft, error)
}

type Dependencies struct {
	Validator      SessionValidator
	Owners         OwnerResolver
	Sessions       *SessionRegistry
	Profiles       ProfileUpdater
	Drafts         DraftLister
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Validator == nil {
		return nil, errMissingValidator
	}
	if deps.Owners == nil {
		return nil, errMissingOwnerResolver
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	handler := &httpHandler{
		validator: deps.Validator,
		owners:    deps.Owners,
		sessions:  deps.Sessions,
		profiles:  deps.Profiles,
		drafts:    deps.Drafts,
		logger:    logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/documents", handler.handleListDocuments)
	protected.POST("/documents", handler.handleCreateDocument)
	protected.POST("/documents/import", handler.handleImportDocument)
	protected.GET("/documents/:id", handler.handleLoadDocument)
	protected.DELETE("/documents/:id", handler.handleDeleteDocument)
	protected.POST("/documents/:id/duplicate", handler.handleDuplicateDocument)
	protected.GET("/documents/:id/draft", handler.handleRecoverDraft)
	protected.GET("/drafts", handler.handleListDrafts)
	protected.PATCH("/profile", handler.handleUpdateProfile)

	protected.GET("/session", handler.handleSessionState)
	protected.PATCH("/session/title", handler.handleUpdateTitle)
	protected.PATCH("/session/styling", handler.handleUpdateStyling)
	protected.PUT("/session/template", handler.handleApplyTemplate)
	protected.POST("/session/sections", handler.handleAddSection)
	protected.PUT("/session/sections", handler.handleReorderSections)
	protected.DELETE("/session/sections/:sectionID", handler.handleRemoveSection)
	protected.PATCH("/session/sections/:sectionID/content", handler.handleUpdateSectionContent)
	protected.POST("/session/sections/:sectionID/visibility", handler.handleToggleVisibility)
	protected.POST("/session/save", handler.handleSave)
	protected.PUT("/session/autosave", handler.handleSetAutoSave)
	protected.POST("/session/autofill", handler.handleAutofill)
	protected.POST("/session/export", handler.handleMarkExported)
	protected.GET("/session/score", handler.handleScore)
	protected.GET("/session/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	validator SessionValidator
	owners    OwnerResolver
	sessions  *SessionRegistry
	profiles  ProfileUpdater
	drafts    DraftLister
	logger    *zap.Logger
}

func corsMiddleware(origins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

// authorizeRequest accepts a bearer header, the session cookie, or an
// access_token query parameter for clients that cannot set headers.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	var (
		claims auth.SessionClaims
		err    error
	)
	if token := strings.TrimSpace(c.Query(accessTokenQuery)); token != "" {
		claims, err = h.validator.ValidateToken(token)
	} else {
		claims, err = h.validator.ValidateRequest(c.Request)
	}
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	owner, err := h.owners.ResolveOwnerID(c.Request.Context(), claims)
	if err != nil {
		h.logger.Warn("owner resolution failed", zap.String("token_owner", claims.Owner()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(ownerIDContextKey, owner)
	c.Next()
}

func ownerFrom(c *gin.Context) resumes.OwnerID {
	value, ok := c.Get(ownerIDContextKey)
	if !ok {
		return ""
	}
	owner, _ := value.(resumes.OwnerID)
	return owner
}
