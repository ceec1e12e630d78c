package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarcoPoloResearchLab/resumate/internal/editor"
	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
	"github.com/MarcoPoloResearchLab/resumate/internal/users"
)

const maxImportBytes = 1 << 20

type createRequestPayload struct {
	Title    string `json:"title"`
	AutoFill bool   `json:"auto_fill"`
}

type titleRequestPayload struct {
	Title string `json:"title"`
}

type templateRequestPayload struct {
	TemplateID string `json:"template_id"`
}

type addSectionRequestPayload struct {
	Type resumes.SectionType `json:"type"`
}

type reorderRequestPayload struct {
	Sections []resumes.Section `json:"sections"`
}

type autoSaveRequestPayload struct {
	Enabled bool `json:"enabled"`
}

type sessionResponsePayload struct {
	Document *resumes.Document `json:"document"`
	Status   editor.SaveStatus `json:"status"`
	AutoSave bool              `json:"auto_save"`
}

type importResponsePayload struct {
	Document        resumes.Document `json:"document"`
	Warnings        []string         `json:"warnings"`
	FieldsPopulated int              `json:"fields_populated"`
}

type draftResponsePayload struct {
	Found    bool              `json:"found"`
	Document *resumes.Document `json:"document,omitempty"`
}

func (h *httpHandler) session(c *gin.Context) *editor.Session {
	return h.sessions.Session(ownerFrom(c))
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	documents, err := h.session(c).List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if documents == nil {
		documents = []resumes.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": documents})
}

func (h *httpHandler) handleCreateDocument(c *gin.Context) {
	var request createRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid_json")
		return
	}
	document, err := h.session(c).Create(c.Request.Context(), request.Title, request.AutoFill)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, document)
}

func (h *httpHandler) handleImportDocument(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		badRequest(c, "unreadable_body")
		return
	}
	outcome, err := h.session(c).Import(c.Request.Context(), payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	warnings := outcome.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusCreated, importResponsePayload{
		Document:        outcome.Document,
		Warnings:        warnings,
		FieldsPopulated: outcome.FieldsPopulated,
	})
}

func (h *httpHandler) handleLoadDocument(c *gin.Context) {
	document, err := h.session(c).Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, document)
}

func (h *httpHandler) handleDeleteDocument(c *gin.Context) {
	if err := h.session(c).Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDuplicateDocument(c *gin.Context) {
	document, err := h.session(c).Duplicate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, document)
}

func (h *httpHandler) handleRecoverDraft(c *gin.Context) {
	draft, found, err := h.session(c).RecoverDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response := draftResponsePayload{Found: found}
	if found {
		response.Document = &draft
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleListDrafts(c *gin.Context) {
	if h.drafts == nil {
		c.JSON(http.StatusOK, gin.H{"drafts": []any{}})
		return
	}
	drafts, err := h.drafts.List(c.Request.Context(), ownerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	if h.profiles == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, errorPayload{Error: "profiles_unavailable"})
		return
	}
	var update users.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, "invalid_json")
		return
	}
	if err := h.profiles.UpdateProfile(c.Request.Context(), ownerFrom(c), update); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSessionState(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessionState(h.session(c)))
}

func (h *httpHandler) sessionState(session *editor.Session) sessionResponsePayload {
	response := sessionResponsePayload{
		Status:   session.Status(),
		AutoSave: session.AutoSave(),
	}
	if document, ok := session.Document(); ok {
		response.Document = &document
	}
	return response
}

func (h *httpHandler) respondSession(c *gin.Context, session *editor.Session, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionState(session))
}

func (h *httpHandler) handleUpdateTitle(c *gin.Context) {
	var request titleRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_json")
		return
	}
	session := h.session(c)
	h.respondSession(c, session, session.UpdateTitle(request.Title))
}

func (h *httpHandler) handleUpdateStyling(c *gin.Context) {
	var patch resumes.StylingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid_json")
		return
	}
	session := h.session(c)
	h.respondSession(c, session, session.UpdateStyling(patch))
}

func (h *httpHandler) handleApplyTemplate(c *gin.Context) {
	var request templateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_json")
		return
	}
	session := h.session(c)
	h.respondSession(c, session, session.ApplyTemplate(request.TemplateID))
}

func (h *httpHandler) handleAddSection(c *gin.Context) {
	var request addSectionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_json")
		return
	}
	sectionID, err := h.session(c).AddSection(request.Type)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"section_id": sectionID})
}

func (h *httpHandler) handleReorderSections(c *gin.Context) {
	var request reorderRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_sections")
		return
	}
	session := h.session(c)
	h.respondSession(c, session, session.ReorderSections(request.Sections))
}

func (h *httpHandler) handleRemoveSection(c *gin.Context) {
	session := h.session(c)
	h.respondSession(c, session, session.RemoveSection(resumes.SectionID(c.Param("sectionID"))))
}

// handleUpdateSectionContent decodes the patch according to the target
// section's type before applying it.
func (h *httpHandler) handleUpdateSectionContent(c *gin.Context) {
	session := h.session(c)
	document, ok := session.Document()
	if !ok {
		h.respondError(c, editor.ErrNoActiveDocument)
		return
	}
	sectionID := resumes.SectionID(c.Param("sectionID"))
	section, found := document.Section(sectionID)
	if !found {
		h.respondError(c, editor.ErrSectionNotFound)
		return
	}
	raw, err := c.GetRawData()
	if err != nil || !json.Valid(raw) {
		badRequest(c, "invalid_json")
		return
	}
	patch, err := resumes.DecodeContentPatch(section.Type, raw)
	if err != nil {
		badRequest(c, "invalid_content")
		return
	}
	h.respondSession(c, session, session.UpdateSectionContent(sectionID, patch))
}

func (h *httpHandler) handleToggleVisibility(c *gin.Context) {
	visible, err := h.session(c).ToggleSectionVisibility(resumes.SectionID(c.Param("sectionID")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visible": visible})
}

func (h *httpHandler) handleSave(c *gin.Context) {
	session := h.session(c)
	h.respondSession(c, session, session.Save(c.Request.Context()))
}

func (h *httpHandler) handleSetAutoSave(c *gin.Context) {
	var request autoSaveRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_json")
		return
	}
	session := h.session(c)
	session.SetAutoSave(request.Enabled)
	c.JSON(http.StatusOK, h.sessionState(session))
}

func (h *httpHandler) handleAutofill(c *gin.Context) {
	session := h.session(c)
	h.respondSession(c, session, session.Autofill(c.Request.Context()))
}

func (h *httpHandler) handleMarkExported(c *gin.Context) {
	session := h.session(c)
	h.respondSession(c, session, session.MarkExported())
}

func (h *httpHandler) handleScore(c *gin.Context) {
	c.JSON(http.StatusOK, h.session(c).Score())
}
