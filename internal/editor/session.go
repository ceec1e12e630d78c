package editor

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
	"github.com/MarcoPoloResearchLab/resumate/internal/scoring"
)

const (
	opCreate           = "editor.create"
	opLoad             = "editor.load"
	opDelete           = "editor.delete"
	opDuplicate        = "editor.duplicate"
	opList             = "editor.list"
	opImport           = "editor.import"
	opRecoverDraft     = "editor.recover_draft"
	opUpdateTitle      = "editor.update_title"
	opUpdateStyling    = "editor.update_styling"
	opApplyTemplate    = "editor.apply_template"
	opAddSection       = "editor.add_section"
	opRemoveSection    = "editor.remove_section"
	opReorderSections  = "editor.reorder_sections"
	opUpdateContent    = "editor.update_section_content"
	opToggleVisibility = "editor.toggle_section_visibility"
	opMarkExported     = "editor.mark_exported"
	opAutofill         = "editor.autofill"
)

// RevertNotice is published when a failed debounced write rolls the document back.
const RevertNotice = "changes reverted due to save error"

var errMissingImporter = errors.New("importer is not configured")

// ImportOutcome describes a successfully imported document.
type ImportOutcome struct {
	Document        resumes.Document
	Warnings        []string
	FieldsPopulated int
}

// Session holds at most one active document and the coordinator persisting it.
type Session struct {
	service *Service
	owner   resumes.OwnerID

	mu          sync.Mutex
	active      *resumes.Document
	lastGood    *resumes.Document
	coordinator *SaveCoordinator
	autoSave    bool
}

// Owner returns the identity the session acts for.
func (s *Session) Owner() resumes.OwnerID {
	return s.owner
}

// Create inserts a new document seeded with default sections and makes it active.
func (s *Session) Create(ctx context.Context, title string, autoFill bool) (resumes.Document, error) {
	if err := s.requireOwner(opCreate); err != nil {
		return resumes.Document{}, err
	}
	id, err := s.newDocumentID()
	if err != nil {
		return resumes.Document{}, newServiceError(opCreate, "id_generation_failed", err)
	}
	document, err := resumes.NewDocument(id, s.owner, title, s.service.clock().UTC(), s.service.idProvider)
	if err != nil {
		return resumes.Document{}, newServiceError(opCreate, "id_generation_failed", err)
	}
	if autoFill {
		if err := s.applyProfile(ctx, &document); err != nil && !errors.Is(err, ErrProfileUnavailable) {
			s.service.logError(opCreate, "autofill_failed", err, zap.String("document_id", id.String()))
		}
	}

	if _, err := s.service.store.Insert(ctx, document); err != nil {
		s.service.logError(opCreate, "insert_failed", err, zap.String("document_id", id.String()))
		return resumes.Document{}, newServiceError(opCreate, "insert_failed", classify(ErrPersistFailed, err))
	}
	s.activate(ctx, document)
	return document.Clone(), nil
}

// Load fetches the document from the remote store and makes it active.
func (s *Session) Load(ctx context.Context, rawID string) (resumes.Document, error) {
	if err := s.requireOwner(opLoad); err != nil {
		return resumes.Document{}, err
	}
	document, err := s.selectOwned(ctx, opLoad, rawID)
	if err != nil {
		return resumes.Document{}, err
	}
	if err := document.Validate(); err != nil {
		s.service.logError(opLoad, "invalid_document", err, zap.String("document_id", document.ID.String()))
		return resumes.Document{}, newServiceError(opLoad, "invalid_document", classify(ErrLoadFailed, err))
	}
	s.activate(ctx, document)
	return document.Clone(), nil
}

// Delete removes the document remotely and clears its cached draft. Deleting
// the active document ends the session's editing of it without a final flush.
func (s *Session) Delete(ctx context.Context, rawID string) error {
	if err := s.requireOwner(opDelete); err != nil {
		return err
	}
	document, err := s.selectOwned(ctx, opDelete, rawID)
	if err != nil {
		return err
	}
	if err := s.service.store.Delete(ctx, document.ID); err != nil {
		if errors.Is(err, resumes.ErrDocumentNotFound) {
			return newServiceError(opDelete, "not_found", classify(ErrNotFound, err))
		}
		s.service.logError(opDelete, "delete_failed", err, zap.String("document_id", document.ID.String()))
		return newServiceError(opDelete, "delete_failed", classify(ErrPersistFailed, err))
	}
	if err := s.service.cache.Delete(ctx, document.ID); err != nil {
		s.service.logError(opDelete, "cache_clear_failed", err, zap.String("document_id", document.ID.String()))
	}

	s.mu.Lock()
	var previous *SaveCoordinator
	if s.active != nil && s.active.ID == document.ID {
		previous = s.coordinator
		s.active = nil
		s.lastGood = nil
		s.coordinator = nil
	}
	s.mu.Unlock()
	if previous != nil {
		previous.SetAutoSave(false)
		if err := previous.Close(ctx); err != nil {
			return newServiceError(opDelete, "close_failed", err)
		}
	}
	return nil
}

// Duplicate inserts a copy of the document under a fresh id. The active
// document is copied from memory so unsaved edits carry over.
func (s *Session) Duplicate(ctx context.Context, rawID string) (resumes.Document, error) {
	if err := s.requireOwner(opDuplicate); err != nil {
		return resumes.Document{}, err
	}
	source, ok := s.activeCopy(rawID)
	if !ok {
		selected, err := s.selectOwned(ctx, opDuplicate, rawID)
		if err != nil {
			return resumes.Document{}, err
		}
		source = selected
	}
	id, err := s.newDocumentID()
	if err != nil {
		return resumes.Document{}, newServiceError(opDuplicate, "id_generation_failed", err)
	}
	duplicate, err := resumes.Duplicate(source, id, s.service.clock().UTC(), s.service.idProvider)
	if err != nil {
		return resumes.Document{}, newServiceError(opDuplicate, "id_generation_failed", err)
	}
	if _, err := s.service.store.Insert(ctx, duplicate); err != nil {
		s.service.logError(opDuplicate, "insert_failed", err, zap.String("source_id", source.ID.String()))
		return resumes.Document{}, newServiceError(opDuplicate, "insert_failed", classify(ErrPersistFailed, err))
	}
	return duplicate, nil
}

// List returns the owner's documents, most recently updated first.
func (s *Session) List(ctx context.Context) ([]resumes.Document, error) {
	if err := s.requireOwner(opList); err != nil {
		return nil, err
	}
	documents, err := s.service.store.SelectByOwner(ctx, s.owner)
	if err != nil {
		s.service.logError(opList, "select_failed", err, zap.String("owner_id", s.owner.String()))
		return nil, newServiceError(opList, "select_failed", classify(ErrLoadFailed, err))
	}
	return documents, nil
}

// Import converts payload through the configured importer, inserts the result
// as a new document and makes it active.
func (s *Session) Import(ctx context.Context, payload []byte) (ImportOutcome, error) {
	if err := s.requireOwner(opImport); err != nil {
		return ImportOutcome{}, err
	}
	if s.service.importer == nil {
		return ImportOutcome{}, newServiceError(opImport, "missing_importer", errMissingImporter)
	}
	result := s.service.importer.Import(payload, s.owner)
	if !result.Success || result.Document == nil {
		return ImportOutcome{}, newServiceError(opImport, "validation_failed", &ImportValidationError{
			Fields:   result.Errors,
			Warnings: result.Warnings,
		})
	}

	document := result.Document.Clone()
	id, err := s.newDocumentID()
	if err != nil {
		return ImportOutcome{}, newServiceError(opImport, "id_generation_failed", err)
	}
	now := s.service.clock().UTC()
	document.ID = id
	document.OwnerID = s.owner
	document.CreatedAt = now
	document.UpdatedAt = now
	document.Renumber()
	resumes.RecomputeMetadata(&document)
	if err := document.Validate(); err != nil {
		return ImportOutcome{}, newServiceError(opImport, "invalid_document", classify(ErrImportValidationFailed, err))
	}

	if _, err := s.service.store.Insert(ctx, document); err != nil {
		s.service.logError(opImport, "insert_failed", err, zap.String("document_id", id.String()))
		return ImportOutcome{}, newServiceError(opImport, "insert_failed", classify(ErrPersistFailed, err))
	}
	s.activate(ctx, document)
	return ImportOutcome{
		Document:        document.Clone(),
		Warnings:        result.Warnings,
		FieldsPopulated: result.FieldsPopulated,
	}, nil
}

// RecoverDraft reads the write-ahead snapshot retained for a document, if any.
func (s *Session) RecoverDraft(ctx context.Context, rawID string) (resumes.Document, bool, error) {
	if err := s.requireOwner(opRecoverDraft); err != nil {
		return resumes.Document{}, false, err
	}
	id, err := resumes.NewDocumentID(rawID)
	if err != nil {
		return resumes.Document{}, false, newServiceError(opRecoverDraft, "invalid_document_id", classify(ErrNotFound, err))
	}
	draft, found, err := s.service.cache.Get(ctx, id)
	if err != nil {
		return resumes.Document{}, false, newServiceError(opRecoverDraft, "cache_read_failed", classify(ErrLoadFailed, err))
	}
	if !found || draft.OwnerID != s.owner {
		return resumes.Document{}, false, nil
	}
	return draft, true, nil
}

// UpdateTitle replaces the document title.
func (s *Session) UpdateTitle(title string) error {
	return s.mutate(opUpdateTitle, func(document *resumes.Document) error {
		document.Title = strings.TrimSpace(title)
		return nil
	})
}

// UpdateStyling shallow-merges patch into the styling configuration.
func (s *Session) UpdateStyling(patch resumes.StylingPatch) error {
	return s.mutate(opUpdateStyling, func(document *resumes.Document) error {
		document.Styling = document.Styling.Merge(patch)
		return nil
	})
}

// ApplyTemplate switches the presentation template.
func (s *Session) ApplyTemplate(templateID string) error {
	return s.mutate(opApplyTemplate, func(document *resumes.Document) error {
		document.TemplateID = resumes.TemplateID(strings.TrimSpace(templateID))
		return nil
	})
}

// AddSection appends a section of sectionType with default content.
func (s *Session) AddSection(sectionType resumes.SectionType) (resumes.SectionID, error) {
	rawID, err := s.service.idProvider.NewID()
	if err != nil {
		return "", newServiceError(opAddSection, "id_generation_failed", err)
	}
	sectionID, err := resumes.NewSectionID(rawID)
	if err != nil {
		return "", newServiceError(opAddSection, "id_generation_failed", err)
	}
	err = s.mutate(opAddSection, func(document *resumes.Document) error {
		_, addErr := document.AddSection(sectionID, sectionType)
		return addErr
	})
	if err != nil {
		return "", err
	}
	s.publish(EventSectionAdded, sectionID, "")
	return sectionID, nil
}

// RemoveSection deletes a section and renumbers the remainder.
func (s *Session) RemoveSection(id resumes.SectionID) error {
	return s.mutate(opRemoveSection, func(document *resumes.Document) error {
		return document.RemoveSection(id)
	})
}

// ReorderSections replaces the section list with ordered.
func (s *Session) ReorderSections(ordered []resumes.Section) error {
	return s.mutate(opReorderSections, func(document *resumes.Document) error {
		return document.ReorderSections(ordered)
	})
}

// UpdateSectionContent merges patch into the section's content.
func (s *Session) UpdateSectionContent(id resumes.SectionID, patch resumes.ContentPatch) error {
	return s.mutate(opUpdateContent, func(document *resumes.Document) error {
		return document.UpdateSectionContent(id, patch)
	})
}

// ToggleSectionVisibility flips a section's visibility and returns the new value.
func (s *Session) ToggleSectionVisibility(id resumes.SectionID) (bool, error) {
	var visible bool
	err := s.mutate(opToggleVisibility, func(document *resumes.Document) error {
		toggled, toggleErr := document.ToggleSectionVisibility(id)
		visible = toggled
		return toggleErr
	})
	return visible, err
}

// MarkExported records an export of the active document.
func (s *Session) MarkExported() error {
	now := s.service.clock().UTC()
	return s.mutate(opMarkExported, func(document *resumes.Document) error {
		resumes.MarkExported(document, now)
		return nil
	})
}

// Autofill copies the owner's profile into the personal_info section.
func (s *Session) Autofill(ctx context.Context) error {
	if err := s.requireOwner(opAutofill); err != nil {
		return err
	}
	profile, err := s.fetchProfile(ctx)
	if err != nil {
		return newServiceError(opAutofill, "profile_unavailable", err)
	}
	return s.mutate(opAutofill, func(document *resumes.Document) error {
		return applyProfilePatch(document, profile)
	})
}

// Document returns a deep copy of the active document.
func (s *Session) Document() (resumes.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return resumes.Document{}, false
	}
	return s.active.Clone(), true
}

// Status reports the save status of the active document.
func (s *Session) Status() SaveStatus {
	s.mu.Lock()
	coordinator := s.coordinator
	s.mu.Unlock()
	if coordinator == nil {
		return StatusIdle
	}
	return coordinator.Status()
}

// Save writes the active document immediately. Failures are returned to the
// caller, keep the cached snapshot and do not roll back.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return newServiceError(operationManualSave, "no_active_document", ErrNoActiveDocument)
	}
	coordinator := s.coordinator
	s.mu.Unlock()

	err := coordinator.saveManual(ctx, func() (resumes.Document, bool) {
		return s.manualSnapshot(coordinator)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoActiveDocument) {
		return newServiceError(operationManualSave, "no_active_document", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return newServiceError(operationManualSave, "canceled", err)
	}
	return newServiceError(operationManualSave, "persist_failed", classify(ErrPersistFailed, err))
}

// manualSnapshot copies the active document and drops the snapshots it
// supersedes in one step, so no mutation slips between the two.
func (s *Session) manualSnapshot(coordinator *SaveCoordinator) (resumes.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coordinator != coordinator || s.active == nil {
		return resumes.Document{}, false
	}
	coordinator.cancelPending()
	return s.active.Clone(), true
}

// Score grades the active document, or an empty document when none is active.
func (s *Session) Score() scoring.Report {
	s.mu.Lock()
	var snapshot *resumes.Document
	if s.active != nil {
		cloned := s.active.Clone()
		snapshot = &cloned
	}
	s.mu.Unlock()
	return s.service.scorer.Score(snapshot)
}

// AutoSave reports whether debounced saving is enabled.
func (s *Session) AutoSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSave
}

// SetAutoSave toggles debounced saving for this and future documents of the session.
func (s *Session) SetAutoSave(enabled bool) {
	s.mu.Lock()
	s.autoSave = enabled
	coordinator := s.coordinator
	s.mu.Unlock()
	if coordinator != nil {
		coordinator.SetAutoSave(enabled)
	}
}

// Subscribe streams the owner's events until ctx ends.
func (s *Session) Subscribe(ctx context.Context) (<-chan Event, func()) {
	return s.service.dispatcher.Subscribe(ctx, s.owner)
}

// Wait blocks until the active document has no write in flight.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	coordinator := s.coordinator
	s.mu.Unlock()
	if coordinator == nil {
		return nil
	}
	return coordinator.Wait(ctx)
}

// Close flushes pending changes when auto-save is on and releases the document.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	coordinator := s.coordinator
	s.active = nil
	s.lastGood = nil
	s.coordinator = nil
	s.mu.Unlock()
	if coordinator == nil {
		return nil
	}
	return coordinator.Close(ctx)
}

// mutate applies change to a copy of the active document. On success the
// pre-image becomes the rollback slot and a snapshot is queued for saving.
func (s *Session) mutate(operation string, change func(*resumes.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return newServiceError(operation, "no_active_document", ErrNoActiveDocument)
	}

	working := s.active.Clone()
	if err := change(&working); err != nil {
		return newServiceError(operation, mutationReason(err), err)
	}
	working.UpdatedAt = s.service.clock().UTC()
	resumes.RecomputeMetadata(&working)

	previous := s.active.Clone()
	s.lastGood = &previous
	s.active = &working
	s.coordinator.enqueue(working.Clone())
	s.publishLocked(working.OwnerID, working.ID, EventDocumentChanged, "", "")
	return nil
}

// rollback restores the pre-image of the most recent mutation after a failed
// debounced write. Queued snapshots are replaced so a drain write persists
// the restored state.
func (s *Session) rollback(coordinator *SaveCoordinator, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coordinator != coordinator || s.active == nil || s.lastGood == nil {
		return
	}
	restored := s.lastGood.Clone()
	s.active = &restored
	coordinator.replaceQueued(restored.Clone())
	s.service.logger.Warn("document reverted after failed save",
		zap.String("document_id", restored.ID.String()),
		zap.Error(cause),
	)
	s.publishLocked(restored.OwnerID, restored.ID, EventReverted, "", RevertNotice)
}

func (s *Session) activate(ctx context.Context, document resumes.Document) {
	active := document.Clone()
	s.mu.Lock()
	previous := s.coordinator
	s.active = &active
	s.lastGood = nil
	s.coordinator = s.service.newCoordinator(active, s.autoSave, s.rollback)
	s.mu.Unlock()
	if previous != nil {
		if err := previous.Close(ctx); err != nil {
			s.service.logError("editor.activate", "previous_close_failed", err)
		}
	}
}

func (s *Session) activeCopy(rawID string) (resumes.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.ID.String() != strings.TrimSpace(rawID) {
		return resumes.Document{}, false
	}
	return s.active.Clone(), true
}

func (s *Session) selectOwned(ctx context.Context, operation, rawID string) (resumes.Document, error) {
	id, err := resumes.NewDocumentID(rawID)
	if err != nil {
		return resumes.Document{}, newServiceError(operation, "invalid_document_id", classify(ErrNotFound, err))
	}
	document, err := s.service.store.Select(ctx, id)
	if err != nil {
		if errors.Is(err, resumes.ErrDocumentNotFound) {
			return resumes.Document{}, newServiceError(operation, "not_found", classify(ErrNotFound, err))
		}
		s.service.logError(operation, "select_failed", err, zap.String("document_id", id.String()))
		return resumes.Document{}, newServiceError(operation, "select_failed", classify(ErrLoadFailed, err))
	}
	if document.OwnerID != s.owner {
		return resumes.Document{}, newServiceError(operation, "not_found", ErrNotFound)
	}
	return document, nil
}

func (s *Session) requireOwner(operation string) error {
	if _, err := resumes.NewOwnerID(s.owner.String()); err != nil {
		return newServiceError(operation, "unauthorized", classify(ErrUnauthorized, err))
	}
	return nil
}

func (s *Session) newDocumentID() (resumes.DocumentID, error) {
	raw, err := s.service.idProvider.NewID()
	if err != nil {
		return "", err
	}
	return resumes.NewDocumentID(raw)
}

func (s *Session) fetchProfile(ctx context.Context) (Profile, error) {
	if s.service.profiles == nil {
		return Profile{}, ErrProfileUnavailable
	}
	return s.service.profiles.Profile(ctx, s.owner)
}

func (s *Session) applyProfile(ctx context.Context, document *resumes.Document) error {
	profile, err := s.fetchProfile(ctx)
	if err != nil {
		return err
	}
	if err := applyProfilePatch(document, profile); err != nil {
		return err
	}
	resumes.RecomputeMetadata(document)
	return nil
}

func (s *Session) publish(eventType string, sectionID resumes.SectionID, notice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return
	}
	s.publishLocked(s.active.OwnerID, s.active.ID, eventType, sectionID, notice)
}

func (s *Session) publishLocked(owner resumes.OwnerID, documentID resumes.DocumentID, eventType string, sectionID resumes.SectionID, notice string) {
	s.service.dispatcher.Publish(Event{
		OwnerID:    owner,
		EventType:  eventType,
		DocumentID: documentID,
		SectionID:  sectionID,
		Notice:     notice,
		Timestamp:  s.service.clock().UTC(),
	})
}

func mutationReason(err error) string {
	switch {
	case errors.Is(err, resumes.ErrSectionNotFound):
		return "section_not_found"
	case errors.Is(err, resumes.ErrContentTypeMismatch):
		return "content_type_mismatch"
	case errors.Is(err, resumes.ErrUnknownSectionType):
		return "unknown_section_type"
	case errors.Is(err, resumes.ErrReorderMismatch), errors.Is(err, resumes.ErrDuplicateSectionID):
		return "invalid_order"
	default:
		return "invalid_input"
	}
}
