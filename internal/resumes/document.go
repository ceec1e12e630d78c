package resumes

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultDocumentTitle = "Untitled Resume"

var (
	// ErrSectionNotFound indicates that no section carries the requested identifier.
	ErrSectionNotFound = errors.New("resumes: section not found")
	// ErrDuplicateSectionID indicates two sections sharing one identifier.
	ErrDuplicateSectionID = errors.New("resumes: duplicate section id")
	// ErrSectionOrder indicates section order values that do not match array positions.
	ErrSectionOrder = errors.New("resumes: section order is not contiguous")
	// ErrReorderMismatch indicates a reorder list that is not a permutation of the current sections.
	ErrReorderMismatch = errors.New("resumes: reorder list does not match current sections")
)

// defaultSectionTypes are seeded into every new document, in this order.
var defaultSectionTypes = []SectionType{
	SectionPersonalInfo,
	SectionEducation,
	SectionExperience,
	SectionSkills,
}

// IDProvider issues unique identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// StylingConfig holds presentation parameters.
type StylingConfig struct {
	PrimaryColor    string  `json:"primary_color"`
	SecondaryColor  string  `json:"secondary_color"`
	TextColor       string  `json:"text_color"`
	BackgroundColor string  `json:"background_color"`
	FontFamily      string  `json:"font_family"`
	HeadingFont     string  `json:"heading_font"`
	FontSize        float64 `json:"font_size"`
	LineHeight      float64 `json:"line_height"`
	SectionSpacing  int     `json:"section_spacing"`
	PageMargin      int     `json:"page_margin"`
}

// DefaultStyling returns the styling every new document starts with.
func DefaultStyling() StylingConfig {
	return StylingConfig{
		PrimaryColor:    "#1f2937",
		SecondaryColor:  "#2563eb",
		TextColor:       "#111827",
		BackgroundColor: "#ffffff",
		FontFamily:      "Inter",
		HeadingFont:     "Inter",
		FontSize:        11,
		LineHeight:      1.4,
		SectionSpacing:  16,
		PageMargin:      40,
	}
}

// StylingPatch overwrites only the non-nil fields of a StylingConfig.
type StylingPatch struct {
	PrimaryColor    *string  `json:"primary_color"`
	SecondaryColor  *string  `json:"secondary_color"`
	TextColor       *string  `json:"text_color"`
	BackgroundColor *string  `json:"background_color"`
	FontFamily      *string  `json:"font_family"`
	HeadingFont     *string  `json:"heading_font"`
	FontSize        *float64 `json:"font_size"`
	LineHeight      *float64 `json:"line_height"`
	SectionSpacing  *int     `json:"section_spacing"`
	PageMargin      *int     `json:"page_margin"`
}

// Merge returns the styling with patch applied.
func (s StylingConfig) Merge(patch StylingPatch) StylingConfig {
	merged := s
	assignString(&merged.PrimaryColor, patch.PrimaryColor)
	assignString(&merged.SecondaryColor, patch.SecondaryColor)
	assignString(&merged.TextColor, patch.TextColor)
	assignString(&merged.BackgroundColor, patch.BackgroundColor)
	assignString(&merged.FontFamily, patch.FontFamily)
	assignString(&merged.HeadingFont, patch.HeadingFont)
	if patch.FontSize != nil {
		merged.FontSize = *patch.FontSize
	}
	if patch.LineHeight != nil {
		merged.LineHeight = *patch.LineHeight
	}
	if patch.SectionSpacing != nil {
		merged.SectionSpacing = *patch.SectionSpacing
	}
	if patch.PageMargin != nil {
		merged.PageMargin = *patch.PageMargin
	}
	return merged
}

// Metadata holds figures derived from document content plus export bookkeeping.
type Metadata struct {
	WordCount      int        `json:"word_count"`
	PageCount      int        `json:"page_count"`
	ExportCount    int        `json:"export_count"`
	LastExportedAt *time.Time `json:"last_exported_at,omitempty"`
}

// Document is the structured resume being edited.
type Document struct {
	ID         DocumentID    `json:"id"`
	OwnerID    OwnerID       `json:"owner_id"`
	Title      string        `json:"title"`
	TemplateID TemplateID    `json:"template_id"`
	Sections   []Section     `json:"sections"`
	Styling    StylingConfig `json:"styling"`
	Metadata   Metadata      `json:"metadata"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// NewDocument returns a document seeded with the default sections.
func NewDocument(id DocumentID, owner OwnerID, title string, now time.Time, ids IDProvider) (Document, error) {
	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == "" {
		trimmedTitle = defaultDocumentTitle
	}
	document := Document{
		ID:        id,
		OwnerID:   owner,
		Title:     trimmedTitle,
		Sections:  make([]Section, 0, len(defaultSectionTypes)),
		Styling:   DefaultStyling(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	for _, sectionType := range defaultSectionTypes {
		sectionID, err := newSectionID(ids)
		if err != nil {
			return Document{}, err
		}
		if _, err := document.AddSection(sectionID, sectionType); err != nil {
			return Document{}, err
		}
	}
	RecomputeMetadata(&document)
	return document, nil
}

// Duplicate copies sections, styling and template into a new document with fresh
// identifiers and cleared export bookkeeping.
func Duplicate(source Document, id DocumentID, now time.Time, ids IDProvider) (Document, error) {
	duplicate := source.Clone()
	duplicate.ID = id
	duplicate.Title = strings.TrimSpace(source.Title + " (Copy)")
	duplicate.CreatedAt = now.UTC()
	duplicate.UpdatedAt = now.UTC()
	duplicate.Metadata.ExportCount = 0
	duplicate.Metadata.LastExportedAt = nil
	for index := range duplicate.Sections {
		sectionID, err := newSectionID(ids)
		if err != nil {
			return Document{}, err
		}
		duplicate.Sections[index].ID = sectionID
	}
	duplicate.Renumber()
	RecomputeMetadata(&duplicate)
	return duplicate, nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	cloned := d
	if d.Sections != nil {
		cloned.Sections = make([]Section, len(d.Sections))
		for index, section := range d.Sections {
			cloned.Sections[index] = section.Clone()
		}
	}
	if d.Metadata.LastExportedAt != nil {
		exportedAt := *d.Metadata.LastExportedAt
		cloned.Metadata.LastExportedAt = &exportedAt
	}
	return cloned
}

// SectionIndex returns the position of the section with id, or -1.
func (d *Document) SectionIndex(id SectionID) int {
	for index, section := range d.Sections {
		if section.ID == id {
			return index
		}
	}
	return -1
}

// Section returns a copy of the section with id.
func (d *Document) Section(id SectionID) (Section, bool) {
	index := d.SectionIndex(id)
	if index < 0 {
		return Section{}, false
	}
	return d.Sections[index].Clone(), true
}

// AddSection appends a section with default content for sectionType.
func (d *Document) AddSection(id SectionID, sectionType SectionType) (Section, error) {
	if d.SectionIndex(id) >= 0 {
		return Section{}, fmt.Errorf("%w: %s", ErrDuplicateSectionID, id)
	}
	section, err := NewSection(id, sectionType)
	if err != nil {
		return Section{}, err
	}
	section.Order = len(d.Sections)
	d.Sections = append(d.Sections, section)
	return section.Clone(), nil
}

// RemoveSection deletes the section and renumbers the rest.
func (d *Document) RemoveSection(id SectionID) error {
	index := d.SectionIndex(id)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, id)
	}
	remaining := make([]Section, 0, len(d.Sections)-1)
	remaining = append(remaining, d.Sections[:index]...)
	remaining = append(remaining, d.Sections[index+1:]...)
	d.Sections = remaining
	d.Renumber()
	return nil
}

// ReorderSections replaces the section list with ordered, renumbering by position.
// ordered must hold exactly the current section identifiers.
func (d *Document) ReorderSections(ordered []Section) error {
	if len(ordered) != len(d.Sections) {
		return fmt.Errorf("%w: expected %d sections, got %d", ErrReorderMismatch, len(d.Sections), len(ordered))
	}
	seen := make(map[SectionID]struct{}, len(ordered))
	replacement := make([]Section, 0, len(ordered))
	for _, section := range ordered {
		if _, duplicate := seen[section.ID]; duplicate {
			return fmt.Errorf("%w: %s", ErrDuplicateSectionID, section.ID)
		}
		seen[section.ID] = struct{}{}
		if d.SectionIndex(section.ID) < 0 {
			return fmt.Errorf("%w: unknown section %s", ErrReorderMismatch, section.ID)
		}
		if err := checkContentShape(section); err != nil {
			return err
		}
		replacement = append(replacement, section.Clone())
	}
	d.Sections = replacement
	d.Renumber()
	return nil
}

// UpdateSectionContent merges patch into the content of section id.
func (d *Document) UpdateSectionContent(id SectionID, patch ContentPatch) error {
	index := d.SectionIndex(id)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, id)
	}
	merged, err := MergeContent(d.Sections[index].Content, patch)
	if err != nil {
		return err
	}
	d.Sections[index].Content = merged
	return nil
}

// ToggleSectionVisibility flips the visible flag and returns the new value.
func (d *Document) ToggleSectionVisibility(id SectionID) (bool, error) {
	index := d.SectionIndex(id)
	if index < 0 {
		return false, fmt.Errorf("%w: %s", ErrSectionNotFound, id)
	}
	d.Sections[index].Visible = !d.Sections[index].Visible
	return d.Sections[index].Visible, nil
}

// Renumber sets every section's order to its array position.
func (d *Document) Renumber() {
	for index := range d.Sections {
		d.Sections[index].Order = index
	}
}

// Validate checks order contiguity, identifier uniqueness and content shape.
func (d *Document) Validate() error {
	seen := make(map[SectionID]struct{}, len(d.Sections))
	for index, section := range d.Sections {
		if section.Order != index {
			return fmt.Errorf("%w: section %s has order %d at position %d", ErrSectionOrder, section.ID, section.Order, index)
		}
		if _, duplicate := seen[section.ID]; duplicate {
			return fmt.Errorf("%w: %s", ErrDuplicateSectionID, section.ID)
		}
		seen[section.ID] = struct{}{}
		if err := checkContentShape(section); err != nil {
			return err
		}
	}
	return nil
}

func checkContentShape(section Section) error {
	if _, err := ParseSectionType(string(section.Type)); err != nil {
		return err
	}
	if section.Content == nil {
		return fmt.Errorf("%w: section %s has no content", ErrContentTypeMismatch, section.ID)
	}
	if section.Content.SectionType() != section.Type {
		return fmt.Errorf("%w: section %s is %s but holds %s content", ErrContentTypeMismatch, section.ID, section.Type, section.Content.SectionType())
	}
	return nil
}

func newSectionID(ids IDProvider) (SectionID, error) {
	if ids == nil {
		return "", fmt.Errorf("%w: id provider missing", ErrInvalidSectionID)
	}
	raw, err := ids.NewID()
	if err != nil {
		return "", err
	}
	return NewSectionID(raw)
}
