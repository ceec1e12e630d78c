package resumes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SectionType enumerates the supported section kinds.
type SectionType string

const (
	SectionPersonalInfo   SectionType = "personal_info"
	SectionEducation      SectionType = "education"
	SectionExperience     SectionType = "experience"
	SectionProjects       SectionType = "projects"
	SectionSkills         SectionType = "skills"
	SectionCertifications SectionType = "certifications"
	SectionAwards         SectionType = "awards"
	SectionCustom         SectionType = "custom"
)

var (
	// ErrUnknownSectionType indicates a section type outside the supported set.
	ErrUnknownSectionType = errors.New("resumes: unknown section type")
	// ErrContentTypeMismatch indicates content whose shape does not match the section type.
	ErrContentTypeMismatch = errors.New("resumes: content does not match section type")
)

var defaultSectionTitles = map[SectionType]string{
	SectionPersonalInfo:   "Personal Information",
	SectionEducation:      "Education",
	SectionExperience:     "Experience",
	SectionProjects:       "Projects",
	SectionSkills:         "Skills",
	SectionCertifications: "Certifications",
	SectionAwards:         "Awards",
	SectionCustom:         "Custom Section",
}

// ParseSectionType validates raw input and returns a SectionType.
func ParseSectionType(rawInput string) (SectionType, error) {
	candidate := SectionType(strings.ToLower(strings.TrimSpace(rawInput)))
	if _, ok := defaultSectionTitles[candidate]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSectionType, rawInput)
	}
	return candidate, nil
}

// DefaultTitle returns the heading a new section of this type starts with.
func (t SectionType) DefaultTitle() string {
	return defaultSectionTitles[t]
}

// SectionContent is the typed payload of a section. The concrete type always matches
// the owning section's SectionType.
type SectionContent interface {
	SectionType() SectionType
	cloneContent() SectionContent
	appendText(dst []string) []string
}

// ContentFor returns the empty content for a section type.
func ContentFor(sectionType SectionType) (SectionContent, error) {
	switch sectionType {
	case SectionPersonalInfo:
		return PersonalInfo{}, nil
	case SectionEducation:
		return EducationList{}, nil
	case SectionExperience:
		return ExperienceList{}, nil
	case SectionProjects:
		return ProjectList{}, nil
	case SectionSkills:
		return SkillList{}, nil
	case SectionCertifications:
		return CertificationList{}, nil
	case SectionAwards:
		return AwardList{}, nil
	case SectionCustom:
		return CustomBlock{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSectionType, sectionType)
	}
}

// PersonalInfo is the single contact record of a personal_info section.
type PersonalInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Website  string `json:"website"`
	LinkedIn string `json:"linkedin"`
	GitHub   string `json:"github"`
	Summary  string `json:"summary"`
}

func (PersonalInfo) SectionType() SectionType { return SectionPersonalInfo }

func (p PersonalInfo) cloneContent() SectionContent { return p }

func (p PersonalInfo) appendText(dst []string) []string {
	return append(dst, p.FullName, p.Location, p.Summary)
}

// EducationEntry is one school or degree.
type EducationEntry struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	GPA         string `json:"gpa"`
	Description string `json:"description"`
}

// EducationList is the content of an education section.
type EducationList []EducationEntry

func (EducationList) SectionType() SectionType { return SectionEducation }

func (l EducationList) cloneContent() SectionContent {
	return append(EducationList{}, l...)
}

func (l EducationList) appendText(dst []string) []string {
	for _, entry := range l {
		dst = append(dst, entry.Institution, entry.Degree, entry.Field, entry.Description)
	}
	return dst
}

// ExperienceEntry is one position held.
type ExperienceEntry struct {
	Company     string   `json:"company"`
	Position    string   `json:"position"`
	Location    string   `json:"location"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Current     bool     `json:"current"`
	Description string   `json:"description"`
	Highlights  []string `json:"highlights"`
}

// ExperienceList is the content of an experience section.
type ExperienceList []ExperienceEntry

func (ExperienceList) SectionType() SectionType { return SectionExperience }

func (l ExperienceList) cloneContent() SectionContent {
	cloned := make(ExperienceList, len(l))
	for index, entry := range l {
		entry.Highlights = cloneStrings(entry.Highlights)
		cloned[index] = entry
	}
	return cloned
}

func (l ExperienceList) appendText(dst []string) []string {
	for _, entry := range l {
		dst = append(dst, entry.Company, entry.Position, entry.Description)
		dst = append(dst, entry.Highlights...)
	}
	return dst
}

// ProjectEntry is one project.
type ProjectEntry struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	Technologies []string `json:"technologies"`
	Highlights   []string `json:"highlights"`
}

// ProjectList is the content of a projects section.
type ProjectList []ProjectEntry

func (ProjectList) SectionType() SectionType { return SectionProjects }

func (l ProjectList) cloneContent() SectionContent {
	cloned := make(ProjectList, len(l))
	for index, entry := range l {
		entry.Technologies = cloneStrings(entry.Technologies)
		entry.Highlights = cloneStrings(entry.Highlights)
		cloned[index] = entry
	}
	return cloned
}

func (l ProjectList) appendText(dst []string) []string {
	for _, entry := range l {
		dst = append(dst, entry.Name, entry.Description)
		dst = append(dst, entry.Technologies...)
		dst = append(dst, entry.Highlights...)
	}
	return dst
}

// SkillGroup is a named group of skills.
type SkillGroup struct {
	Category string   `json:"category"`
	Skills   []string `json:"skills"`
}

// SkillList is the content of a skills section.
type SkillList []SkillGroup

func (SkillList) SectionType() SectionType { return SectionSkills }

func (l SkillList) cloneContent() SectionContent {
	cloned := make(SkillList, len(l))
	for index, group := range l {
		group.Skills = cloneStrings(group.Skills)
		cloned[index] = group
	}
	return cloned
}

func (l SkillList) appendText(dst []string) []string {
	for _, group := range l {
		dst = append(dst, group.Category)
		dst = append(dst, group.Skills...)
	}
	return dst
}

// CertificationEntry is one certification.
type CertificationEntry struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
	Date   string `json:"date"`
	URL    string `json:"url"`
}

// CertificationList is the content of a certifications section.
type CertificationList []CertificationEntry

func (CertificationList) SectionType() SectionType { return SectionCertifications }

func (l CertificationList) cloneContent() SectionContent {
	return append(CertificationList{}, l...)
}

func (l CertificationList) appendText(dst []string) []string {
	for _, entry := range l {
		dst = append(dst, entry.Name, entry.Issuer)
	}
	return dst
}

// AwardEntry is one award or honor.
type AwardEntry struct {
	Title       string `json:"title"`
	Issuer      string `json:"issuer"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// AwardList is the content of an awards section.
type AwardList []AwardEntry

func (AwardList) SectionType() SectionType { return SectionAwards }

func (l AwardList) cloneContent() SectionContent {
	return append(AwardList{}, l...)
}

func (l AwardList) appendText(dst []string) []string {
	for _, entry := range l {
		dst = append(dst, entry.Title, entry.Issuer, entry.Description)
	}
	return dst
}

// CustomBlock is the free-form content of a custom section.
type CustomBlock struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (CustomBlock) SectionType() SectionType { return SectionCustom }

func (b CustomBlock) cloneContent() SectionContent { return b }

func (b CustomBlock) appendText(dst []string) []string {
	return append(dst, b.Title, b.Content)
}

// ContentPatch is a partial update for one section type.
type ContentPatch interface {
	SectionType() SectionType
	mergeInto(current SectionContent) SectionContent
}

// PersonalInfoPatch overwrites only the non-nil fields.
type PersonalInfoPatch struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Location *string `json:"location"`
	Website  *string `json:"website"`
	LinkedIn *string `json:"linkedin"`
	GitHub   *string `json:"github"`
	Summary  *string `json:"summary"`
}

func (PersonalInfoPatch) SectionType() SectionType { return SectionPersonalInfo }

func (p PersonalInfoPatch) mergeInto(current SectionContent) SectionContent {
	merged, _ := current.(PersonalInfo)
	assignString(&merged.FullName, p.FullName)
	assignString(&merged.Email, p.Email)
	assignString(&merged.Phone, p.Phone)
	assignString(&merged.Location, p.Location)
	assignString(&merged.Website, p.Website)
	assignString(&merged.LinkedIn, p.LinkedIn)
	assignString(&merged.GitHub, p.GitHub)
	assignString(&merged.Summary, p.Summary)
	return merged
}

// CustomBlockPatch overwrites only the non-nil fields.
type CustomBlockPatch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (CustomBlockPatch) SectionType() SectionType { return SectionCustom }

func (p CustomBlockPatch) mergeInto(current SectionContent) SectionContent {
	merged, _ := current.(CustomBlock)
	assignString(&merged.Title, p.Title)
	assignString(&merged.Content, p.Content)
	return merged
}

// List contents replace the whole entry list when used as a patch.

func (l EducationList) mergeInto(SectionContent) SectionContent     { return l.cloneContent() }
func (l ExperienceList) mergeInto(SectionContent) SectionContent    { return l.cloneContent() }
func (l ProjectList) mergeInto(SectionContent) SectionContent       { return l.cloneContent() }
func (l SkillList) mergeInto(SectionContent) SectionContent         { return l.cloneContent() }
func (l CertificationList) mergeInto(SectionContent) SectionContent { return l.cloneContent() }
func (l AwardList) mergeInto(SectionContent) SectionContent         { return l.cloneContent() }

// MergeContent applies patch to current, rejecting patches for another section type.
func MergeContent(current SectionContent, patch ContentPatch) (SectionContent, error) {
	if current == nil || patch == nil {
		return nil, fmt.Errorf("%w: missing content", ErrContentTypeMismatch)
	}
	if patch.SectionType() != current.SectionType() {
		return nil, fmt.Errorf("%w: %s patch for %s section", ErrContentTypeMismatch, patch.SectionType(), current.SectionType())
	}
	return patch.mergeInto(current), nil
}

// DecodeContentPatch decodes a JSON patch for the given section type.
func DecodeContentPatch(sectionType SectionType, raw []byte) (ContentPatch, error) {
	var target ContentPatch
	switch sectionType {
	case SectionPersonalInfo:
		patch := PersonalInfoPatch{}
		if err := decodeStrict(raw, &patch); err != nil {
			return nil, err
		}
		target = patch
	case SectionCustom:
		patch := CustomBlockPatch{}
		if err := decodeStrict(raw, &patch); err != nil {
			return nil, err
		}
		target = patch
	default:
		content, err := DecodeContent(sectionType, raw)
		if err != nil {
			return nil, err
		}
		patch, ok := content.(ContentPatch)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrContentTypeMismatch, sectionType)
		}
		target = patch
	}
	return target, nil
}

// DecodeContent decodes JSON content for a section type. Empty input yields the default content.
func DecodeContent(sectionType SectionType, raw []byte) (SectionContent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ContentFor(sectionType)
	}
	var (
		content SectionContent
		err     error
	)
	switch sectionType {
	case SectionPersonalInfo:
		value := PersonalInfo{}
		err = decodeStrict(trimmed, &value)
		content = value
	case SectionEducation:
		value := EducationList{}
		err = decodeStrict(trimmed, &value)
		content = value
	case SectionExperience:
		value := ExperienceList{}
		err = decodeStrict(trimmed, &value)
		content = value
	case SectionProjects:
		value := ProjectList{}
		err = decodeStrict(trimmed, &value)
		content = value
	case SectionSkills:
		value := SkillList{}
		err = decodeStrict(trimmed, &value)
		content = value
	case SectionCertifications:
		value := CertificationList{}
		err = decodeStrict(trimmed, &value)
		content = value
	case SectionAwards:
		value := AwardList{}
		err = decodeStrict(trimmed, &value)
		content = value
	case SectionCustom:
		value := CustomBlock{}
		err = decodeStrict(trimmed, &value)
		content = value
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSectionType, sectionType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrContentTypeMismatch, sectionType, err)
	}
	return content, nil
}

// Section is one independently typed block of a document.
type Section struct {
	ID      SectionID
	Type    SectionType
	Title   string
	Order   int
	Visible bool
	Content SectionContent
}

type sectionWire struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Title   string          `json:"title"`
	Order   int             `json:"order"`
	Visible bool            `json:"visible"`
	Content json.RawMessage `json:"content"`
}

// NewSection returns a visible section with default content for sectionType.
func NewSection(id SectionID, sectionType SectionType) (Section, error) {
	content, err := ContentFor(sectionType)
	if err != nil {
		return Section{}, err
	}
	return Section{
		ID:      id,
		Type:    sectionType,
		Title:   sectionType.DefaultTitle(),
		Visible: true,
		Content: content,
	}, nil
}

// Clone returns a deep copy of the section.
func (s Section) Clone() Section {
	cloned := s
	if s.Content != nil {
		cloned.Content = s.Content.cloneContent()
	}
	return cloned
}

// MarshalJSON encodes the section with its typed content.
func (s Section) MarshalJSON() ([]byte, error) {
	content := s.Content
	if content == nil {
		defaultContent, err := ContentFor(s.Type)
		if err != nil {
			return nil, err
		}
		content = defaultContent
	}
	rawContent, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sectionWire{
		ID:      s.ID.String(),
		Type:    string(s.Type),
		Title:   s.Title,
		Order:   s.Order,
		Visible: s.Visible,
		Content: rawContent,
	})
}

// UnmarshalJSON decodes a section and its content according to the declared type.
func (s *Section) UnmarshalJSON(data []byte) error {
	var wire sectionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	sectionID, err := NewSectionID(wire.ID)
	if err != nil {
		return err
	}
	sectionType, err := ParseSectionType(wire.Type)
	if err != nil {
		return err
	}
	content, err := DecodeContent(sectionType, wire.Content)
	if err != nil {
		return err
	}
	*s = Section{
		ID:      sectionID,
		Type:    sectionType,
		Title:   wire.Title,
		Order:   wire.Order,
		Visible: wire.Visible,
		Content: content,
	}
	return nil
}

func decodeStrict(raw []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func assignString(target *string, value *string) {
	if value != nil {
		*target = *value
	}
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}
