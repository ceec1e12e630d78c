package resumes

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestNewDocumentSeedsDefaultSections(t *testing.T) {
	document := mustDocument(t, "Draft")

	expected := []SectionType{SectionPersonalInfo, SectionEducation, SectionExperience, SectionSkills}
	if len(document.Sections) != len(expected) {
		t.Fatalf("expected %d sections, got %d", len(expected), len(document.Sections))
	}
	for index, sectionType := range expected {
		section := document.Sections[index]
		if section.Type != sectionType {
			t.Fatalf("expected %s at %d, got %s", sectionType, index, section.Type)
		}
		if !section.Visible {
			t.Fatalf("expected section %s to start visible", section.ID)
		}
		if section.Content.SectionType() != sectionType {
			t.Fatalf("default content for %s has type %s", sectionType, section.Content.SectionType())
		}
	}
	assertContiguous(t, document)
	if document.Styling != DefaultStyling() {
		t.Fatalf("expected default styling")
	}
}

func TestNewDocumentDefaultsEmptyTitle(t *testing.T) {
	document := mustDocument(t, "   ")
	if document.Title != defaultDocumentTitle {
		t.Fatalf("expected default title, got %q", document.Title)
	}
}

func TestDraftScenarioKeepsOrderContiguous(t *testing.T) {
	document := mustDocument(t, "Draft")

	if _, err := document.AddSection("section-new", SectionExperience); err != nil {
		t.Fatalf("add section failed: %v", err)
	}
	var skillsID SectionID
	for _, section := range document.Sections {
		if section.Type == SectionSkills {
			skillsID = section.ID
		}
	}
	if err := document.RemoveSection(skillsID); err != nil {
		t.Fatalf("remove section failed: %v", err)
	}

	if len(document.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(document.Sections))
	}
	assertContiguous(t, document)
	experienceCount := 0
	for _, section := range document.Sections {
		if section.Type == SectionSkills {
			t.Fatalf("skills section should be gone")
		}
		if section.Type == SectionExperience {
			experienceCount++
		}
	}
	if experienceCount != 2 {
		t.Fatalf("expected seeded plus added experience sections, got %d", experienceCount)
	}
}

func TestRandomStructuralOperationsKeepOrderContiguous(t *testing.T) {
	document := mustDocument(t, "Fuzz")
	ids := &sequentialIDs{prefix: "fuzz"}
	random := rand.New(rand.NewSource(42))
	types := []SectionType{SectionProjects, SectionAwards, SectionCustom, SectionCertifications}

	for step := 0; step < 300; step++ {
		switch random.Intn(3) {
		case 0:
			id, _ := ids.NewID()
			if _, err := document.AddSection(SectionID(id), types[random.Intn(len(types))]); err != nil {
				t.Fatalf("add failed at step %d: %v", step, err)
			}
		case 1:
			if len(document.Sections) == 0 {
				continue
			}
			target := document.Sections[random.Intn(len(document.Sections))].ID
			if err := document.RemoveSection(target); err != nil {
				t.Fatalf("remove failed at step %d: %v", step, err)
			}
		default:
			shuffled := make([]Section, len(document.Sections))
			copy(shuffled, document.Sections)
			random.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			if err := document.ReorderSections(shuffled); err != nil {
				t.Fatalf("reorder failed at step %d: %v", step, err)
			}
		}
		assertContiguous(t, document)
	}
}

func TestReorderSectionsAppliesCallerOrdering(t *testing.T) {
	document := mustDocument(t, "Draft")
	reversed := make([]Section, 0, len(document.Sections))
	for index := len(document.Sections) - 1; index >= 0; index-- {
		reversed = append(reversed, document.Sections[index])
	}

	if err := document.ReorderSections(reversed); err != nil {
		t.Fatalf("reorder failed: %v", err)
	}
	if document.Sections[0].Type != SectionSkills || document.Sections[3].Type != SectionPersonalInfo {
		t.Fatalf("unexpected order after reorder: %s ... %s", document.Sections[0].Type, document.Sections[3].Type)
	}
	assertContiguous(t, document)
}

func TestReorderSectionsRejectsPartialOrMismatchedLists(t *testing.T) {
	document := mustDocument(t, "Draft")
	before := document.Clone()

	tests := []struct {
		name    string
		ordered []Section
		want    error
	}{
		{name: "partial", ordered: document.Sections[:2], want: ErrReorderMismatch},
		{name: "duplicate", ordered: []Section{document.Sections[0], document.Sections[0], document.Sections[1], document.Sections[2]}, want: ErrDuplicateSectionID},
		{name: "mismatched-content", ordered: func() []Section {
			sections := before.Clone().Sections
			sections[0].Content = SkillList{}
			return sections
		}(), want: ErrContentTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := document.ReorderSections(tt.ordered)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(document.Sections) != len(before.Sections) {
				t.Fatalf("rejected reorder must not change sections")
			}
			assertContiguous(t, document)
		})
	}
}

func TestRemoveSectionUnknownID(t *testing.T) {
	document := mustDocument(t, "Draft")
	if err := document.RemoveSection("missing"); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
}

func TestAddSectionRejectsDuplicateID(t *testing.T) {
	document := mustDocument(t, "Draft")
	existing := document.Sections[0].ID
	if _, err := document.AddSection(existing, SectionCustom); !errors.Is(err, ErrDuplicateSectionID) {
		t.Fatalf("expected ErrDuplicateSectionID, got %v", err)
	}
}

func TestToggleSectionVisibilityFlipsOnlyFlag(t *testing.T) {
	document := mustDocument(t, "Draft")
	target := document.Sections[1]

	visible, err := document.ToggleSectionVisibility(target.ID)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if visible {
		t.Fatalf("expected section to be hidden")
	}
	after := document.Sections[1]
	if after.Title != target.Title || after.Order != target.Order || after.Type != target.Type {
		t.Fatalf("toggle changed more than visibility")
	}
}

func TestCloneIsDeep(t *testing.T) {
	document := mustDocument(t, "Draft")
	experienceID := document.Sections[2].ID
	if err := document.UpdateSectionContent(experienceID, ExperienceList{{Company: "Acme", Highlights: []string{"shipped"}}}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	cloned := document.Clone()
	list := document.Sections[2].Content.(ExperienceList)
	list[0].Highlights[0] = "mutated"
	document.Sections[0].Title = "changed"

	clonedList := cloned.Sections[2].Content.(ExperienceList)
	if clonedList[0].Highlights[0] != "shipped" {
		t.Fatalf("clone shares highlight storage")
	}
	if cloned.Sections[0].Title == "changed" {
		t.Fatalf("clone shares section storage")
	}
}

func TestDuplicateResetsExportMetadata(t *testing.T) {
	document := mustDocument(t, "Draft")
	MarkExported(&document, time.Unix(1700000100, 0))
	MarkExported(&document, time.Unix(1700000200, 0))

	duplicate, err := Duplicate(document, mustDocumentID(t, "doc-2"), time.Unix(1700000300, 0), &sequentialIDs{prefix: "copy"})
	if err != nil {
		t.Fatalf("duplicate failed: %v", err)
	}
	if duplicate.ID == document.ID {
		t.Fatalf("duplicate must have a fresh id")
	}
	if duplicate.Metadata.ExportCount != 0 || duplicate.Metadata.LastExportedAt != nil {
		t.Fatalf("duplicate must reset export metadata: %+v", duplicate.Metadata)
	}
	if len(duplicate.Sections) != len(document.Sections) {
		t.Fatalf("duplicate must copy sections")
	}
	for index := range duplicate.Sections {
		if duplicate.Sections[index].ID == document.Sections[index].ID {
			t.Fatalf("duplicate sections must have fresh ids")
		}
		if duplicate.Sections[index].Type != document.Sections[index].Type {
			t.Fatalf("duplicate sections must keep types")
		}
	}
	if document.Metadata.ExportCount != 2 {
		t.Fatalf("source export count changed: %d", document.Metadata.ExportCount)
	}
}

func TestRecomputeMetadataCountsVisibleWords(t *testing.T) {
	document := mustDocument(t, "Draft")
	personal := document.Sections[0].ID
	if err := document.UpdateSectionContent(personal, PersonalInfoPatch{Summary: stringPointer("builds reliable systems")}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	RecomputeMetadata(&document)
	withSummary := document.Metadata.WordCount

	if _, err := document.ToggleSectionVisibility(personal); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	RecomputeMetadata(&document)
	if document.Metadata.WordCount >= withSummary {
		t.Fatalf("hidden sections should not count: %d >= %d", document.Metadata.WordCount, withSummary)
	}
	if document.Metadata.PageCount != 1 {
		t.Fatalf("expected one page, got %d", document.Metadata.PageCount)
	}
}

func TestStylingMergeIsShallow(t *testing.T) {
	size := 12.5
	merged := DefaultStyling().Merge(StylingPatch{FontSize: &size, PrimaryColor: stringPointer("#000000")})
	if merged.FontSize != 12.5 || merged.PrimaryColor != "#000000" {
		t.Fatalf("patch fields not applied: %+v", merged)
	}
	if merged.FontFamily != DefaultStyling().FontFamily {
		t.Fatalf("untouched fields must keep their values")
	}
}
