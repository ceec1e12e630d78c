package resumes

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestUpdateSectionContentRejectsMismatchedPatch(t *testing.T) {
	document := mustDocument(t, "Draft")

	for _, section := range document.Sections {
		var patch ContentPatch = CustomBlockPatch{Content: stringPointer("free text")}
		if section.Type == SectionCustom {
			patch = SkillList{{Category: "Go"}}
		}
		before := section.Clone()

		err := document.UpdateSectionContent(section.ID, patch)
		if !errors.Is(err, ErrContentTypeMismatch) {
			t.Fatalf("expected mismatch for %s section, got %v", section.Type, err)
		}
		after, _ := document.Section(section.ID)
		if after.Content.SectionType() != before.Type {
			t.Fatalf("content type drifted for %s section", section.Type)
		}
	}
	assertContiguous(t, document)
}

func TestPersonalInfoPatchMergesOnlyProvidedFields(t *testing.T) {
	document := mustDocument(t, "Draft")
	personal := document.Sections[0].ID

	if err := document.UpdateSectionContent(personal, PersonalInfoPatch{FullName: stringPointer("Ada Lovelace"), Email: stringPointer("ada@example.com")}); err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	if err := document.UpdateSectionContent(personal, PersonalInfoPatch{Phone: stringPointer("+44 20")}); err != nil {
		t.Fatalf("second update failed: %v", err)
	}

	section, _ := document.Section(personal)
	info := section.Content.(PersonalInfo)
	if info.FullName != "Ada Lovelace" || info.Email != "ada@example.com" || info.Phone != "+44 20" {
		t.Fatalf("unexpected merged content: %+v", info)
	}
}

func TestListPatchReplacesEntries(t *testing.T) {
	document := mustDocument(t, "Draft")
	skills := document.Sections[3].ID

	if err := document.UpdateSectionContent(skills, SkillList{{Category: "Languages", Skills: []string{"Go", "SQL"}}}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := document.UpdateSectionContent(skills, SkillList{{Category: "Tools", Skills: []string{"git"}}}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	section, _ := document.Section(skills)
	list := section.Content.(SkillList)
	if len(list) != 1 || list[0].Category != "Tools" {
		t.Fatalf("expected entries to be replaced, got %+v", list)
	}
}

func TestSectionJSONRoundTripKeepsTypedContent(t *testing.T) {
	original := Section{
		ID:      "section-1",
		Type:    SectionExperience,
		Title:   "Work",
		Order:   2,
		Visible: true,
		Content: ExperienceList{{Company: "Acme", Position: "Engineer", Highlights: []string{"a", "b"}}},
	}
	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Section
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	list, ok := decoded.Content.(ExperienceList)
	if !ok {
		t.Fatalf("expected ExperienceList, got %T", decoded.Content)
	}
	if len(list) != 1 || list[0].Company != "Acme" || len(list[0].Highlights) != 2 {
		t.Fatalf("unexpected decoded content: %+v", list)
	}
}

func TestSectionJSONRejectsShapeMismatch(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "list-for-record", body: `{"id":"s1","type":"personal_info","title":"x","order":0,"visible":true,"content":[]}`, want: ErrContentTypeMismatch},
		{name: "record-for-list", body: `{"id":"s1","type":"experience","title":"x","order":0,"visible":true,"content":{"company":"Acme"}}`, want: ErrContentTypeMismatch},
		{name: "unknown-field", body: `{"id":"s1","type":"custom","title":"x","order":0,"visible":true,"content":{"title":"t","body":"b"}}`, want: ErrContentTypeMismatch},
		{name: "unknown-type", body: `{"id":"s1","type":"hobbies","title":"x","order":0,"visible":true,"content":{}}`, want: ErrUnknownSectionType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var section Section
			err := json.Unmarshal([]byte(tt.body), &section)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeContentPatchByType(t *testing.T) {
	patch, err := DecodeContentPatch(SectionCustom, []byte(`{"content":"hello"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	merged, err := MergeContent(CustomBlock{Title: "Volunteering"}, patch)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	block := merged.(CustomBlock)
	if block.Title != "Volunteering" || block.Content != "hello" {
		t.Fatalf("unexpected merged block: %+v", block)
	}

	if _, err := DecodeContentPatch(SectionAwards, []byte(`{"title":"x"}`)); !errors.Is(err, ErrContentTypeMismatch) {
		t.Fatalf("expected mismatch for object patch on list section, got %v", err)
	}
}

func TestParseSectionType(t *testing.T) {
	sectionType, err := ParseSectionType(" Projects ")
	if err != nil || sectionType != SectionProjects {
		t.Fatalf("expected projects, got %q (%v)", sectionType, err)
	}
	if _, err := ParseSectionType("hobbies"); !errors.Is(err, ErrUnknownSectionType) {
		t.Fatalf("expected ErrUnknownSectionType, got %v", err)
	}
}
