package editor

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

// PersonalInfoPatch maps profile fields onto personal_info keys. Blank
// profile fields leave the existing values untouched.
func PersonalInfoPatch(profile Profile) resumes.PersonalInfoPatch {
	return resumes.PersonalInfoPatch{
		FullName: nonBlank(profile.FullName),
		Email:    nonBlank(profile.Email),
		Phone:    nonBlank(profile.Phone),
		Location: nonBlank(profile.Location),
		Website:  nonBlank(profile.Website),
		LinkedIn: nonBlank(profile.LinkedIn),
		GitHub:   nonBlank(profile.GitHub),
		Summary:  nonBlank(profile.Bio),
	}
}

func applyProfilePatch(document *resumes.Document, profile Profile) error {
	for _, section := range document.Sections {
		if section.Type == resumes.SectionPersonalInfo {
			return document.UpdateSectionContent(section.ID, PersonalInfoPatch(profile))
		}
	}
	return fmt.Errorf("%w: no %s section", resumes.ErrSectionNotFound, resumes.SectionPersonalInfo)
}

func nonBlank(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
