package imports

import (
	"strings"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

// Payload is the accepted import format.
type Payload struct {
	Title          string               `json:"title" validate:"max=200"`
	TemplateID     string               `json:"template_id" validate:"max=190"`
	PersonalInfo   PersonalInfoPayload  `json:"personal_info"`
	Education      []EducationPayload   `json:"education" validate:"dive"`
	Experience     []ExperiencePayload  `json:"experience" validate:"dive"`
	Projects       []ProjectPayload     `json:"projects" validate:"dive"`
	Skills         []SkillGroupPayload  `json:"skills" validate:"dive"`
	Certifications []CertificatePayload `json:"certifications" validate:"dive"`
	Awards         []AwardPayload       `json:"awards" validate:"dive"`
	Custom         []CustomPayload      `json:"custom" validate:"dive"`
}

type PersonalInfoPayload struct {
	FullName string `json:"full_name" validate:"max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"max=50"`
	Location string `json:"location" validate:"max=200"`
	Website  string `json:"website" validate:"omitempty,url"`
	LinkedIn string `json:"linkedin" validate:"omitempty,url"`
	GitHub   string `json:"github" validate:"omitempty,url"`
	Summary  string `json:"summary" validate:"max=5000"`
}

type EducationPayload struct {
	Institution string `json:"institution" validate:"required"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	GPA         string `json:"gpa"`
	Description string `json:"description"`
}

type ExperiencePayload struct {
	Company     string   `json:"company" validate:"required"`
	Position    string   `json:"position" validate:"required"`
	Location    string   `json:"location"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Current     bool     `json:"current"`
	Description string   `json:"description"`
	Highlights  []string `json:"highlights"`
}

type ProjectPayload struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description"`
	URL          string   `json:"url" validate:"omitempty,url"`
	Technologies []string `json:"technologies"`
	Highlights   []string `json:"highlights"`
}

type SkillGroupPayload struct {
	Category string   `json:"category"`
	Skills   []string `json:"skills" validate:"required,min=1"`
}

type CertificatePayload struct {
	Name   string `json:"name" validate:"required"`
	Issuer string `json:"issuer"`
	Date   string `json:"date"`
	URL    string `json:"url" validate:"omitempty,url"`
}

type AwardPayload struct {
	Title       string `json:"title" validate:"required"`
	Issuer      string `json:"issuer"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

type CustomPayload struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
}

// content returns the personal info and how many of its fields were set.
func (p PersonalInfoPayload) content() (resumes.PersonalInfo, int) {
	info := resumes.PersonalInfo{
		FullName: strings.TrimSpace(p.FullName),
		Email:    strings.TrimSpace(p.Email),
		Phone:    strings.TrimSpace(p.Phone),
		Location: strings.TrimSpace(p.Location),
		Website:  strings.TrimSpace(p.Website),
		LinkedIn: strings.TrimSpace(p.LinkedIn),
		GitHub:   strings.TrimSpace(p.GitHub),
		Summary:  strings.TrimSpace(p.Summary),
	}
	count := 0
	for _, value := range []string{info.FullName, info.Email, info.Phone, info.Location, info.Website, info.LinkedIn, info.GitHub, info.Summary} {
		if value != "" {
			count++
		}
	}
	return info, count
}

func educationContent(entries []EducationPayload) resumes.EducationList {
	list := make(resumes.EducationList, 0, len(entries))
	for _, entry := range entries {
		list = append(list, resumes.EducationEntry(entry))
	}
	return list
}

func experienceContent(entries []ExperiencePayload) resumes.ExperienceList {
	list := make(resumes.ExperienceList, 0, len(entries))
	for _, entry := range entries {
		list = append(list, resumes.ExperienceEntry{
			Company:     entry.Company,
			Position:    entry.Position,
			Location:    entry.Location,
			StartDate:   entry.StartDate,
			EndDate:     entry.EndDate,
			Current:     entry.Current,
			Description: entry.Description,
			Highlights:  append([]string(nil), entry.Highlights...),
		})
	}
	return list
}

func projectContent(entries []ProjectPayload) resumes.ProjectList {
	list := make(resumes.ProjectList, 0, len(entries))
	for _, entry := range entries {
		list = append(list, resumes.ProjectEntry{
			Name:         entry.Name,
			Description:  entry.Description,
			URL:          entry.URL,
			Technologies: append([]string(nil), entry.Technologies...),
			Highlights:   append([]string(nil), entry.Highlights...),
		})
	}
	return list
}

func skillContent(groups []SkillGroupPayload) resumes.SkillList {
	list := make(resumes.SkillList, 0, len(groups))
	for _, group := range groups {
		list = append(list, resumes.SkillGroup{
			Category: group.Category,
			Skills:   append([]string(nil), group.Skills...),
		})
	}
	return list
}

func certificationContent(entries []CertificatePayload) resumes.CertificationList {
	list := make(resumes.CertificationList, 0, len(entries))
	for _, entry := range entries {
		list = append(list, resumes.CertificationEntry(entry))
	}
	return list
}

func awardContent(entries []AwardPayload) resumes.AwardList {
	list := make(resumes.AwardList, 0, len(entries))
	for _, entry := range entries {
		list = append(list, resumes.AwardEntry(entry))
	}
	return list
}
