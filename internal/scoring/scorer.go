// Package scoring grades resume documents with content heuristics.
package scoring

import (
	"strings"
	"unicode"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

const (
	CategoryContact    = "contact"
	CategorySummary    = "summary"
	CategoryExperience = "experience"
	CategoryEducation  = "education"
	CategorySkills     = "skills"
	CategoryLength     = "length"
)

const (
	contactMax    = 20
	summaryMax    = 10
	experienceMax = 30
	educationMax  = 15
	skillsMax     = 15
	lengthMax     = 10

	minimumWords = 200
	maximumWords = 1000
)

// CategoryScore is one line of the breakdown.
type CategoryScore struct {
	Name     string `json:"name"`
	Score    int    `json:"score"`
	MaxScore int    `json:"max_score"`
}

// Report is the result of grading a document. TotalScore is within 0..100.
type Report struct {
	TotalScore  int             `json:"total_score"`
	Categories  []CategoryScore `json:"categories"`
	Suggestions []string        `json:"suggestions"`
}

// Scorer is stateless and safe for concurrent use.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score grades the visible sections of document. A nil document scores zero.
func (s *Scorer) Score(document *resumes.Document) Report {
	if document == nil {
		return Report{
			Categories:  emptyCategories(),
			Suggestions: []string{"Create a resume to receive a score."},
		}
	}

	collected := collect(document)
	builder := &reportBuilder{}
	builder.add(CategoryContact, contactMax, scoreContact(collected.personal, builder))
	builder.add(CategorySummary, summaryMax, scoreSummary(collected.personal, builder))
	builder.add(CategoryExperience, experienceMax, scoreExperience(collected.experience, builder))
	builder.add(CategoryEducation, educationMax, scoreEducation(collected.education, builder))
	builder.add(CategorySkills, skillsMax, scoreSkills(collected.skills, builder))

	counted := *document
	resumes.RecomputeMetadata(&counted)
	builder.add(CategoryLength, lengthMax, scoreLength(counted.Metadata.WordCount, builder))
	return builder.report()
}

type collectedContent struct {
	personal   resumes.PersonalInfo
	experience resumes.ExperienceList
	education  resumes.EducationList
	skills     resumes.SkillList
}

func collect(document *resumes.Document) collectedContent {
	var collected collectedContent
	for _, section := range document.Sections {
		if !section.Visible {
			continue
		}
		switch content := section.Content.(type) {
		case resumes.PersonalInfo:
			collected.personal = content
		case resumes.ExperienceList:
			collected.experience = append(collected.experience, content...)
		case resumes.EducationList:
			collected.education = append(collected.education, content...)
		case resumes.SkillList:
			collected.skills = append(collected.skills, content...)
		}
	}
	return collected
}

type reportBuilder struct {
	categories  []CategoryScore
	suggestions []string
	total       int
}

func (b *reportBuilder) add(name string, maxScore, score int) {
	if score > maxScore {
		score = maxScore
	}
	if score < 0 {
		score = 0
	}
	b.categories = append(b.categories, CategoryScore{Name: name, Score: score, MaxScore: maxScore})
	b.total += score
}

func (b *reportBuilder) suggest(suggestion string) {
	b.suggestions = append(b.suggestions, suggestion)
}

func (b *reportBuilder) report() Report {
	suggestions := b.suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return Report{TotalScore: b.total, Categories: b.categories, Suggestions: suggestions}
}

func scoreContact(info resumes.PersonalInfo, builder *reportBuilder) int {
	score := 0
	if filled(info.FullName) {
		score += 5
	} else {
		builder.suggest("Add your full name.")
	}
	if filled(info.Email) {
		score += 5
	} else {
		builder.suggest("Add an email address so recruiters can reach you.")
	}
	if filled(info.Phone) {
		score += 4
	} else {
		builder.suggest("Add a phone number.")
	}
	if filled(info.Location) {
		score += 3
	}
	if filled(info.LinkedIn) || filled(info.Website) || filled(info.GitHub) {
		score += 3
	} else {
		builder.suggest("Link a professional profile such as LinkedIn or GitHub.")
	}
	return score
}

func scoreSummary(info resumes.PersonalInfo, builder *reportBuilder) int {
	words := len(strings.Fields(info.Summary))
	switch {
	case words >= 30:
		return summaryMax
	case words >= 10:
		builder.suggest("Expand your summary to at least 30 words.")
		return summaryMax / 2
	default:
		builder.suggest("Write a short professional summary.")
		return 0
	}
}

func scoreExperience(entries resumes.ExperienceList, builder *reportBuilder) int {
	if len(entries) == 0 {
		builder.suggest("Add at least one work experience entry.")
		return 0
	}
	score := 10
	described := 0
	quantified := 0
	for _, entry := range entries {
		if filled(entry.Description) || len(entry.Highlights) > 0 {
			described++
		}
		for _, highlight := range entry.Highlights {
			if containsDigit(highlight) {
				quantified++
				break
			}
		}
	}
	score += min(described*5, 10)
	score += min(quantified*5, 10)
	if described < len(entries) {
		builder.suggest("Describe what you did in every experience entry.")
	}
	if quantified == 0 {
		builder.suggest("Quantify achievements with numbers in your highlights.")
	}
	return score
}

func scoreEducation(entries resumes.EducationList, builder *reportBuilder) int {
	if len(entries) == 0 {
		builder.suggest("Add your education.")
		return 0
	}
	score := 10
	for _, entry := range entries {
		if filled(entry.Degree) && filled(entry.Field) {
			score += 5
			break
		}
	}
	if score < educationMax {
		builder.suggest("Include degree and field of study.")
	}
	return score
}

func scoreSkills(groups resumes.SkillList, builder *reportBuilder) int {
	count := 0
	for _, group := range groups {
		for _, skill := range group.Skills {
			if filled(skill) {
				count++
			}
		}
	}
	switch {
	case count >= 8:
		return skillsMax
	case count >= 4:
		builder.suggest("List at least eight relevant skills.")
		return 10
	case count >= 1:
		builder.suggest("List at least eight relevant skills.")
		return 5
	default:
		builder.suggest("Add a skills section with your core skills.")
		return 0
	}
}

func scoreLength(words int, builder *reportBuilder) int {
	switch {
	case words >= minimumWords && words <= maximumWords:
		return lengthMax
	case words < minimumWords/2:
		builder.suggest("Your resume is very short; add more detail.")
		return 0
	case words < minimumWords:
		builder.suggest("Add more detail to reach at least 200 words.")
		return lengthMax / 2
	case words <= maximumWords+maximumWords/2:
		builder.suggest("Trim your resume to under 1000 words.")
		return lengthMax / 2
	default:
		builder.suggest("Your resume is too long; keep it to one or two pages.")
		return 0
	}
}

func emptyCategories() []CategoryScore {
	return []CategoryScore{
		{Name: CategoryContact, MaxScore: contactMax},
		{Name: CategorySummary, MaxScore: summaryMax},
		{Name: CategoryExperience, MaxScore: experienceMax},
		{Name: CategoryEducation, MaxScore: educationMax},
		{Name: CategorySkills, MaxScore: skillsMax},
		{Name: CategoryLength, MaxScore: lengthMax},
	}
}

func filled(value string) bool {
	return strings.TrimSpace(value) != ""
}

func containsDigit(value string) bool {
	return strings.IndexFunc(value, unicode.IsDigit) >= 0
}
