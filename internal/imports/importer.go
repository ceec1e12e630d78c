// Package imports converts external resume payloads into candidate documents.
package imports

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

var errMissingIDProvider = errors.New("imports: id provider is required")

// FieldError names one invalid payload field by its JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of one import. Document is set only when Success is true.
type Result struct {
	Success         bool
	Document        *resumes.Document
	Errors          []FieldError
	Warnings        []string
	FieldsPopulated int
}

// Config describes the importer dependencies.
type Config struct {
	IDProvider resumes.IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Importer validates JSON resume payloads.
type Importer struct {
	ids      resumes.IDProvider
	clock    func() time.Time
	logger   *zap.Logger
	validate *validator.Validate
}

func NewImporter(cfg Config) (*Importer, error) {
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)
	return &Importer{ids: cfg.IDProvider, clock: clock, logger: logger, validate: validate}, nil
}

// Import parses payload, validates it and builds a document owned by owner.
// The document id is left empty for the caller to assign.
func (i *Importer) Import(payload []byte, owner resumes.OwnerID) Result {
	if len(bytes.TrimSpace(payload)) == 0 {
		return failure(FieldError{Field: "$", Message: "payload is empty"})
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return failure(FieldError{Field: "$", Message: fmt.Sprintf("payload is not valid JSON: %v", err)})
	}
	warnings, err := unknownFieldWarnings(payload)
	if err != nil {
		return failure(FieldError{Field: "$", Message: "payload must be a JSON object"})
	}

	if err := i.validate.Struct(parsed); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			i.logger.Error("import validation crashed", zap.Error(err))
			return failure(FieldError{Field: "$", Message: err.Error()})
		}
		result := Result{Warnings: warnings}
		for _, fieldErr := range validationErrors {
			result.Errors = append(result.Errors, FieldError{
				Field:   trimNamespace(fieldErr.Namespace()),
				Message: describe(fieldErr),
			})
		}
		return result
	}

	document, populated, buildWarnings, err := i.build(parsed, owner)
	if err != nil {
		return failure(FieldError{Field: "$", Message: err.Error()})
	}
	warnings = append(warnings, buildWarnings...)
	if populated == 0 {
		warnings = append(warnings, "payload contained no resume content")
	}
	return Result{
		Success:         true,
		Document:        &document,
		Warnings:        warnings,
		FieldsPopulated: populated,
	}
}

func (i *Importer) build(parsed Payload, owner resumes.OwnerID) (resumes.Document, int, []string, error) {
	now := i.clock().UTC()
	document := resumes.Document{
		OwnerID:    owner,
		Title:      strings.TrimSpace(parsed.Title),
		TemplateID: resumes.TemplateID(strings.TrimSpace(parsed.TemplateID)),
		Styling:    resumes.DefaultStyling(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if document.Title == "" {
		document.Title = "Imported Resume"
	}

	var warnings []string
	populated := 0
	add := func(sectionType resumes.SectionType, title string, content resumes.SectionContent, count int) error {
		rawID, err := i.ids.NewID()
		if err != nil {
			return err
		}
		sectionID, err := resumes.NewSectionID(rawID)
		if err != nil {
			return err
		}
		section, err := document.AddSection(sectionID, sectionType)
		if err != nil {
			return err
		}
		index := document.SectionIndex(section.ID)
		document.Sections[index].Content = content
		if strings.TrimSpace(title) != "" {
			document.Sections[index].Title = strings.TrimSpace(title)
		}
		populated += count
		return nil
	}

	info, infoCount := parsed.PersonalInfo.content()
	if err := add(resumes.SectionPersonalInfo, "", info, infoCount); err != nil {
		return resumes.Document{}, 0, nil, err
	}
	if infoCount == 0 {
		warnings = append(warnings, "personal_info is empty")
	}

	lists := []struct {
		sectionType resumes.SectionType
		content     resumes.SectionContent
		count       int
		always      bool
	}{
		{resumes.SectionEducation, educationContent(parsed.Education), len(parsed.Education), true},
		{resumes.SectionExperience, experienceContent(parsed.Experience), len(parsed.Experience), true},
		{resumes.SectionProjects, projectContent(parsed.Projects), len(parsed.Projects), false},
		{resumes.SectionSkills, skillContent(parsed.Skills), len(parsed.Skills), true},
		{resumes.SectionCertifications, certificationContent(parsed.Certifications), len(parsed.Certifications), false},
		{resumes.SectionAwards, awardContent(parsed.Awards), len(parsed.Awards), false},
	}
	for _, list := range lists {
		if list.count == 0 && !list.always {
			continue
		}
		if err := add(list.sectionType, "", list.content, list.count); err != nil {
			return resumes.Document{}, 0, nil, err
		}
	}
	for _, block := range parsed.Custom {
		if err := add(resumes.SectionCustom, block.Title, resumes.CustomBlock{Title: block.Title, Content: block.Content}, 1); err != nil {
			return resumes.Document{}, 0, nil, err
		}
	}

	resumes.RecomputeMetadata(&document)
	return document, populated, warnings, nil
}

func failure(fieldErr FieldError) Result {
	return Result{Errors: []FieldError{fieldErr}}
}

// unknownFieldWarnings reports top-level keys the importer ignores.
func unknownFieldWarnings(payload []byte) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	known := knownTopLevelFields()
	var warnings []string
	for key := range raw {
		if _, ok := known[key]; !ok {
			warnings = append(warnings, fmt.Sprintf("ignored unknown field %q", key))
		}
	}
	sort.Strings(warnings)
	return warnings, nil
}

func knownTopLevelFields() map[string]struct{} {
	known := make(map[string]struct{})
	payloadType := reflect.TypeOf(Payload{})
	for index := 0; index < payloadType.NumField(); index++ {
		if name := jsonFieldName(payloadType.Field(index)); name != "" {
			known[name] = struct{}{}
		}
	}
	return known
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// trimNamespace drops the root struct name from a validator namespace.
func trimNamespace(namespace string) string {
	if index := strings.Index(namespace, "."); index >= 0 {
		return namespace[index+1:]
	}
	return namespace
}

func describe(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fieldErr.Param())
	default:
		return fmt.Sprintf("failed %s validation", fieldErr.Tag())
	}
}
