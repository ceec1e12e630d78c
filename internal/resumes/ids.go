package resumes

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidDocumentID indicates that a document identifier is empty or exceeds storage bounds.
	ErrInvalidDocumentID = errors.New("resumes: invalid document id")
	// ErrInvalidOwnerID indicates that an owner identifier is empty or exceeds storage bounds.
	ErrInvalidOwnerID = errors.New("resumes: invalid owner id")
	// ErrInvalidSectionID indicates that a section identifier is empty or exceeds storage bounds.
	ErrInvalidSectionID = errors.New("resumes: invalid section id")
)

// DocumentID represents a validated document identifier.
type DocumentID string

// NewDocumentID validates raw input and returns a DocumentID.
func NewDocumentID(rawInput string) (DocumentID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidDocumentID)
	if err != nil {
		return "", err
	}
	return DocumentID(trimmed), nil
}

// String returns the underlying string identifier.
func (id DocumentID) String() string {
	return string(id)
}

// OwnerID represents a validated owner identifier.
type OwnerID string

// NewOwnerID validates raw input and returns an OwnerID.
func NewOwnerID(rawInput string) (OwnerID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidOwnerID)
	if err != nil {
		return "", err
	}
	return OwnerID(trimmed), nil
}

// String returns the underlying string identifier.
func (id OwnerID) String() string {
	return string(id)
}

// SectionID identifies a section within one document.
type SectionID string

// NewSectionID validates raw input and returns a SectionID.
func NewSectionID(rawInput string) (SectionID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidSectionID)
	if err != nil {
		return "", err
	}
	return SectionID(trimmed), nil
}

// String returns the underlying string identifier.
func (id SectionID) String() string {
	return string(id)
}

// TemplateID names a rendering template. Empty means the default template.
type TemplateID string

// String returns the underlying string identifier.
func (id TemplateID) String() string {
	return string(id)
}

func validateIdentifier(rawInput string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}
