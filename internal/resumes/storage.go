package resumes

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Record is the persisted row for one document.
type Record struct {
	DocumentID       string         `gorm:"column:document_id;primaryKey;size:190;not null"`
	OwnerID          string         `gorm:"column:owner_id;size:190;not null;index:idx_resumes_owner_updated,priority:1"`
	Title            string         `gorm:"column:title;size:512;not null"`
	TemplateID       string         `gorm:"column:template_id;size:190;not null;default:''"`
	SectionsJSON     datatypes.JSON `gorm:"column:sections_json;not null"`
	StylingJSON      datatypes.JSON `gorm:"column:styling_json;not null"`
	MetadataJSON     datatypes.JSON `gorm:"column:metadata_json;not null"`
	CreatedAtSeconds int64          `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64          `gorm:"column:updated_at_s;not null;index:idx_resumes_owner_updated,priority:2"`
	Version          int64          `gorm:"column:version;not null;default:1"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "resumes"
}

// DocumentUpdate is a partial write; nil fields are left as stored.
type DocumentUpdate struct {
	Title      *string
	TemplateID *TemplateID
	Sections   *[]Section
	Styling    *StylingConfig
	Metadata   *Metadata
	UpdatedAt  time.Time
}

// FullUpdate returns an update carrying every mutable field of document.
func FullUpdate(document Document) DocumentUpdate {
	snapshot := document.Clone()
	return DocumentUpdate{
		Title:      &snapshot.Title,
		TemplateID: &snapshot.TemplateID,
		Sections:   &snapshot.Sections,
		Styling:    &snapshot.Styling,
		Metadata:   &snapshot.Metadata,
		UpdatedAt:  snapshot.UpdatedAt,
	}
}

func recordFromDocument(document Document) (Record, error) {
	sections := document.Sections
	if sections == nil {
		sections = []Section{}
	}
	sectionsJSON, err := json.Marshal(sections)
	if err != nil {
		return Record{}, fmt.Errorf("encode sections: %w", err)
	}
	stylingJSON, err := json.Marshal(document.Styling)
	if err != nil {
		return Record{}, fmt.Errorf("encode styling: %w", err)
	}
	metadataJSON, err := json.Marshal(document.Metadata)
	if err != nil {
		return Record{}, fmt.Errorf("encode metadata: %w", err)
	}
	return Record{
		DocumentID:       document.ID.String(),
		OwnerID:          document.OwnerID.String(),
		Title:            document.Title,
		TemplateID:       document.TemplateID.String(),
		SectionsJSON:     datatypes.JSON(sectionsJSON),
		StylingJSON:      datatypes.JSON(stylingJSON),
		MetadataJSON:     datatypes.JSON(metadataJSON),
		CreatedAtSeconds: document.CreatedAt.UTC().Unix(),
		UpdatedAtSeconds: document.UpdatedAt.UTC().Unix(),
		Version:          1,
	}, nil
}

func (r Record) toDocument() (Document, error) {
	documentID, err := NewDocumentID(r.DocumentID)
	if err != nil {
		return Document{}, err
	}
	ownerID, err := NewOwnerID(r.OwnerID)
	if err != nil {
		return Document{}, err
	}
	document := Document{
		ID:         documentID,
		OwnerID:    ownerID,
		Title:      r.Title,
		TemplateID: TemplateID(r.TemplateID),
		Styling:    DefaultStyling(),
		CreatedAt:  time.Unix(r.CreatedAtSeconds, 0).UTC(),
		UpdatedAt:  time.Unix(r.UpdatedAtSeconds, 0).UTC(),
	}
	if err := json.Unmarshal(r.SectionsJSON, &document.Sections); err != nil {
		return Document{}, fmt.Errorf("decode sections: %w", err)
	}
	if len(r.StylingJSON) > 0 {
		if err := json.Unmarshal(r.StylingJSON, &document.Styling); err != nil {
			return Document{}, fmt.Errorf("decode styling: %w", err)
		}
	}
	if len(r.MetadataJSON) > 0 {
		if err := json.Unmarshal(r.MetadataJSON, &document.Metadata); err != nil {
			return Document{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if document.Sections == nil {
		document.Sections = []Section{}
	}
	return document, nil
}

func updateColumns(update DocumentUpdate) (map[string]any, error) {
	columns := map[string]any{}
	if update.Title != nil {
		columns["title"] = *update.Title
	}
	if update.TemplateID != nil {
		columns["template_id"] = update.TemplateID.String()
	}
	if update.Sections != nil {
		sections := *update.Sections
		if sections == nil {
			sections = []Section{}
		}
		encoded, err := json.Marshal(sections)
		if err != nil {
			return nil, fmt.Errorf("encode sections: %w", err)
		}
		columns["sections_json"] = datatypes.JSON(encoded)
	}
	if update.Styling != nil {
		encoded, err := json.Marshal(*update.Styling)
		if err != nil {
			return nil, fmt.Errorf("encode styling: %w", err)
		}
		columns["styling_json"] = datatypes.JSON(encoded)
	}
	if update.Metadata != nil {
		encoded, err := json.Marshal(*update.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		columns["metadata_json"] = datatypes.JSON(encoded)
	}
	return columns, nil
}
