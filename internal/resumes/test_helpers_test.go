package resumes

import (
	"fmt"
	"testing"
	"time"
)

type sequentialIDs struct {
	prefix string
	next   int
}

func (g *sequentialIDs) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

func mustDocumentID(t *testing.T, value string) DocumentID {
	t.Helper()
	id, err := NewDocumentID(value)
	if err != nil {
		t.Fatalf("unexpected document id error: %v", err)
	}
	return id
}

func mustOwnerID(t *testing.T, value string) OwnerID {
	t.Helper()
	id, err := NewOwnerID(value)
	if err != nil {
		t.Fatalf("unexpected owner id error: %v", err)
	}
	return id
}

func mustDocument(t *testing.T, title string) Document {
	t.Helper()
	document, err := NewDocument(
		mustDocumentID(t, "doc-1"),
		mustOwnerID(t, "owner-1"),
		title,
		time.Unix(1700000000, 0).UTC(),
		&sequentialIDs{prefix: "section"},
	)
	if err != nil {
		t.Fatalf("unexpected document error: %v", err)
	}
	return document
}

func assertContiguous(t *testing.T, document Document) {
	t.Helper()
	for index, section := range document.Sections {
		if section.Order != index {
			t.Fatalf("section %s at position %d has order %d", section.ID, index, section.Order)
		}
	}
	if err := document.Validate(); err != nil {
		t.Fatalf("document failed validation: %v", err)
	}
}

func stringPointer(value string) *string {
	return &value
}
