package resumes

import (
	"strings"
	"time"
)

const wordsPerPage = 500

// RecomputeMetadata refreshes the derived figures from visible section content.
// Export bookkeeping is left untouched.
func RecomputeMetadata(document *Document) {
	if document == nil {
		return
	}
	words := 0
	for _, section := range document.Sections {
		if !section.Visible || section.Content == nil {
			continue
		}
		words += countWords(section.Title)
		for _, text := range section.Content.appendText(nil) {
			words += countWords(text)
		}
	}
	pages := (words + wordsPerPage - 1) / wordsPerPage
	if pages < 1 {
		pages = 1
	}
	document.Metadata.WordCount = words
	document.Metadata.PageCount = pages
}

// MarkExported records one export at exportedAt.
func MarkExported(document *Document, exportedAt time.Time) {
	if document == nil {
		return
	}
	stamp := exportedAt.UTC()
	document.Metadata.ExportCount++
	document.Metadata.LastExportedAt = &stamp
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
