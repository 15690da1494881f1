// Package search provides local full-text search over the stored novel
// library using Bleve. It lets a caller find novels already present in
// the content-addressed store without going back out to an extension.
package search

import (
	"github.com/inkbound/novelhost/internal/model"
	"github.com/inkbound/novelhost/internal/storage"
)

// NovelDocument is the document shape indexed for each stored novel.
// Chapter bodies are never indexed — only the novel-level metadata a
// library search realistically needs to match against.
type NovelDocument struct {
	NovelID      string   `json:"novel_id"`
	SourceID     string   `json:"source_id"`
	Title        string   `json:"title"`
	Authors      []string `json:"authors,omitempty"`
	Description  string   `json:"description,omitempty"`
	Status       string   `json:"status"`
	Languages    []string `json:"languages,omitempty"`
	ChapterCount int      `json:"chapter_count"`
	StoredAt     int64    `json:"stored_at"` // Unix millis
}

// ToMap converts the document to a map keyed by the index mapping's
// lowercase field names, leaving out empty optional fields. IndexDocument
// and IndexDocuments index the struct itself, whose json tags carry the
// same names.
func (d *NovelDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"novel_id":      d.NovelID,
		"source_id":     d.SourceID,
		"title":         d.Title,
		"status":        d.Status,
		"chapter_count": d.ChapterCount,
		"stored_at":     d.StoredAt,
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.Authors) > 0 {
		m["authors"] = d.Authors
	}
	if len(d.Languages) > 0 {
		m["languages"] = d.Languages
	}
	return m
}

// FromStorageMetadata builds a NovelDocument from a novel's stored
// manifest, counting chapters across every volume.
func FromStorageMetadata(novelID model.NovelID, meta *storage.StorageMetadata) *NovelDocument {
	novel := meta.Novel

	var chapterCount int
	for _, v := range novel.Volumes {
		chapterCount += len(v.Chapters)
	}

	var description string
	if len(novel.Description) > 0 {
		description = storage.PlainTextExcerpt(novel.Description[0])
	}

	return &NovelDocument{
		NovelID:      string(novelID),
		SourceID:     meta.SourceID,
		Title:        novel.Title,
		Authors:      novel.Authors,
		Description:  description,
		Status:       string(novel.Status),
		Languages:    novel.Languages,
		ChapterCount: chapterCount,
		StoredAt:     meta.StoredAt.UnixMilli(),
	}
}
