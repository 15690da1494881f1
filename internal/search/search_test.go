package search

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkbound/novelhost/internal/model"
	"github.com/inkbound/novelhost/internal/storage"
)

func setupTestIndex(t *testing.T) (*SearchIndex, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "search-test-*")
	require.NoError(t, err)

	index, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)

	cleanup := func() {
		_ = index.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return index, cleanup
}

func TestNewSearchIndex(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_IndexDocument(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	doc := &NovelDocument{NovelID: "src::url-1", Title: "The Hobbit", Authors: []string{"J.R.R. Tolkien"}}

	err := index.IndexDocument(doc)
	require.NoError(t, err)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_IndexDocuments_Batch(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*NovelDocument{
		{NovelID: "src::1", Title: "Book One"},
		{NovelID: "src::2", Title: "Book Two"},
		{NovelID: "src::3", Title: "Book Three"},
	}

	err := index.IndexDocuments(docs)
	require.NoError(t, err)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestSearchIndex_DeleteDocument(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	doc := &NovelDocument{NovelID: "src::1", Title: "Test Book"}
	require.NoError(t, index.IndexDocument(doc))

	require.NoError(t, index.DeleteDocument("src::1"))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Search_Basic(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*NovelDocument{
		{NovelID: "src::1", Title: "The Hobbit", Authors: []string{"J.R.R. Tolkien"}},
		{NovelID: "src::2", Title: "The Lord of the Rings", Authors: []string{"J.R.R. Tolkien"}},
		{NovelID: "src::3", Title: "Harry Potter", Authors: []string{"J.K. Rowling"}},
	}
	require.NoError(t, index.IndexDocuments(docs))

	result, err := index.Search(context.Background(), SearchParams{Query: "Tolkien", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
	assert.Len(t, result.Hits, 2)
}

func TestSearchIndex_Search_ByStatus(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*NovelDocument{
		{NovelID: "src::1", Title: "Ongoing Novel", Status: "ongoing"},
		{NovelID: "src::2", Title: "Completed Novel", Status: "completed"},
	}
	require.NoError(t, index.IndexDocuments(docs))

	result, err := index.Search(context.Background(), SearchParams{Statuses: []string{"completed"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
	assert.Equal(t, "src::2", result.Hits[0].NovelID)
}

func TestSearchIndex_Search_Prefix(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	require.NoError(t, index.IndexDocument(&NovelDocument{NovelID: "src::1", Title: "The Hobbit"}))

	result, err := index.Search(context.Background(), SearchParams{Query: "Hobb", Limit: 10})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Total, uint64(1))
}

func TestSearchIndex_Search_BySourceID(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*NovelDocument{
		{NovelID: "novelpub::1", Title: "Novel A", SourceID: "novelpub"},
		{NovelID: "webnovel::1", Title: "Novel B", SourceID: "webnovel"},
	}
	require.NoError(t, index.IndexDocuments(docs))

	result, err := index.Search(context.Background(), SearchParams{SourceIDs: []string{"webnovel"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
	assert.Equal(t, "webnovel::1", result.Hits[0].NovelID)
}

func TestSearchIndex_Rebuild(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	require.NoError(t, index.IndexDocument(&NovelDocument{NovelID: "src::1", Title: "Test"}))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	require.NoError(t, index.Rebuild())

	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Persistence(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "search-persist-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	index1, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	require.NoError(t, index1.IndexDocument(&NovelDocument{NovelID: "src::1", Title: "Test Novel"}))
	require.NoError(t, index1.Close())

	index2, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	defer index2.Close()

	count, err := index2.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	result, err := index2.Search(context.Background(), SearchParams{Query: "Test", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
}

func TestFromStorageMetadata(t *testing.T) {
	now := time.Now()
	meta := &storage.StorageMetadata{
		SourceID: "novelpub",
		StoredAt: now,
		Novel: model.Novel{
			Title:       "A Stored Novel",
			Authors:     []string{"Some Author"},
			Description: []string{"first paragraph", "second paragraph"},
			Status:      model.StatusOngoing,
			Languages:   []string{"en"},
			Volumes: []model.Volume{
				{Index: 0, Chapters: []model.Chapter{{Index: 0}, {Index: 1}}},
				{Index: 1, Chapters: []model.Chapter{{Index: 0}}},
			},
		},
	}

	doc := FromStorageMetadata(model.NewNovelID("novelpub", "https://novelpub.test/n/1"), meta)

	assert.Equal(t, "novelpub", doc.SourceID)
	assert.Equal(t, "A Stored Novel", doc.Title)
	assert.Equal(t, "first paragraph", doc.Description)
	assert.Equal(t, "ongoing", doc.Status)
	assert.Equal(t, 3, doc.ChapterCount)
	assert.Equal(t, now.UnixMilli(), doc.StoredAt)
}

func TestSearchIndex_LargeBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large batch test in short mode")
	}

	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := make([]*NovelDocument, 1000)
	for i := 0; i < 1000; i++ {
		docs[i] = &NovelDocument{
			NovelID: fmt.Sprintf("src::%d", i),
			Title:   fmt.Sprintf("Novel Number %d", i%10),
		}
	}

	start := time.Now()
	require.NoError(t, index.IndexDocuments(docs))
	t.Logf("Indexed 1000 documents in %v", time.Since(start))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), count)
}

func TestSearchParams_Defaults(t *testing.T) {
	params := SearchParams{}

	assert.Equal(t, "", params.Query)
	assert.Nil(t, params.Statuses)
	assert.Equal(t, 0, params.Limit)
}
