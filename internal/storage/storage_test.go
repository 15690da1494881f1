package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkbound/novelhost/internal/model"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(t.TempDir())
	require.NoError(t, err)
	return e
}

func sampleNovel() model.Novel {
	return model.Novel{
		URL:     "https://example.test/novel/1",
		Title:   "Test Novel",
		Authors: []string{"Someone"},
		Status:  model.StatusOngoing,
		Volumes: []model.Volume{
			{
				Index: -1, Name: "_default",
				Chapters: []model.Chapter{
					{Index: 0, Title: "Chapter 1", URL: "https://example.test/novel/1/c1"},
					{Index: 1, Title: "Chapter 2", URL: "https://example.test/novel/1/c2"},
				},
			},
		},
	}
}

func TestStoreAndGetNovel(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.StoreNovel(ctx, "src1", sampleNovel())
	require.NoError(t, err)
	assert.Equal(t, model.NewNovelID("src1", "https://example.test/novel/1"), id)

	meta, err := e.GetNovel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Test Novel", meta.Novel.Title)
	assert.Equal(t, "src1", meta.SourceID)
}

func TestGetNovel_NotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetNovel(context.Background(), model.NewNovelID("src1", "https://nowhere.test"))
	require.Error(t, err)
}

func TestUpdateNovelMetadata_ReplacesEnvelopeOnly(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.StoreNovel(ctx, "src1", sampleNovel())
	require.NoError(t, err)

	newIndex := map[string]ContentIndexEntry{
		"https://example.test/novel/1/c1": {ContentSize: 42},
	}
	newStoredAt := time.Now().Add(time.Hour)
	require.NoError(t, e.UpdateNovelMetadata(ctx, id, NovelMetadata{
		StoredAt:     newStoredAt,
		ContentIndex: newIndex,
	}))

	meta, err := e.GetNovel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, newIndex, meta.ContentIndex)
	assert.WithinDuration(t, newStoredAt, meta.StoredAt, time.Second)
	assert.Equal(t, "Test Novel", meta.Novel.Title, "Novel value must survive a metadata-only update")
	assert.Equal(t, "src1", meta.SourceID)
}

func TestStoreChapterContent_UpdatesIndexAndHasContent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.StoreNovel(ctx, "src1", sampleNovel())
	require.NoError(t, err)

	info, err := e.StoreChapterContent(ctx, id, -1, "https://example.test/novel/1/c1", model.ChapterContent{Data: "<p>hi</p>"})
	require.NoError(t, err)
	assert.True(t, info.HasContent)
	assert.Equal(t, "Chapter 1", info.Title)

	content, err := e.GetChapterContent(ctx, id, "https://example.test/novel/1/c1")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", content.Data)

	assert.True(t, e.ExistsChapterContent(ctx, id, "https://example.test/novel/1/c1"))
	assert.False(t, e.ExistsChapterContent(ctx, id, "https://example.test/novel/1/c2"))

	chapters, err := e.ListChapters(ctx, id)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.True(t, chapters[0].HasContent)
	assert.False(t, chapters[1].HasContent)
}

func TestDeleteChapterContent_RemovesBodyAndIndexEntry(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id, err := e.StoreNovel(ctx, "src1", sampleNovel())
	require.NoError(t, err)

	_, err = e.StoreChapterContent(ctx, id, -1, "https://example.test/novel/1/c1", model.ChapterContent{Data: "body"})
	require.NoError(t, err)

	require.NoError(t, e.DeleteChapterContent(ctx, id, -1, "https://example.test/novel/1/c1"))
	assert.False(t, e.ExistsChapterContent(ctx, id, "https://example.test/novel/1/c1"))

	_, err = e.GetChapterContent(ctx, id, "https://example.test/novel/1/c1")
	assert.Error(t, err)
}

func TestDeleteNovel_RemovesEverything(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id, err := e.StoreNovel(ctx, "src1", sampleNovel())
	require.NoError(t, err)

	require.NoError(t, e.DeleteNovel(ctx, id))
	_, err = e.GetNovel(ctx, id)
	assert.Error(t, err)
}

func TestCleanupDanglingData_RemovesOrphanedBodyAndIndexEntry(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	n := sampleNovel()
	id, err := e.StoreNovel(ctx, "src1", n)
	require.NoError(t, err)

	_, err = e.StoreChapterContent(ctx, id, -1, "https://example.test/novel/1/c1", model.ChapterContent{Data: "body"})
	require.NoError(t, err)

	// Drop chapter 1 from the manifest's volume without touching the body
	// file or content index directly, simulating an external edit.
	n.Volumes[0].Chapters = n.Volumes[0].Chapters[1:]
	require.NoError(t, e.UpdateNovel(ctx, id, n))

	report, err := e.CleanupDanglingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrphanedBodiesRemoved)
	assert.Empty(t, report.Errors)
}

func TestMergeChapters_ReplacesExistingAndAppendsNew(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id, err := e.StoreNovel(ctx, "src1", sampleNovel())
	require.NoError(t, err)

	err = e.MergeChapters(ctx, id, -1, []model.Chapter{
		{Index: 0, Title: "Chapter 1 Revised", URL: "https://example.test/novel/1/c1"},
		{Index: 2, Title: "Chapter 3", URL: "https://example.test/novel/1/c3"},
	})
	require.NoError(t, err)

	meta, err := e.GetNovel(ctx, id)
	require.NoError(t, err)
	require.Len(t, meta.Novel.Volumes[0].Chapters, 3)
	assert.Equal(t, "Chapter 1 Revised", meta.Novel.Volumes[0].Chapters[0].Title)
	assert.Equal(t, "Chapter 3", meta.Novel.Volumes[0].Chapters[2].Title)
}

func TestStoreAndGetAsset(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id, err := e.StoreNovel(ctx, "src1", sampleNovel())
	require.NoError(t, err)

	require.NoError(t, e.StoreAsset(ctx, id, "cover.jpg", []byte("jpgdata")))
	data, err := e.GetAsset(ctx, id, "cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpgdata", string(data))
}
