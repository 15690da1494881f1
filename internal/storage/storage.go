// Package storage implements the content-addressed Storage Engine (C4):
// novel manifests, chapter bodies, and asset blobs rooted at
// <storage_root>/novels/<source_id>/<sha256(url)>/, with atomic
// (temp-file + rename) writes so a crash mid-write never leaves a
// corrupted manifest in place.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/inkbound/novelhost/internal/errors"
	"github.com/inkbound/novelhost/internal/id"
	"github.com/inkbound/novelhost/internal/model"
)

// ContentIndexEntry records when a chapter body was stored and its size,
// so staleness and dangling-body detection don't need to re-read bodies.
type ContentIndexEntry struct {
	StoredAt    time.Time `json:"stored_at"`
	ContentSize int       `json:"content_size"`
}

// StorageMetadata is the manifest envelope persisted as novel.json,
// wrapping the domain Novel value with storage bookkeeping.
type StorageMetadata struct {
	SourceID     string                        `json:"source_id"`
	StoredAt     time.Time                     `json:"stored_at"`
	ContentIndex map[string]ContentIndexEntry  `json:"content_index"`
	Novel        model.Novel                   `json:"novel"`
}

// ChapterInfo is a chapter projected from a manifest's volumes, enriched
// with whether its body has actually been stored.
type ChapterInfo struct {
	model.Chapter
	HasContent bool `json:"has_content"`
}

// Engine implements the C4 Storage Engine rooted at a single directory.
type Engine struct {
	root string
	mu   sync.RWMutex
}

// New builds an Engine rooted at root, creating the novels/ directory if
// it doesn't already exist.
func New(root string) (*Engine, error) {
	novelsDir := filepath.Join(root, "novels")
	if err := os.MkdirAll(novelsDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageOperationFail, "create novels directory")
	}
	return &Engine{root: root}, nil
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) novelDir(sourceID, url string) string {
	return filepath.Join(e.root, "novels", sourceID, hashHex(url))
}

func (e *Engine) manifestPath(sourceID, url string) string {
	return filepath.Join(e.novelDir(sourceID, url), "novel.json")
}

func (e *Engine) chapterPath(sourceID, url, chapterURL string) string {
	return filepath.Join(e.novelDir(sourceID, url), "chapters", hashHex(chapterURL)+".html")
}

func (e *Engine) assetPath(sourceID, url, assetID string) string {
	return filepath.Join(e.novelDir(sourceID, url), "assets", assetID)
}

// atomicWrite writes data to path via a sibling temp file, then renames
// it into place, so readers never observe a partial write. The temp
// file's suffix is a nanoid rather than os.CreateTemp's own counter, so
// concurrent writers across processes (not just goroutines) can't
// collide on the same directory.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	suffix, err := id.Generate("tmp")
	if err != nil {
		return err
	}
	tmp, err := os.OpenFile(filepath.Join(dir, "."+suffix), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// parseNovelID splits a NovelID back into its source_id and url parts,
// mirroring model.NewNovelID's "source_id::url" construction.
func parseNovelID(id model.NovelID) (sourceID, url string, err error) {
	s := string(id)
	for i := 0; i+1 < len(s); i++ {
		if s[i] == ':' && s[i+1] == ':' {
			return s[:i], s[i+2:], nil
		}
	}
	return "", "", errors.Newf(errors.CodeInvalidNovelData, "malformed novel id %q", id)
}

// StoreNovel writes a new manifest for n, returning its id. A prior
// manifest at the same id is overwritten in full.
func (e *Engine) StoreNovel(ctx context.Context, sourceID string, n model.Novel) (model.NovelID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n.Languages = model.NormalizeLanguageTags(n.Languages)

	id := model.NewNovelID(sourceID, n.URL)
	meta := StorageMetadata{
		SourceID:     sourceID,
		StoredAt:     time.Now(),
		ContentIndex: map[string]ContentIndexEntry{},
		Novel:        n,
	}
	if err := e.writeManifest(sourceID, n.URL, meta); err != nil {
		return "", err
	}
	return id, nil
}

func (e *Engine) writeManifest(sourceID, url string, meta StorageMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeDataConversionError, "encode novel manifest")
	}
	if err := atomicWrite(e.manifestPath(sourceID, url), data); err != nil {
		return errors.Wrap(err, errors.CodeStorageOperationFail, "write novel manifest")
	}
	return nil
}

func (e *Engine) readManifest(sourceID, url string) (*StorageMetadata, error) {
	data, err := os.ReadFile(e.manifestPath(sourceID, url))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(fmt.Sprintf("no novel stored for %s at %s", sourceID, url))
		}
		return nil, errors.Wrap(err, errors.CodeStorageOperationFail, "read novel manifest")
	}
	var meta StorageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrap(err, errors.CodeDataConversionError, "decode novel manifest")
	}
	return &meta, nil
}

// GetNovel loads the manifest for id, or a NotFound error if absent.
func (e *Engine) GetNovel(ctx context.Context, id model.NovelID) (*StorageMetadata, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return nil, err
	}
	return e.readManifest(sourceID, url)
}

// FindNovelByURL loads the manifest for a (sourceID, url) pair directly,
// without requiring the caller to construct a NovelID first.
func (e *Engine) FindNovelByURL(ctx context.Context, sourceID, url string) (*StorageMetadata, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.readManifest(sourceID, url)
}

// UpdateNovel replaces the Novel value of an existing manifest in full,
// preserving StoredAt and the content index untouched.
func (e *Engine) UpdateNovel(ctx context.Context, id model.NovelID, n model.Novel) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return err
	}
	meta, err := e.readManifest(sourceID, url)
	if err != nil {
		return err
	}
	n.Languages = model.NormalizeLanguageTags(n.Languages)
	meta.Novel = n
	return e.writeManifest(sourceID, url, *meta)
}

// NovelMetadata is the metadata envelope half of a manifest: everything
// in StorageMetadata except the Novel value itself.
type NovelMetadata struct {
	StoredAt     time.Time
	ContentIndex map[string]ContentIndexEntry
}

// UpdateNovelMetadata replaces only the metadata envelope (StoredAt and
// the content index) of an existing manifest, leaving the Novel value
// untouched — the read-modify-atomic-write counterpart to UpdateNovel,
// for callers that recompute content-index bookkeeping without also
// having a fresh Novel value in hand (e.g. a cleanup pass that prunes
// stale content-index entries).
func (e *Engine) UpdateNovelMetadata(ctx context.Context, id model.NovelID, meta NovelMetadata) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return err
	}
	existing, err := e.readManifest(sourceID, url)
	if err != nil {
		return err
	}
	existing.StoredAt = meta.StoredAt
	existing.ContentIndex = meta.ContentIndex
	return e.writeManifest(sourceID, url, *existing)
}

// TouchNovel updates only StoredAt, leaving the Novel value and content
// index untouched.
func (e *Engine) TouchNovel(ctx context.Context, id model.NovelID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return err
	}
	meta, err := e.readManifest(sourceID, url)
	if err != nil {
		return err
	}
	meta.StoredAt = time.Now()
	return e.writeManifest(sourceID, url, *meta)
}

// DeleteNovel removes the entire per-novel directory, bodies and assets
// included.
func (e *Engine) DeleteNovel(ctx context.Context, id model.NovelID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(e.novelDir(sourceID, url)); err != nil {
		return errors.Wrap(err, errors.CodeStorageOperationFail, "delete novel directory")
	}
	return nil
}

// StoreChapterContent writes a chapter body atomically, then updates the
// manifest's content index to reflect it, returning the resulting
// ChapterInfo. volumeIndex is accepted for parity with the domain
// operation's signature but doesn't affect where the body is stored —
// chapter bodies are addressed purely by their URL hash.
func (e *Engine) StoreChapterContent(ctx context.Context, id model.NovelID, volumeIndex int, chapterURL string, content model.ChapterContent) (*ChapterInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return nil, err
	}

	body := []byte(content.Data)
	if err := atomicWrite(e.chapterPath(sourceID, url, chapterURL), body); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageOperationFail, "write chapter body")
	}

	meta, err := e.readManifest(sourceID, url)
	if err != nil {
		return nil, err
	}
	if meta.ContentIndex == nil {
		meta.ContentIndex = map[string]ContentIndexEntry{}
	}
	meta.ContentIndex[chapterURL] = ContentIndexEntry{StoredAt: time.Now(), ContentSize: len(body)}
	if err := e.writeManifest(sourceID, url, *meta); err != nil {
		return nil, err
	}

	info := chapterFromVolumes(meta, chapterURL)
	if info == nil {
		info = &ChapterInfo{Chapter: model.Chapter{Index: volumeIndex, URL: chapterURL}}
	}
	info.HasContent = true
	return info, nil
}

func chapterFromVolumes(meta *StorageMetadata, chapterURL string) *ChapterInfo {
	for _, vol := range meta.Novel.Volumes {
		for _, ch := range vol.Chapters {
			if ch.URL == chapterURL {
				return &ChapterInfo{Chapter: ch}
			}
		}
	}
	return nil
}

// GetChapterContent reads a chapter body by its URL.
func (e *Engine) GetChapterContent(ctx context.Context, id model.NovelID, chapterURL string) (*model.ChapterContent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(e.chapterPath(sourceID, url, chapterURL))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ChapterNotFound(fmt.Sprintf("no content stored for chapter %s", chapterURL))
		}
		return nil, errors.Wrap(err, errors.CodeStorageOperationFail, "read chapter body")
	}
	return &model.ChapterContent{Data: string(data)}, nil
}

// ExistsChapterContent reports whether a chapter body file is present.
func (e *Engine) ExistsChapterContent(ctx context.Context, id model.NovelID, chapterURL string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(e.chapterPath(sourceID, url, chapterURL))
	return err == nil
}

// DeleteChapterContent removes a chapter body and its content-index
// entry, rewriting the manifest atomically. Missing bodies are not an
// error — deletion is idempotent.
func (e *Engine) DeleteChapterContent(ctx context.Context, id model.NovelID, volumeIndex int, chapterURL string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return err
	}

	path := e.chapterPath(sourceID, url, chapterURL)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.CodeStorageOperationFail, "delete chapter body")
	}

	meta, err := e.readManifest(sourceID, url)
	if err != nil {
		return err
	}
	delete(meta.ContentIndex, chapterURL)
	return e.writeManifest(sourceID, url, *meta)
}

// ListChapters projects the chapter list from the manifest's volumes,
// enriched with HasContent from the content index.
func (e *Engine) ListChapters(ctx context.Context, id model.NovelID) ([]ChapterInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return nil, err
	}
	meta, err := e.readManifest(sourceID, url)
	if err != nil {
		return nil, err
	}

	var out []ChapterInfo
	for _, vol := range meta.Novel.Volumes {
		for _, ch := range vol.Chapters {
			_, hasContent := meta.ContentIndex[ch.URL]
			out = append(out, ChapterInfo{Chapter: ch, HasContent: hasContent})
		}
	}
	return out, nil
}

// MergeChapters folds newChapters into the manifest's volume identified
// by volumeIndex (or the default volume if absent), replacing entries
// that share a URL and appending the rest — the Open Question 2
// resolution for incremental chapter-list updates without clobbering a
// manually edited manifest.
func (e *Engine) MergeChapters(ctx context.Context, id model.NovelID, volumeIndex int, newChapters []model.Chapter) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return err
	}
	meta, err := e.readManifest(sourceID, url)
	if err != nil {
		return err
	}

	volIdx := -1
	for i, vol := range meta.Novel.Volumes {
		if vol.Index == volumeIndex {
			volIdx = i
			break
		}
	}
	if volIdx == -1 {
		vol := model.DefaultVolume()
		vol.Index = volumeIndex
		meta.Novel.Volumes = append(meta.Novel.Volumes, vol)
		volIdx = len(meta.Novel.Volumes) - 1
	}

	byURL := make(map[string]int, len(meta.Novel.Volumes[volIdx].Chapters))
	for i, ch := range meta.Novel.Volumes[volIdx].Chapters {
		byURL[ch.URL] = i
	}
	for _, nc := range newChapters {
		if i, ok := byURL[nc.URL]; ok {
			meta.Novel.Volumes[volIdx].Chapters[i] = nc
		} else {
			meta.Novel.Volumes[volIdx].Chapters = append(meta.Novel.Volumes[volIdx].Chapters, nc)
			byURL[nc.URL] = len(meta.Novel.Volumes[volIdx].Chapters) - 1
		}
	}

	return e.writeManifest(sourceID, url, *meta)
}

// StoreAsset writes a binary asset (cover image, etc.) under the novel's
// assets directory.
func (e *Engine) StoreAsset(ctx context.Context, id model.NovelID, assetID string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return err
	}
	if err := atomicWrite(e.assetPath(sourceID, url, assetID), data); err != nil {
		return errors.Wrap(err, errors.CodeStorageOperationFail, "write asset")
	}
	return nil
}

// GetAsset reads a previously stored asset.
func (e *Engine) GetAsset(ctx context.Context, id model.NovelID, assetID string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(e.assetPath(sourceID, url, assetID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewError(errors.CodeNovelNotFound, "asset not found")
		}
		return nil, errors.Wrap(err, errors.CodeStorageOperationFail, "read asset")
	}
	return data, nil
}

// CleanupReport summarizes a CleanupDanglingData pass.
type CleanupReport struct {
	OrphanedBodiesRemoved int
	DanglingIndexEntries  int
	Errors                []string
}

// ListSourceIDs returns the source ids with at least one stored novel,
// discovered by listing the novels/ directory's immediate children.
func (e *Engine) ListSourceIDs(ctx context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	novelsDir := filepath.Join(e.root, "novels")
	entries, err := os.ReadDir(novelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CodeStorageOperationFail, "list novels directory")
	}

	var sourceIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			sourceIDs = append(sourceIDs, entry.Name())
		}
	}
	return sourceIDs, nil
}

// ListNovelIDs returns every stored novel's NovelID under sourceID, read
// from each manifest rather than reconstructed from the hashed
// directory name (which isn't reversible).
func (e *Engine) ListNovelIDs(ctx context.Context, sourceID string) ([]model.NovelID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sourceDir := filepath.Join(e.root, "novels", sourceID)
	hashDirs, err := os.ReadDir(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CodeStorageOperationFail, "list source directory")
	}

	var ids []model.NovelID
	for _, hashDir := range hashDirs {
		if !hashDir.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(sourceDir, hashDir.Name(), "novel.json"))
		if err != nil {
			continue
		}
		var meta StorageMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		ids = append(ids, model.NewNovelID(sourceID, meta.Novel.URL))
	}
	return ids, nil
}

// CleanupDanglingData walks every stored novel removing chapter body
// files no longer referenced by any volume, and content-index entries
// whose body file is missing, continuing past per-novel errors rather
// than aborting the whole pass.
func (e *Engine) CleanupDanglingData(ctx context.Context) (*CleanupReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := &CleanupReport{}
	novelsDir := filepath.Join(e.root, "novels")
	sourceDirs, err := os.ReadDir(novelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return nil, errors.Wrap(err, errors.CodeStorageOperationFail, "list novels directory")
	}

	for _, sourceDir := range sourceDirs {
		if !sourceDir.IsDir() {
			continue
		}
		sourceID := sourceDir.Name()
		hashDirs, err := os.ReadDir(filepath.Join(novelsDir, sourceID))
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", sourceID, err))
			continue
		}
		for _, hashDir := range hashDirs {
			if !hashDir.IsDir() {
				continue
			}
			e.cleanupOne(novelsDir, sourceID, hashDir.Name(), report)
		}
	}
	return report, nil
}

func (e *Engine) cleanupOne(novelsDir, sourceID, hashDirName string, report *CleanupReport) {
	dir := filepath.Join(novelsDir, sourceID, hashDirName)
	manifestPath := filepath.Join(dir, "novel.json")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s/%s: %v", sourceID, hashDirName, err))
		return
	}
	var meta StorageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s/%s: %v", sourceID, hashDirName, err))
		return
	}

	referenced := map[string]bool{}
	for _, vol := range meta.Novel.Volumes {
		for _, ch := range vol.Chapters {
			referenced[hashHex(ch.URL)+".html"] = true
		}
	}

	chaptersDir := filepath.Join(dir, "chapters")
	files, _ := os.ReadDir(chaptersDir)
	for _, f := range files {
		if !referenced[f.Name()] {
			if err := os.Remove(filepath.Join(chaptersDir, f.Name())); err == nil {
				report.OrphanedBodiesRemoved++
			}
		}
	}

	changed := false
	for chURL := range meta.ContentIndex {
		if _, err := os.Stat(filepath.Join(chaptersDir, hashHex(chURL)+".html")); os.IsNotExist(err) {
			delete(meta.ContentIndex, chURL)
			report.DanglingIndexEntries++
			changed = true
		}
	}
	if changed {
		if err := e.writeManifest(sourceID, meta.Novel.URL, meta); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s/%s: rewrite manifest: %v", sourceID, hashDirName, err))
		}
	}
}
