package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/inkbound/novelhost/internal/config"
	"github.com/inkbound/novelhost/internal/logger"
	"github.com/inkbound/novelhost/internal/search"
	"github.com/inkbound/novelhost/internal/storage"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve full-text search index over the
// locally stored library.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Storage.RegistryPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// TriggerSearchReindexIfNeeded walks every novel the storage engine holds
// and rebuilds the search index from their manifests if the index is
// currently empty but novels exist on disk — covers both a fresh index
// and one deleted out from under a populated library. Should be called
// after storage and search are both wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	engine := do.MustInvoke[*storage.Engine](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, err := indexHandle.DocumentCount()
	if err != nil || docCount > 0 {
		return
	}

	ctx := context.Background()
	sourceIDs, err := engine.ListSourceIDs(ctx)
	if err != nil || len(sourceIDs) == 0 {
		return
	}

	go func() {
		var docs []*search.NovelDocument
		for _, sourceID := range sourceIDs {
			novelIDs, err := engine.ListNovelIDs(ctx, sourceID)
			if err != nil {
				log.Warn("list novel ids for reindex failed", "source_id", sourceID, "error", err)
				continue
			}
			for _, novelID := range novelIDs {
				meta, err := engine.GetNovel(ctx, novelID)
				if err != nil {
					log.Warn("load novel for reindex failed", "novel_id", novelID, "error", err)
					continue
				}
				docs = append(docs, search.FromStorageMetadata(novelID, meta))
			}
		}

		if len(docs) == 0 {
			return
		}

		log.Info("search index is empty but novels exist, triggering initial reindex", "novel_count", len(docs))
		if err := indexHandle.IndexDocuments(docs); err != nil {
			log.Error("initial search reindex failed", "error", err)
			return
		}
		count, _ := indexHandle.DocumentCount()
		log.Info("initial search reindex completed", "documents", count)
	}()
}
