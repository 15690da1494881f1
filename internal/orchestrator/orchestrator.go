// Package orchestrator implements the Host Orchestrator (C7): the
// high-level glue tying the registry (C6), the named extension stores
// (C5), the shared HTTP broker (C1), the extension runtime (C3), and the
// storage engine (C4) together into the operations a caller actually
// wants — resolve a URL to a source, fetch a novel, fetch a chapter,
// search, and manage installed extensions.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/inkbound/novelhost/internal/errors"
	"github.com/inkbound/novelhost/internal/extruntime"
	"github.com/inkbound/novelhost/internal/httpbroker"
	"github.com/inkbound/novelhost/internal/model"
	"github.com/inkbound/novelhost/internal/registry"
	"github.com/inkbound/novelhost/internal/storage"
	"github.com/inkbound/novelhost/internal/storeprovider"
)

// Orchestrator is the C7 capability.
type Orchestrator struct {
	registry *registry.Registry
	stores   map[string]*storeprovider.LocallyCachedStore
	engine   *extruntime.Engine
	storage  *storage.Engine
	broker   *httpbroker.Broker

	mu      sync.Mutex
	runners map[string]*extruntime.Runner
}

// New builds an Orchestrator. stores maps a store name to its cached
// provider, matching spec §4.7's "a set of named extension stores". broker
// is the same shared C1 HTTP broker extensions use, reused here for the
// host's own cover-image downloads so they obey the same rate limit.
func New(reg *registry.Registry, stores map[string]*storeprovider.LocallyCachedStore, engine *extruntime.Engine, storageEngine *storage.Engine, broker *httpbroker.Broker) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		stores:   stores,
		engine:   engine,
		storage:  storageEngine,
		broker:   broker,
		runners:  map[string]*extruntime.Runner{},
	}
}

// ResolveForURL returns the extension ids able to handle url, consulting
// the registry's URL-pattern index first and, if that's empty, falling
// back to scanning every configured store's own declared patterns for
// extensions not yet installed; those fallback matches are returned as
// "<store>:<id>".
func (o *Orchestrator) ResolveForURL(ctx context.Context, url string) ([]string, error) {
	if ids := o.registry.FindByURL(url); len(ids) > 0 {
		return ids, nil
	}

	var matches []string
	for storeName, store := range o.stores {
		candidates, err := o.findExtensionsForURL(ctx, store, url)
		if err != nil {
			continue
		}
		for _, id := range candidates {
			matches = append(matches, fmt.Sprintf("%s:%s", storeName, id))
		}
	}
	return matches, nil
}

// storeManifest is the on-disk shape a store keeps next to each
// extension's binary — not the registry's InstalledExtension, since an
// uninstalled extension living only in a store has no registry record
// yet.
type storeManifest struct {
	registry.Manifest
	BinaryFile string `json:"binary_file"`
}

func (o *Orchestrator) findExtensionsForURL(ctx context.Context, store *storeprovider.LocallyCachedStore, url string) ([]string, error) {
	files, err := store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, f := range files {
		if filepath.Base(f) != "manifest.json" {
			continue
		}
		data, err := store.ReadFile(ctx, f)
		if err != nil {
			continue
		}
		var m storeManifest
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		for _, pattern := range m.URLPatterns {
			if strings.HasPrefix(url, pattern.Pattern) {
				matches = append(matches, m.ID)
				break
			}
		}
	}
	return matches, nil
}

// loadRunner returns a cached Runner for extensionID, instantiating one
// from the registry's stored binary on first use.
func (o *Orchestrator) loadRunner(ctx context.Context, extensionID string) (*extruntime.Runner, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if r, ok := o.runners[extensionID]; ok {
		return r, nil
	}

	ext, err := o.registry.GetInstalled(extensionID)
	if err != nil {
		return nil, err
	}

	wasmBytes, err := os.ReadFile(ext.BinaryPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIOOperation, "read extension binary")
	}
	mod, err := o.engine.Compile(ctx, wasmBytes)
	if err != nil {
		return nil, err
	}
	runner, err := o.engine.NewRunner(ctx, mod, extensionID)
	if err != nil {
		return nil, err
	}

	o.runners[extensionID] = runner
	return runner, nil
}

// FetchNovel resolves url to an extension, fetches its novel info, and
// stores the result, returning the stored NovelID.
func (o *Orchestrator) FetchNovel(ctx context.Context, url string) (model.NovelID, error) {
	ids, err := o.ResolveForURL(ctx, url)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", errors.Newf(errors.CodeExtensionNotFound, "no installed extension can handle %s", url)
	}
	extensionID := ids[0]

	runner, err := o.loadRunner(ctx, extensionID)
	if err != nil {
		return "", err
	}
	novel, err := runner.FetchNovelInfo(ctx, url)
	if err != nil {
		return "", err
	}

	id, err := o.storage.StoreNovel(ctx, extensionID, *novel)
	if err != nil {
		return "", err
	}

	if novel.CoverURL != "" {
		o.fetchCover(ctx, id, novel.CoverURL)
	}

	return id, nil
}

// fetchCover downloads a novel's cover image through the shared HTTP
// broker and stores it, computing a BlurHash placeholder. Failures are
// swallowed without logging: a missing or
// unreachable cover never fails FetchNovel, since the novel data itself
// is already safely stored.
func (o *Orchestrator) fetchCover(ctx context.Context, id model.NovelID, coverURL string) {
	resp, respErr := o.broker.Request(ctx, httpbroker.Request{
		Method: httpbroker.MethodGet,
		URL:    coverURL,
	})
	if respErr != nil || !resp.IsSuccess() {
		return
	}
	_ = o.storage.StoreCoverAsset(ctx, id, resp.Body)
}

// FetchChapter looks up the novel for novelID, resolves its source
// extension, fetches the chapter body, and stores it.
func (o *Orchestrator) FetchChapter(ctx context.Context, novelID model.NovelID, volumeIndex int, chapterURL string) (*storage.ChapterInfo, error) {
	meta, err := o.storage.GetNovel(ctx, novelID)
	if err != nil {
		return nil, err
	}

	runner, err := o.loadRunner(ctx, meta.SourceID)
	if err != nil {
		return nil, err
	}
	content, err := runner.FetchChapter(ctx, chapterURL)
	if err != nil {
		return nil, err
	}

	return o.storage.StoreChapterContent(ctx, novelID, volumeIndex, chapterURL, *content)
}

// SearchResult pairs a search hit with the extension id that produced it.
type SearchResult struct {
	ExtensionID string
	Items       []model.SearchResultItem
}

// Search fans the query out to every installed extension whose meta
// declares Search capability, collating results in arrival order with
// no cross-extension ranking, per spec §4.7.
func (o *Orchestrator) Search(ctx context.Context, query model.SimpleSearchQuery) ([]SearchResult, error) {
	installed := o.registry.ListInstalled()

	var (
		mu      sync.Mutex
		results []SearchResult
		wg      sync.WaitGroup
	)
	for _, ext := range installed {
		ext := ext
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner, err := o.loadRunner(ctx, ext.ID)
			if err != nil {
				return
			}
			meta, err := runner.Meta(ctx)
			if err != nil || !meta.Capabilities.Search.SupportsSimpleSearch {
				return
			}
			result, err := runner.SimpleSearch(ctx, query)
			if err != nil {
				return
			}
			mu.Lock()
			results = append(results, SearchResult{ExtensionID: ext.ID, Items: result.Items})
			mu.Unlock()
		}()
	}
	wg.Wait()

	return results, nil
}

// Install fetches a package from the named store and installs it
// through the registry.
func (o *Orchestrator) Install(ctx context.Context, storeName, extensionID string, opts registry.InstallOptions) ([]registry.Finding, error) {
	store, ok := o.stores[storeName]
	if !ok {
		return nil, errors.Newf(errors.CodeExtensionNotFound, "unknown extension store %q", storeName)
	}

	pkg, err := o.loadPackageFromStore(ctx, store, extensionID)
	if err != nil {
		return nil, err
	}
	return o.registry.Install(ctx, storeName, *pkg, opts)
}

func (o *Orchestrator) loadPackageFromStore(ctx context.Context, store *storeprovider.LocallyCachedStore, extensionID string) (*registry.Package, error) {
	manifestPath := filepath.Join(extensionID, "manifest.json")
	data, err := store.ReadFile(ctx, manifestPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExtensionNotFound, "read extension manifest from store")
	}
	var m storeManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.CodeDataConversionError, "decode extension manifest")
	}
	binary, err := store.ReadFile(ctx, filepath.Join(extensionID, m.BinaryFile))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIOOperation, "read extension binary from store")
	}
	return &registry.Package{Manifest: m.Manifest, Binary: binary}, nil
}

// Uninstall is a thin pass-through to the registry.
func (o *Orchestrator) Uninstall(ctx context.Context, extensionID string) error {
	o.mu.Lock()
	delete(o.runners, extensionID)
	o.mu.Unlock()
	return o.registry.Uninstall(ctx, extensionID)
}

// Update reinstalls extensionID from its originally-used store if still
// configured, else an arbitrary configured store, forcing replacement.
func (o *Orchestrator) Update(ctx context.Context, extensionID string) ([]registry.Finding, error) {
	ext, err := o.registry.GetInstalled(extensionID)
	if err != nil {
		return nil, err
	}

	storeName := ext.SourceStore
	if _, ok := o.stores[storeName]; !ok {
		for name := range o.stores {
			storeName = name
			break
		}
	}
	if storeName == "" {
		return nil, errors.Newf(errors.CodeExtensionNotFound, "no extension store available to update %q", extensionID)
	}

	o.mu.Lock()
	delete(o.runners, extensionID)
	o.mu.Unlock()

	return o.Install(ctx, storeName, extensionID, registry.InstallOptions{Force: true})
}
