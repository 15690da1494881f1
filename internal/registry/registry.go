package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/inkbound/novelhost/internal/errors"
)

// Registry implements C6: persisted installed-extension state under
// <root>/installed.json and <root>/binaries/, plus a badger-backed
// URL-pattern routing cache rebuilt from installed.json whenever it
// changes — badger is a derived index here, never the source of truth.
type Registry struct {
	root  string
	chain *Chain

	mu        sync.RWMutex
	installed map[string]InstalledExtension
	order     []string // insertion order, for priority-stable find_by_url

	routeCache *badger.DB
}

// New opens (or initializes) a Registry rooted at root.
func New(root string, chain *Chain) (*Registry, error) {
	if err := os.MkdirAll(filepath.Join(root, "binaries"), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeIOOperation, "create registry binaries directory")
	}
	if chain == nil {
		chain = DefaultChain()
	}

	opts := badger.DefaultOptions(filepath.Join(root, "routecache"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIOOperation, "open url route cache")
	}

	r := &Registry{root: root, chain: chain, installed: map[string]InstalledExtension{}, routeCache: db}

	if err := r.loadInstalled(); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.rebuildRouteCache(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the route cache database.
func (r *Registry) Close() error {
	return r.routeCache.Close()
}

func (r *Registry) installedPath() string {
	return filepath.Join(r.root, "installed.json")
}

func (r *Registry) loadInstalled() error {
	data, err := os.ReadFile(r.installedPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, errors.CodeIOOperation, "read installed.json")
	}

	var persisted struct {
		Order     []string                      `json:"order"`
		Installed map[string]InstalledExtension `json:"installed"`
	}
	if err := json.Unmarshal(data, &persisted); err != nil {
		return errors.Wrap(err, errors.CodeDataConversionError, "decode installed.json")
	}
	r.installed = persisted.Installed
	r.order = persisted.Order
	if r.installed == nil {
		r.installed = map[string]InstalledExtension{}
	}
	return nil
}

func (r *Registry) writeInstalledLocked() error {
	persisted := struct {
		Order     []string                      `json:"order"`
		Installed map[string]InstalledExtension `json:"installed"`
	}{Order: r.order, Installed: r.installed}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeDataConversionError, "encode installed.json")
	}

	tmp := r.installedPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.CodeIOOperation, "write installed.json")
	}
	if err := os.Rename(tmp, r.installedPath()); err != nil {
		return errors.Wrap(err, errors.CodeIOOperation, "rename installed.json")
	}
	return nil
}

// routeEntry is one extension's claim on a pattern, as persisted in the
// badger route cache: enough to both identify the extension and rank it
// against every other extension claiming the same pattern.
type routeEntry struct {
	ExtensionID string `json:"extension_id"`
	Priority    int    `json:"priority"`
	Order       int    `json:"order"`
}

// rebuildRouteCache rewrites the url-pattern → extension-claims badger
// index from scratch out of the in-memory installed map. Each claim
// records its declared priority and its extension's insertion order, so
// FindByURL can rank same-pattern matches by descending priority with
// insertion order breaking ties, without re-reading r.installed.
func (r *Registry) rebuildRouteCache() error {
	routes := map[string][]routeEntry{}
	for order, id := range r.order {
		ext, ok := r.installed[id]
		if !ok {
			continue
		}
		for _, up := range ext.URLPatterns {
			routes[up.Pattern] = append(routes[up.Pattern], routeEntry{ExtensionID: id, Priority: up.Priority, Order: order})
		}
	}

	return r.routeCache.Update(func(txn *badger.Txn) error {
		if err := r.routeCache.DropAll(); err != nil {
			return err
		}
		for pattern, entries := range routes {
			data, err := json.Marshal(entries)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(pattern), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func checksumHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Install validates pkg and, unless refused by an Error-severity
// finding, copies its binary into the registry and registers it. A
// second install of the same id is only accepted with opts.Force, which
// replaces the prior registration and rebuilds the route cache.
func (r *Registry) Install(ctx context.Context, sourceStore string, pkg Package, opts InstallOptions) ([]Finding, error) {
	var findings []Finding
	if !opts.SkipValidation {
		findings = r.chain.Run(pkg)
		if HasErrors(findings) {
			return findings, errors.NewError(errors.CodeValidationFailed, "extension package failed validation")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.installed[pkg.Manifest.ID]; exists && !opts.Force {
		return findings, errors.Newf(errors.CodeExtensionNotFound, "extension %q is already installed; pass Force to replace", pkg.Manifest.ID)
	}

	binaryPath := filepath.Join(r.root, "binaries", pkg.Manifest.ID+".wasm")
	if err := os.WriteFile(binaryPath, pkg.Binary, 0o644); err != nil {
		return findings, errors.Wrap(err, errors.CodeIOOperation, "write extension binary")
	}

	_, alreadyTracked := r.installed[pkg.Manifest.ID]
	r.installed[pkg.Manifest.ID] = InstalledExtension{
		ID:          pkg.Manifest.ID,
		Version:     pkg.Manifest.Version,
		SourceStore: sourceStore,
		BinaryPath:  binaryPath,
		URLPatterns: pkg.Manifest.URLPatterns,
		InstalledAt: time.Now(),
	}
	if !alreadyTracked {
		r.order = append(r.order, pkg.Manifest.ID)
	}

	if err := r.writeInstalledLocked(); err != nil {
		return findings, err
	}
	if err := r.rebuildRouteCache(); err != nil {
		return findings, err
	}
	return findings, nil
}

// Uninstall removes an extension's binary and registration, rebuilding
// the route cache afterward.
func (r *Registry) Uninstall(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext, ok := r.installed[id]
	if !ok {
		return errors.Newf(errors.CodeExtensionNotFound, "extension %q is not installed", id)
	}

	if err := os.Remove(ext.BinaryPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.CodeIOOperation, "remove extension binary")
	}
	delete(r.installed, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if err := r.writeInstalledLocked(); err != nil {
		return err
	}
	return r.rebuildRouteCache()
}

// ListInstalled returns every installed extension in insertion order.
// This is not the same ordering FindByURL uses for a given URL, which
// ranks by each extension's declared URLPattern.Priority instead.
func (r *Registry) ListInstalled() []InstalledExtension {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]InstalledExtension, 0, len(r.order))
	for _, id := range r.order {
		if ext, ok := r.installed[id]; ok {
			out = append(out, ext)
		}
	}
	return out
}

// GetInstalled looks up a single installed extension by id.
func (r *Registry) GetInstalled(id string) (*InstalledExtension, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext, ok := r.installed[id]
	if !ok {
		return nil, errors.Newf(errors.CodeExtensionNotFound, "extension %q is not installed", id)
	}
	return &ext, nil
}

// FindByURL returns every installed extension id whose declared URL
// pattern is a prefix of url, sorted by descending pattern priority with
// insertion order breaking ties — the match a caller should try first is
// always first.
func (r *Registry) FindByURL(url string) []string {
	r.mu.RLock()
	patterns := make([]string, 0, len(r.order))
	for _, id := range r.order {
		for _, up := range r.installed[id].URLPatterns {
			patterns = append(patterns, up.Pattern)
		}
	}
	r.mu.RUnlock()

	var candidates []routeEntry
	err := r.routeCache.View(func(txn *badger.Txn) error {
		for _, pattern := range patterns {
			if !strings.HasPrefix(url, pattern) {
				continue
			}
			item, err := txn.Get([]byte(pattern))
			if err != nil {
				continue
			}
			_ = item.Value(func(val []byte) error {
				var entries []routeEntry
				if err := json.Unmarshal(val, &entries); err != nil {
					return nil
				}
				candidates = append(candidates, entries...)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Order < candidates[j].Order
	})

	seen := map[string]bool{}
	var matchIDs []string
	for _, c := range candidates {
		if !seen[c.ExtensionID] {
			seen[c.ExtensionID] = true
			matchIDs = append(matchIDs, c.ExtensionID)
		}
	}
	return matchIDs
}
