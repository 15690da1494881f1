// Command dbinspect prints a summary of a novelhost installation's
// catalog database and registry, read-only, for debugging a host without
// going through the HTTP facade.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/inkbound/novelhost/internal/catalog"
	"github.com/inkbound/novelhost/internal/registry"
)

func main() {
	registryPath := os.Getenv("REGISTRY_PATH")
	if registryPath == "" {
		registryPath = os.ExpandEnv("$HOME/.local/share/novelhost/registry")
	}
	flag.StringVar(&registryPath, "registry-path", registryPath, "Registry root directory")
	flag.Parse()

	slogLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	fmt.Println("=== Registry ===")
	reg, err := registry.New(registryPath, nil)
	if err != nil {
		slogLogger.Warn("open registry", "error", err)
	} else {
		defer reg.Close()
		installed := reg.ListInstalled()
		fmt.Printf("Installed extensions: %d\n", len(installed))
		for _, ext := range installed {
			fmt.Printf("  %s@%s  store=%s  patterns=%v\n", ext.ID, ext.Version, ext.SourceStore, ext.URLPatterns)
		}
	}
	fmt.Println()

	fmt.Println("=== Catalog ===")
	dbPath := filepath.Join(registryPath, "catalog.db")
	cat, err := catalog.Open(dbPath, slogLogger)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer cat.Close()

	ctx := context.Background()
	stats, err := cat.Stats(ctx)
	if err != nil {
		log.Fatalf("read catalog stats: %v", err)
	}
	fmt.Printf("Total novels: %d\n", stats.TotalNovels)
	fmt.Printf("Total chapters: %d\n", stats.TotalChapters)
	fmt.Println("By source:")
	for sourceID, count := range stats.NovelsBySource {
		fmt.Printf("  %s: %d\n", sourceID, count)
	}

	novels, err := cat.ListNovels(ctx, catalog.NovelFilter{})
	if err != nil {
		log.Fatalf("list novels: %v", err)
	}
	fmt.Println()
	fmt.Println("=== Novels ===")
	for i, n := range novels {
		if i >= 20 {
			fmt.Printf("... and %d more\n", len(novels)-20)
			break
		}
		fmt.Printf("%s  %q  status=%s  chapters=%d/%d stored\n", n.NovelID, n.Title, n.Status, n.StoredChapters, n.TotalChapters)
	}
}
