package storage

import (
	"context"

	"github.com/inkbound/novelhost/internal/media/images"
	"github.com/inkbound/novelhost/internal/model"
)

// CoverAssetID is the well-known asset id a cover image is stored under,
// matching the path StoreCoverAsset/GetAsset agree on.
const CoverAssetID = "cover"

// StoreCoverAsset writes data as the novel's cover image asset, computes a
// BlurHash placeholder from the decoded image, and persists the hash onto
// the manifest's Novel.CoverBlurHash so callers can render a placeholder
// before the real cover has loaded.
//
// A BlurHash failure (e.g. an undecodable image) discards the hash,
// without logging, rather than failing the whole store: the cover image
// itself is still usable even without a blur placeholder.
func (e *Engine) StoreCoverAsset(ctx context.Context, id model.NovelID, data []byte) error {
	if err := e.StoreAsset(ctx, id, CoverAssetID, data); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sourceID, url, err := parseNovelID(id)
	if err != nil {
		return err
	}

	hash, err := images.ComputeBlurHash(e.assetPath(sourceID, url, CoverAssetID))
	if err != nil {
		// Non-fatal: keep the cover, skip the placeholder.
		return nil
	}

	meta, err := e.readManifest(sourceID, url)
	if err != nil {
		return err
	}
	meta.Novel.CoverBlurHash = hash
	return e.writeManifest(sourceID, url, *meta)
}

// GetCoverAsset reads the previously stored cover image, if any.
func (e *Engine) GetCoverAsset(ctx context.Context, id model.NovelID) ([]byte, error) {
	return e.GetAsset(ctx, id, CoverAssetID)
}
