package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"
)

// ArtifactStore persists the JPEG snapshots produced by the Tracker,
// Dispatcher, and Classifier under the three runtime directories.
type ArtifactStore interface {
	// Save writes data under key (a relative path, e.g.
	// "prey_images/prey_1700000000.jpg") and returns where it landed.
	Save(ctx context.Context, key string, data []byte) (string, error)
}

// FilesystemStore is the default ArtifactStore: plain files under a root
// directory, mirroring the upstream reference program's runtime/ layout.
type FilesystemStore struct {
	rootDir string
}

func NewFilesystemStore(rootDir string) *FilesystemStore {
	return &FilesystemStore{rootDir: rootDir}
}

func (s *FilesystemStore) Save(ctx context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(s.rootDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", key, err)
	}
	return path, nil
}

// MinIOArtifactStore adapts MinIOStore to ArtifactStore for deployments
// that prefer object storage over a local filesystem.
type MinIOArtifactStore struct {
	store *MinIOStore
}

func NewMinIOArtifactStore(store *MinIOStore) *MinIOArtifactStore {
	return &MinIOArtifactStore{store: store}
}

func (s *MinIOArtifactStore) Save(ctx context.Context, key string, data []byte) (string, error) {
	if err := s.store.PutObject(ctx, key, data, "image/jpeg"); err != nil {
		return "", err
	}
	return key, nil
}

var (
	_ ArtifactStore = (*FilesystemStore)(nil)
	_ ArtifactStore = (*MinIOArtifactStore)(nil)
)

// PreyImageArchive adapts an ArtifactStore to prey.ImageArchive, writing
// under the prey_images/ prefix named after the reference layout.
type PreyImageArchive struct {
	store ArtifactStore
}

func NewPreyImageArchive(store ArtifactStore) *PreyImageArchive {
	return &PreyImageArchive{store: store}
}

func (a *PreyImageArchive) SavePreyImage(jpeg []byte, at time.Time) error {
	key := fmt.Sprintf("prey_images/prey_%d.jpg", at.Unix())
	_, err := a.store.Save(context.Background(), key, jpeg)
	return err
}

// TrackerImageSaver adapts an ArtifactStore to vision.ImageSaver, writing the
// frames the Tracker samples for a tracked object under detection_images/,
// one subdirectory per tracker/object pair, named after the timestamp that
// triggered the save.
type TrackerImageSaver struct {
	store ArtifactStore
}

func NewTrackerImageSaver(store ArtifactStore) *TrackerImageSaver {
	return &TrackerImageSaver{store: store}
}

func (a *TrackerImageSaver) SaveTrackedObjectImage(trackerUUID, objKey string, at time.Time, img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("encode tracked object image: %w", err)
	}
	key := fmt.Sprintf("detection_images/%s_%s/%d.jpg", trackerUUID, objKey, at.Unix())
	_, err := a.store.Save(context.Background(), key, buf.Bytes())
	return err
}

// PreyDetectorImageArchive adapts an ArtifactStore to prey.DetectorImageArchive,
// writing every frame the Dispatcher admits (i.e. every frame handed to the
// classifier) under prey_detector_images/, independent of whether the
// classifier later calls it prey.
type PreyDetectorImageArchive struct {
	store ArtifactStore
}

func NewPreyDetectorImageArchive(store ArtifactStore) *PreyDetectorImageArchive {
	return &PreyDetectorImageArchive{store: store}
}

func (a *PreyDetectorImageArchive) SaveDetectorImage(jpeg []byte, at time.Time) error {
	key := fmt.Sprintf("prey_detector_images/detection_%d.jpg", at.UnixNano())
	_, err := a.store.Save(context.Background(), key, jpeg)
	return err
}
