package storage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{10, 20, 30, 255})
		}
	}
	return img
}

func TestPreyImageArchiveWritesUnderPreyImagesPrefix(t *testing.T) {
	store := NewFilesystemStore(t.TempDir())
	archive := NewPreyImageArchive(store)

	at := time.Unix(1700000000, 0)
	if err := archive.SavePreyImage([]byte("jpeg-bytes"), at); err != nil {
		t.Fatalf("SavePreyImage: %v", err)
	}

	want := filepath.Join(store.rootDir, "prey_images", "prey_1700000000.jpg")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected file at %s: %v", want, err)
	}
}

func TestTrackerImageSaverWritesUnderDetectionImagesPrefix(t *testing.T) {
	store := NewFilesystemStore(t.TempDir())
	saver := NewTrackerImageSaver(store)

	at := time.Unix(1700000000, 0)
	if err := saver.SaveTrackedObjectImage("catdoor", "cat_0", at, solidImage(8, 8)); err != nil {
		t.Fatalf("SaveTrackedObjectImage: %v", err)
	}

	want := filepath.Join(store.rootDir, "detection_images", "catdoor_cat_0", "1700000000.jpg")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected file at %s: %v", want, err)
	}
}

func TestPreyDetectorImageArchiveWritesUnderPreyDetectorImagesPrefix(t *testing.T) {
	store := NewFilesystemStore(t.TempDir())
	archive := NewPreyDetectorImageArchive(store)

	at := time.Unix(1700000000, 0)
	if err := archive.SaveDetectorImage([]byte("jpeg-bytes"), at); err != nil {
		t.Fatalf("SaveDetectorImage: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(store.rootDir, "prey_detector_images"))
	if err != nil {
		t.Fatalf("read prey_detector_images dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one file, got %d", len(entries))
	}
}
