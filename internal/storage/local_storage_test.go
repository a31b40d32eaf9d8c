package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorage(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewLocalStorage(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	t.Run("SaveVideo", func(t *testing.T) {
		content := []byte("test video content")

		filename, err := store.SaveVideo(bytes.NewReader(content), "procedure.mp4")
		if err != nil {
			t.Fatalf("Failed to save video: %v", err)
		}

		if filepath.Ext(filename) != ".mp4" {
			t.Errorf("Expected .mp4 extension, got %s", filepath.Ext(filename))
		}

		savedPath := filepath.Join(tmpDir, filename)
		if _, err := os.Stat(savedPath); os.IsNotExist(err) {
			t.Errorf("Video was not saved to expected location: %s", savedPath)
		}
	})

	t.Run("SaveVideoDefaultExtension", func(t *testing.T) {
		filename, err := store.SaveVideo(bytes.NewReader([]byte("x")), "noext")
		if err != nil {
			t.Fatalf("Failed to save video: %v", err)
		}
		if filepath.Ext(filename) != ".mp4" {
			t.Errorf("Expected default .mp4 extension, got %s", filepath.Ext(filename))
		}
	})

	t.Run("Path", func(t *testing.T) {
		filename, err := store.SaveVideo(bytes.NewReader([]byte("content")), "a.mp4")
		if err != nil {
			t.Fatalf("Failed to save video: %v", err)
		}

		path, err := store.Path(filename)
		if err != nil {
			t.Fatalf("Failed to resolve path: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Resolved path does not exist: %v", err)
		}

		if _, err := store.Path("missing.mp4"); err == nil {
			t.Error("Expected error for missing video")
		}
	})

	t.Run("OpenVideo", func(t *testing.T) {
		content := []byte("test video content")
		testFile := "test-file.mp4"
		fullPath := filepath.Join(tmpDir, testFile)

		if err := os.WriteFile(fullPath, content, 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		file, err := store.OpenVideo(testFile)
		if err != nil {
			t.Fatalf("Failed to open video: %v", err)
		}
		defer file.Close()

		buf := make([]byte, len(content))
		n, err := file.Read(buf)
		if err != nil {
			t.Fatalf("Failed to read video: %v", err)
		}

		if n != len(content) || !bytes.Equal(buf, content) {
			t.Errorf("Video content mismatch")
		}
	})

	t.Run("DeleteVideo", func(t *testing.T) {
		testFile := "delete-test.mp4"
		fullPath := filepath.Join(tmpDir, testFile)

		if err := os.WriteFile(fullPath, []byte("test"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		if err := store.DeleteVideo(testFile); err != nil {
			t.Fatalf("Failed to delete video: %v", err)
		}

		if _, err := os.Stat(fullPath); !os.IsNotExist(err) {
			t.Errorf("Video was not deleted")
		}
	})

	t.Run("PathTraversalPrevention", func(t *testing.T) {
		if _, err := store.OpenVideo("../../../etc/passwd"); err == nil {
			t.Errorf("Path traversal was not prevented")
		}
		if err := store.DeleteVideo("../../../etc/passwd"); err == nil {
			t.Errorf("Path traversal was not prevented in delete")
		}
		if _, err := store.Path("/etc/passwd"); err == nil {
			t.Errorf("Absolute path was not rejected")
		}
	})
}
