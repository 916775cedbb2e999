package fetch

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCache_PutAndGet(t *testing.T) {
	cache, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	testURL := "https://law.example.gov/title-1/chapter-1"
	testBody := []byte("<html><body>§ 1-1-10. Short title.\n\x00\xff binary-safe</body></html>")

	if err := cache.Put(testURL, testBody, 200); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	retrievedBody, found := cache.Get(testURL)
	if !found {
		t.Fatal("Get returned not found for cached URL")
	}
	if !bytes.Equal(retrievedBody, testBody) {
		t.Errorf("body: got %q, want %q", retrievedBody, testBody)
	}

	metadata, found := cache.Metadata(testURL)
	if !found {
		t.Fatal("Metadata returned not found")
	}
	if metadata.URL != testURL || metadata.StatusCode != 200 || metadata.Kind != TextBody {
		t.Errorf("unexpected metadata: %+v", metadata)
	}
}

func TestCache_Miss(t *testing.T) {
	cache, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	if _, found := cache.Get("https://nonexistent.example.com/doc"); found {
		t.Error("Get returned found for uncached URL")
	}
}

func TestCache_Expiry(t *testing.T) {
	cache, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	storedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return storedAt }

	testURL := "https://law.example.gov/page"
	if err := cache.Put(testURL, []byte("body"), 200); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	cache.now = func() time.Time { return storedAt.Add(59 * time.Minute) }
	if _, found := cache.Get(testURL); !found {
		t.Error("expected entry within TTL to be served")
	}

	cache.now = func() time.Time { return storedAt.Add(61 * time.Minute) }
	if _, found := cache.Get(testURL); found {
		t.Error("expected entry past TTL to be a miss")
	}
}

func TestCache_TextAndBinaryAreSeparate(t *testing.T) {
	cacheDir := t.TempDir()
	cache, err := NewCache(cacheDir, time.Hour)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	archiveURL := "https://bulk.example.gov/code.zip"
	if err := cache.PutBinary(archiveURL, []byte{0x50, 0x4b, 0x03, 0x04}, 200); err != nil {
		t.Fatalf("PutBinary failed: %v", err)
	}

	if _, found := cache.Get(archiveURL); found {
		t.Error("binary entry must not be served as text")
	}
	if body, found := cache.GetBinary(archiveURL); !found || len(body) != 4 {
		t.Errorf("GetBinary: got %v, %v", body, found)
	}

	key := cache.keyFor(archiveURL)
	for _, name := range []string{key + ".bin", key + ".meta.json"} {
		if _, err := os.Stat(filepath.Join(cacheDir, name)); err != nil {
			t.Errorf("expected %s on disk: %v", name, err)
		}
	}
}

func TestCache_ConcurrentWritersLeaveOneCompleteEntry(t *testing.T) {
	cacheDir := t.TempDir()
	cache, err := NewCache(cacheDir, time.Hour)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	testURL := "https://law.example.gov/contended"
	var waitGroup sync.WaitGroup
	for writer := 0; writer < 8; writer++ {
		waitGroup.Add(1)
		go func(writer int) {
			defer waitGroup.Done()
			body := []byte(strings.Repeat(string(rune('a'+writer)), 4096))
			if err := cache.Put(testURL, body, 200); err != nil {
				t.Errorf("Put failed: %v", err)
			}
		}(writer)
	}
	waitGroup.Wait()

	body, found := cache.Get(testURL)
	if !found {
		t.Fatal("expected an entry after concurrent writes")
	}
	if len(body) != 4096 || strings.Count(string(body), string(body[0])) != 4096 {
		t.Error("expected one writer's complete body")
	}

	leftovers, _ := filepath.Glob(filepath.Join(cacheDir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}
