package splitcache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func writeStem(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("pcm"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStoreLookup(t *testing.T) {
	c := openTestCache(t)
	dir := t.TempDir()
	key := Key{Digest: "abc123", Model: "htdemucs", BitDepth: 16}
	entry := Entry{
		Stems: map[string]string{
			"vocals": writeStem(t, dir, "vocals.wav"),
			"drums":  writeStem(t, dir, "drums.wav"),
		},
		SampleRate: 44100,
	}

	if err := c.Store(key, entry); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := c.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.SampleRate != 44100 || len(got.Stems) != 2 {
		t.Errorf("entry = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
}

func TestLookupMiss(t *testing.T) {
	c := openTestCache(t)
	if _, err := c.Lookup(Key{Digest: "none", Model: "htdemucs"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestKeyOptionsDistinguished(t *testing.T) {
	c := openTestCache(t)
	dir := t.TempDir()
	entry := Entry{Stems: map[string]string{"vocals": writeStem(t, dir, "v.wav")}}

	base := Key{Digest: "abc", Model: "htdemucs", BitDepth: 16}
	if err := c.Store(base, entry); err != nil {
		t.Fatal(err)
	}

	variants := []Key{
		{Digest: "abc", Model: "htdemucs_6s", BitDepth: 16},
		{Digest: "abc", Model: "htdemucs", BitDepth: 24},
		{Digest: "abc", Model: "htdemucs", BitDepth: 16, TwoStems: true},
		{Digest: "xyz", Model: "htdemucs", BitDepth: 16},
	}
	for _, k := range variants {
		if _, err := c.Lookup(k); !errors.Is(err, ErrNotFound) {
			t.Errorf("key %+v unexpectedly hit", k)
		}
	}
}

func TestLookupEvictsStaleEntry(t *testing.T) {
	c := openTestCache(t)
	dir := t.TempDir()
	stem := writeStem(t, dir, "vocals.wav")
	key := Key{Digest: "abc", Model: "htdemucs"}
	if err := c.Store(key, Entry{Stems: map[string]string{"vocals": stem}}); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(stem); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Lookup(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after stem removal", err)
	}

	// Recreating the file must not resurrect the evicted entry.
	writeStem(t, dir, "vocals.wav")
	if _, err := c.Lookup(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("evicted entry came back: %v", err)
	}
}

func TestEvictIdempotent(t *testing.T) {
	c := openTestCache(t)
	key := Key{Digest: "abc", Model: "htdemucs"}
	if err := c.Evict(key); err != nil {
		t.Errorf("Evict on missing key: %v", err)
	}
}

func TestDigestFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.WriteFile(a, []byte("same content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("same content"), 0o644); err != nil {
		t.Fatal(err)
	}

	da, err := DigestFile(a)
	if err != nil {
		t.Fatal(err)
	}
	db, err := DigestFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if da != db {
		t.Error("identical contents produced different digests")
	}
	if len(da) != 64 {
		t.Errorf("digest length %d, want 64 hex chars", len(da))
	}

	if _, err := DigestFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
