// Package modelstore locates ONNX model files for the separation pipeline.
//
// A store is rooted at a local directory holding the model files and an
// optional manifest.yaml describing them. When a requested model file is
// missing locally and the store has been given an S3 client, the file is
// downloaded once and kept; later lookups hit the local copy.
//
// manifest.yaml lists one entry per model:
//
//	models:
//	  - name: htdemucs
//	    file: htdemucs.onnx
//	    remote: models/htdemucs.onnx
//	    sha256: 9f0c…
//
// Without a manifest the store falls back to <name>.onnx naming.
package modelstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/goccy/go-yaml"
)

// ManifestName is the store's optional index file.
const ManifestName = "manifest.yaml"

// ErrDigestMismatch indicates a downloaded model failed checksum
// verification.
var ErrDigestMismatch = errors.New("modelstore: digest mismatch")

// Entry describes one model file.
type Entry struct {
	// Name is the model identifier, e.g. "htdemucs".
	Name string `yaml:"name"`

	// File is the model's file name under the store directory.
	File string `yaml:"file"`

	// Remote is the object key to fetch when the file is missing locally.
	// Empty means local-only.
	Remote string `yaml:"remote,omitempty"`

	// SHA256 is the expected hex digest of the file. Empty skips
	// verification.
	SHA256 string `yaml:"sha256,omitempty"`
}

// Manifest is the store's on-disk index.
type Manifest struct {
	Models []Entry `yaml:"models"`
}

// S3API abstracts the S3 operations the store uses to fetch missing model
// files. The [s3.Client] type satisfies this interface.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Store resolves model names to local file paths.
type Store struct {
	dir      string
	manifest Manifest

	s3     S3API
	bucket string
	prefix string
}

// Open roots a store at dir, reading manifest.yaml when present. The
// directory is created if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("modelstore: create %s: %w", dir, err)
	}
	st := &Store{dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return st, nil
	case err != nil:
		return nil, fmt.Errorf("modelstore: read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &st.manifest); err != nil {
		return nil, fmt.Errorf("modelstore: parse manifest: %w", err)
	}
	return st, nil
}

// WithS3 enables fetching missing files from an object store. The client
// should be pre-configured with credentials, region and endpoint. Prefix is
// prepended to every remote key; pass "" for none.
func (s *Store) WithS3(client S3API, bucket, prefix string) *Store {
	s.s3 = client
	s.bucket = bucket
	s.prefix = prefix
	return s
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// List returns the manifest entries. Stores without a manifest list nothing.
func (s *Store) List() []Entry {
	return append([]Entry(nil), s.manifest.Models...)
}

// entry returns the manifest entry for name, or a synthetic <name>.onnx
// entry when the manifest has none.
func (s *Store) entry(name string) Entry {
	for _, e := range s.manifest.Models {
		if e.Name == name {
			return e
		}
	}
	return Entry{Name: name, File: name + ".onnx"}
}

// Resolve returns the local path of the named model, downloading it first
// if it is missing and a remote is configured. A model that exists nowhere
// returns an error wrapping os.ErrNotExist.
func (s *Store) Resolve(ctx context.Context, name string) (string, error) {
	e := s.entry(name)
	path := filepath.Join(s.dir, e.File)

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("modelstore: stat %s: %w", path, err)
	}

	if s.s3 == nil || e.Remote == "" {
		return "", fmt.Errorf("modelstore: model %s: %w", name, os.ErrNotExist)
	}
	if err := s.fetch(ctx, e, path); err != nil {
		return "", err
	}
	return path, nil
}

// fetch downloads one model file to path, verifying its digest when the
// entry declares one. The file appears atomically via rename.
func (s *Store) fetch(ctx context.Context, e Entry, path string) error {
	key := e.Remote
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("modelstore: model %s: %w", e.Name, os.ErrNotExist)
		}
		return fmt.Errorf("modelstore: fetch %s: %w", e.Name, err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp(s.dir, "."+e.File+"-*")
	if err != nil {
		return fmt.Errorf("modelstore: create temp: %w", err)
	}
	digest := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, digest), out.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("modelstore: download %s: %w", e.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("modelstore: close temp: %w", err)
	}

	if e.SHA256 != "" {
		got := hex.EncodeToString(digest.Sum(nil))
		if got != e.SHA256 {
			os.Remove(tmp.Name())
			return fmt.Errorf("%w: model %s: got %s, want %s", ErrDigestMismatch, e.Name, got, e.SHA256)
		}
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("modelstore: finalize %s: %w", e.Name, err)
	}
	return nil
}

// isNotFound reports whether err indicates a missing S3 object.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
