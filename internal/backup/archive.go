// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/jinkaiteo/edms-sub000/internal/logging"
	"github.com/jinkaiteo/edms-sub000/internal/model"
)

// ErrNoManifest reports a package archive without a manifest.json entry.
// This is a package-level structural error: nothing is restored from such
// an archive.
var ErrNoManifest = errors.New("package has no manifest.json")

// ErrChecksum reports a data file whose content does not match the checksum
// recorded in the manifest.
var ErrChecksum = errors.New("package checksum mismatch")

const (
	manifestName = "manifest.json"
	dataPrefix   = "data/"
	artifactPref = "artifacts/"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// WriteArchive serializes a package as a zstd-compressed tar stream. Data
// files are checksummed into the manifest before the manifest itself is
// written, so a reader can verify content before touching any destination.
// artifactDir, when non-empty, is the root the version file paths resolve
// against; referenced files are carried inside the archive.
func WriteArchive(pkg *model.BackupPackage, artifactDir string, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	defer func() { _ = zw.Close() }()
	tw := tar.NewWriter(zw)

	type entry struct {
		name string
		data []byte
	}
	var entries []entry

	var types []string
	for t := range pkg.Records {
		types = append(types, t)
	}
	sort.Strings(types)

	manifest := pkg.Manifest
	manifest.Checksums = map[string]string{}
	manifest.ModelTypes = types

	for _, t := range types {
		data, err := json.MarshalIndent(pkg.Records[t], "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s records: %w", t, err)
		}
		name := dataPrefix + t + ".json"
		manifest.Checksums[name] = sha256Hex(data)
		entries = append(entries, entry{name: name, data: data})
	}

	// Carry binary artifacts referenced by document versions.
	if artifactDir != "" {
		seen := map[string]bool{}
		for _, rec := range pkg.Records[model.TypeDocumentVersions] {
			fp, _ := rec.Fields["file_path"].Literal.(string)
			if fp == "" || seen[fp] {
				continue
			}
			seen[fp] = true
			data, err := os.ReadFile(filepath.Join(artifactDir, filepath.FromSlash(fp)))
			if err != nil {
				logging.Warnf("backup: artifact %s unreadable, omitted: %v", fp, err)
				continue
			}
			name := artifactPref + path.Clean(fp)
			manifest.Checksums[name] = sha256Hex(data)
			entries = append(entries, entry{name: name, data: data})
		}
	}

	mdata, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	writeFile := func(name string, data []byte) error {
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: manifest.CreatedAt,
		}
		if hdr.ModTime.IsZero() {
			hdr.ModTime = time.Now()
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := tw.Write(data)
		return err
	}

	if err := writeFile(manifestName, mdata); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	for _, e := range entries {
		if err := writeFile(e.name, e.data); err != nil {
			return fmt.Errorf("write %s: %w", e.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return zw.Close()
}

// ReadArchive parses a zstd-compressed tar package stream, verifies every
// checksummed entry against the manifest, and returns the in-memory package.
// A missing manifest aborts the read; a manifest without a key-format flag
// yields a legacy-format package.
func ReadArchive(r io.Reader) (*model.BackupPackage, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	files := map[string][]byte{}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return nil, fmt.Errorf("read archive entry %s: %w", hdr.Name, err)
		}
		files[path.Clean(hdr.Name)] = buf.Bytes()
	}

	mdata, ok := files[manifestName]
	if !ok {
		return nil, ErrNoManifest
	}
	var manifest model.Manifest
	if err := json.Unmarshal(mdata, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.KeyFormat == "" {
		// Pre-natural-key packages never set the flag.
		manifest.KeyFormat = model.KeyFormatLegacy
	}

	for name, want := range manifest.Checksums {
		data, ok := files[path.Clean(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %s listed in manifest but missing", ErrChecksum, name)
		}
		if got := sha256Hex(data); got != want {
			return nil, fmt.Errorf("%w: %s", ErrChecksum, name)
		}
	}

	pkg := &model.BackupPackage{
		Manifest:  manifest,
		Records:   map[string][]model.ExportedRecord{},
		Artifacts: map[string][]byte{},
	}
	for name, data := range files {
		switch {
		case strings.HasPrefix(name, dataPrefix) && strings.HasSuffix(name, ".json"):
			t := strings.TrimSuffix(strings.TrimPrefix(name, dataPrefix), ".json")
			if _, known := model.TypeByName(t); !known {
				return nil, fmt.Errorf("package contains unknown model type %q", t)
			}
			var recs []model.ExportedRecord
			if err := json.Unmarshal(data, &recs); err != nil {
				return nil, fmt.Errorf("parse %s: %w", name, err)
			}
			pkg.Records[t] = recs
		case strings.HasPrefix(name, artifactPref):
			pkg.Artifacts[strings.TrimPrefix(name, artifactPref)] = data
		}
	}
	return pkg, nil
}

// WriteArchiveFile writes a package archive to a file path.
func WriteArchiveFile(pkg *model.BackupPackage, artifactDir, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create package file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := WriteArchive(pkg, artifactDir, f); err != nil {
		return err
	}
	return f.Close()
}

// ReadArchiveFile reads a package archive from a file path.
func ReadArchiveFile(inPath string) (*model.BackupPackage, error) {
	f, err := os.Open(inPath)
	if err != nil {
		return nil, fmt.Errorf("open package file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadArchive(f)
}
