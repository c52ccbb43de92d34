// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/jinkaiteo/edms-sub000/internal/model"
)

func samplePackage() *model.BackupPackage {
	return &model.BackupPackage{
		Manifest: model.Manifest{
			FormatVersion: model.ManifestVersion,
			KeyFormat:     model.KeyFormatNatural,
			CreatedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			SourceSystem:  "edms-test",
		},
		Records: map[string][]model.ExportedRecord{
			model.TypeRoles: {
				{ModelType: model.TypeRoles, NaturalKey: []string{"Reviewer"}, LegacyID: 7,
					Fields: map[string]model.FieldValue{"name": model.Lit("Reviewer")}},
			},
			model.TypeUsers: {
				{ModelType: model.TypeUsers, NaturalKey: []string{"alice"}, LegacyID: 3,
					Fields: map[string]model.FieldValue{
						"username": model.Lit("alice"), "is_active": model.Lit(true),
					}},
			},
		},
	}
}

func TestArchive_RoundTrip(t *testing.T) {
	pkg := samplePackage()
	var buf bytes.Buffer
	if err := WriteArchive(pkg, "", &buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := ReadArchive(&buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Manifest.KeyFormat != model.KeyFormatNatural {
		t.Fatalf("key format lost: %q", got.Manifest.KeyFormat)
	}
	if len(got.Records[model.TypeRoles]) != 1 || got.Records[model.TypeRoles][0].NaturalKey[0] != "Reviewer" {
		t.Fatalf("roles did not survive the round trip: %+v", got.Records[model.TypeRoles])
	}
	if got.Records[model.TypeUsers][0].LegacyID != 3 {
		t.Fatalf("legacy id lost: %+v", got.Records[model.TypeUsers][0])
	}
}

func TestArchive_CarriesArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "SOP-001"), 0o755); err != nil {
		t.Fatal(err)
	}
	content := []byte("pdf payload")
	if err := os.WriteFile(filepath.Join(dir, "SOP-001", "v1.pdf"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	pkg := samplePackage()
	pkg.Records[model.TypeDocumentVersions] = []model.ExportedRecord{
		{ModelType: model.TypeDocumentVersions, NaturalKey: []string{"SOP-001", "1"},
			Fields: map[string]model.FieldValue{
				"file_path": model.Lit("SOP-001/v1.pdf"),
				"seq":       model.Lit(1),
			}},
	}

	var buf bytes.Buffer
	if err := WriteArchive(pkg, dir, &buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := ReadArchive(&buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got.Artifacts["SOP-001/v1.pdf"], content) {
		t.Fatalf("artifact content lost: %q", got.Artifacts["SOP-001/v1.pdf"])
	}
}

// rewriteArchive unpacks a written archive, applies mutate to its entries
// and repacks it, so corruption cases can be constructed.
func rewriteArchive(t *testing.T, src []byte, mutate func(entries map[string][]byte)) []byte {
	t.Helper()
	zr, err := zstd.NewReader(bytes.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	tr := tar.NewReader(zr)
	entries := map[string][]byte{}
	var order []string
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		var b bytes.Buffer
		if _, err := b.ReadFrom(tr); err != nil {
			t.Fatal(err)
		}
		entries[hdr.Name] = b.Bytes()
		order = append(order, hdr.Name)
	}

	mutate(entries)

	var out bytes.Buffer
	zw, err := zstd.NewWriter(&out)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(zw)
	for _, name := range order {
		data, ok := entries[name]
		if !ok {
			continue
		}
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return out.Bytes()
}

func TestArchive_MissingManifestIsStructural(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteArchive(samplePackage(), "", &buf); err != nil {
		t.Fatal(err)
	}
	broken := rewriteArchive(t, buf.Bytes(), func(entries map[string][]byte) {
		delete(entries, "manifest.json")
	})

	_, err := ReadArchive(bytes.NewReader(broken))
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("expected ErrNoManifest, got %v", err)
	}
}

func TestArchive_CorruptedDataFails(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteArchive(samplePackage(), "", &buf); err != nil {
		t.Fatal(err)
	}
	broken := rewriteArchive(t, buf.Bytes(), func(entries map[string][]byte) {
		entries["data/roles.json"] = append(entries["data/roles.json"], ' ')
	})

	_, err := ReadArchive(bytes.NewReader(broken))
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

func TestArchive_MissingKeyFormatMeansLegacy(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteArchive(samplePackage(), "", &buf); err != nil {
		t.Fatal(err)
	}
	broken := rewriteArchive(t, buf.Bytes(), func(entries map[string][]byte) {
		var m model.Manifest
		if err := json.Unmarshal(entries["manifest.json"], &m); err != nil {
			t.Fatal(err)
		}
		m.KeyFormat = ""
		data, err := json.Marshal(m)
		if err != nil {
			t.Fatal(err)
		}
		entries["manifest.json"] = data
	})

	got, err := ReadArchive(bytes.NewReader(broken))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Manifest.KeyFormat != model.KeyFormatLegacy {
		t.Fatalf("expected legacy default, got %q", got.Manifest.KeyFormat)
	}
}
