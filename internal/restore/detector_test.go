// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"context"
	"testing"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/model"
)

func newTestStore(t *testing.T) db.Store {
	t.Helper()
	s, err := db.NewStoreFromDSN("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pkgWithRole(name string, legacyID int64) *model.BackupPackage {
	return &model.BackupPackage{
		Manifest: model.Manifest{FormatVersion: model.ManifestVersion, KeyFormat: model.KeyFormatNatural},
		Records: map[string][]model.ExportedRecord{
			model.TypeRoles: {
				{ModelType: model.TypeRoles, NaturalKey: []string{name}, LegacyID: legacyID,
					Fields: map[string]model.FieldValue{"name": model.Lit(name)}},
			},
		},
	}
}

func TestDetect_EmptyDestinationIsNormal(t *testing.T) {
	s := newTestStore(t)
	det, err := Detect(context.Background(), s.Bun(), pkgWithRole("Reviewer", 7), DefaultDetectPolicy())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det.Scenario != ScenarioNormal {
		t.Fatalf("expected normal for empty destination, got %s", det.Scenario)
	}
	if det.KeyFormat != model.KeyFormatNatural {
		t.Fatalf("key format wrong: %s", det.KeyFormat)
	}
}

func TestDetect_LegacyFormatIsAlwaysReduced(t *testing.T) {
	s := newTestStore(t)

	// No key_format flag means legacy: raw ids in reference fields. Even
	// into an empty destination that must take the reduced path, otherwise
	// the shimmed id keys are looked up as if they were natural keys.
	pkg := pkgWithRole("Reviewer", 7)
	pkg.Manifest = model.Manifest{FormatVersion: 1}

	det, err := Detect(context.Background(), s.Bun(), pkg, DefaultDetectPolicy())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det.KeyFormat != model.KeyFormatLegacy {
		t.Fatalf("key format wrong: %s", det.KeyFormat)
	}
	if det.Scenario != ScenarioReduced {
		t.Fatalf("expected reduced for a legacy package, got %s", det.Scenario)
	}
}

func TestDetect_IdenticalIdsAreNormal(t *testing.T) {
	s := newTestStore(t)
	id, err := db.InsertByTypeBun(context.Background(), s.Bun(), model.TypeRoles, map[string]any{"name": "Reviewer"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	det, err := Detect(context.Background(), s.Bun(), pkgWithRole("Reviewer", id), DefaultDetectPolicy())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det.Scenario != ScenarioNormal {
		t.Fatalf("expected normal when ids coincide, got %s", det.Scenario)
	}
}

func TestDetect_IdDriftIsReduced(t *testing.T) {
	s := newTestStore(t)
	id, err := db.InsertByTypeBun(context.Background(), s.Bun(), model.TypeRoles, map[string]any{"name": "Reviewer"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Same natural key, different surrogate id: the reset signature.
	det, err := Detect(context.Background(), s.Bun(), pkgWithRole("Reviewer", id+100), DefaultDetectPolicy())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det.Scenario != ScenarioReduced {
		t.Fatalf("expected reduced on id drift, got %s", det.Scenario)
	}
}

func TestDetect_AmbiguityDefaultsToReduced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	// Destination holds a disjoint preserved set.
	if _, err := db.InsertByTypeBun(ctx, s.Bun(), model.TypeRoles, map[string]any{"name": "Admin"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	det, err := Detect(ctx, s.Bun(), pkgWithRole("Reviewer", 7), DefaultDetectPolicy())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det.Scenario != ScenarioReduced {
		t.Fatalf("expected conservative reduced, got %s", det.Scenario)
	}
}

func TestDetect_ThresholdIsConfigurable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id1, _ := db.InsertByTypeBun(ctx, s.Bun(), model.TypeRoles, map[string]any{"name": "Admin"})
	id2, _ := db.InsertByTypeBun(ctx, s.Bun(), model.TypeRoles, map[string]any{"name": "Reviewer"})

	pkg := pkgWithRole("Admin", id1)
	pkg.Records[model.TypeRoles] = append(pkg.Records[model.TypeRoles], model.ExportedRecord{
		ModelType: model.TypeRoles, NaturalKey: []string{"Reviewer"}, LegacyID: id2 + 50,
		Fields: map[string]model.FieldValue{"name": model.Lit("Reviewer")},
	})

	// Half the matched keys coincide by id. Strict policy says reduced.
	det, err := Detect(ctx, s.Bun(), pkg, DefaultDetectPolicy())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det.Scenario != ScenarioReduced {
		t.Fatalf("expected reduced at threshold 1.0, got %s", det.Scenario)
	}

	// A lenient policy accepts the same destination as normal.
	det, err = Detect(ctx, s.Bun(), pkg, DetectPolicy{NormalThreshold: 0.5})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det.Scenario != ScenarioNormal {
		t.Fatalf("expected normal at threshold 0.5, got %s", det.Scenario)
	}
}

func TestApplyLegacyShim_WrapsRawIds(t *testing.T) {
	pkg := &model.BackupPackage{
		Manifest: model.Manifest{FormatVersion: 1},
		Records: map[string][]model.ExportedRecord{
			model.TypeDocuments: {
				{ModelType: model.TypeDocuments, NaturalKey: []string{"DOC-1"},
					Fields: map[string]model.FieldValue{
						"number": model.Lit("DOC-1"),
						// Legacy packages carry raw ids in reference fields.
						"author": model.Lit(float64(42)),
						"state":  model.Lit("3"),
					}},
			},
		},
	}

	ApplyLegacyShim(pkg)

	doc := pkg.Records[model.TypeDocuments][0]
	author := doc.Fields["author"]
	if author.Ref == nil || author.Ref.TargetModelType != model.TypeUsers || author.Ref.TargetNaturalKey[0] != "42" {
		t.Fatalf("author not shimmed: %+v", author)
	}
	state := doc.Fields["state"]
	if state.Ref == nil || state.Ref.TargetNaturalKey[0] != "3" {
		t.Fatalf("state not shimmed: %+v", state)
	}
	// Non-reference literals stay untouched.
	if doc.Fields["number"].Ref != nil || doc.Fields["number"].Literal != "DOC-1" {
		t.Fatalf("number should stay literal: %+v", doc.Fields["number"])
	}
}
