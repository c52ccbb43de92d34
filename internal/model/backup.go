// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"fmt"
	"strings"
	"time"
)

// Snapshot key-format identifiers recorded in the package manifest.
const (
	KeyFormatNatural = "natural"
	KeyFormatLegacy  = "legacy"
)

// ManifestVersion is the current package format version.
const ManifestVersion = 2

// Manifest describes a backup package. It is stored as manifest.json at the
// root of the package archive and is never mutated after creation.
type Manifest struct {
	FormatVersion int               `json:"format_version"`
	KeyFormat     string            `json:"key_format,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	SourceSystem  string            `json:"source_system"`
	ModelTypes    []string          `json:"model_types"`
	Checksums     map[string]string `json:"checksums"`
}

// ForeignKeyReference points at another snapshot entity by natural key.
// The canonical (natural) package format never embeds raw surrogate ids.
type ForeignKeyReference struct {
	TargetModelType  string   `json:"model_type"`
	TargetNaturalKey []string `json:"natural_key"`
}

// FieldValue is either a literal value or a foreign-key reference. Exactly
// one of the two is set.
type FieldValue struct {
	Literal any                  `json:"value,omitempty"`
	Ref     *ForeignKeyReference `json:"ref,omitempty"`
}

// Lit wraps a literal field value.
func Lit(v any) FieldValue { return FieldValue{Literal: v} }

// RefTo wraps a foreign-key reference field value.
func RefTo(modelType string, key ...string) FieldValue {
	return FieldValue{Ref: &ForeignKeyReference{TargetModelType: modelType, TargetNaturalKey: key}}
}

// ExportedRecord is one serialized entity in a backup package.
type ExportedRecord struct {
	ModelType  string                `json:"model_type"`
	NaturalKey []string              `json:"natural_key"`
	// LegacyID is the surrogate id the entity had in the source database.
	// It is informational for most types and load-bearing only for
	// reset-preserved types, where it seeds the identifier mapping.
	LegacyID int64                 `json:"legacy_id,omitempty"`
	Fields   map[string]FieldValue `json:"fields"`
}

// BackupPackage is the in-memory form of a package archive: the manifest
// plus the exported records grouped by model type.
type BackupPackage struct {
	Manifest Manifest
	Records  map[string][]ExportedRecord
	// Artifacts maps artifact-relative paths to file contents for binary
	// files carried inside the archive. Empty when the package was created
	// without artifacts.
	Artifacts map[string][]byte
}

// RecordsFor returns the records of one model type, never nil.
func (p *BackupPackage) RecordsFor(modelType string) []ExportedRecord {
	if p.Records == nil {
		return nil
	}
	return p.Records[modelType]
}

// TotalRecords counts every exported record across model types.
func (p *BackupPackage) TotalRecords() int {
	n := 0
	for _, recs := range p.Records {
		n += len(recs)
	}
	return n
}

// KeyString renders a natural key tuple as a stable cache/map key. The unit
// separator keeps composite keys unambiguous.
func KeyString(key []string) string { return strings.Join(key, "\x1f") }

// FormatKey renders a natural key for log and report output.
func FormatKey(key []string) string { return strings.Join(key, "/") }

// String implements fmt.Stringer for concise record identification in logs.
func (r ExportedRecord) String() string {
	return fmt.Sprintf("%s[%s]", r.ModelType, FormatKey(r.NaturalKey))
}
