// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"fmt"

	"github.com/jinkaiteo/edms-sub000/internal/model"
)

// UnresolvedReferenceError reports a foreign key that could not be resolved
// against the destination. Recorded per record, never fatal.
type UnresolvedReferenceError struct {
	Field string
	Ref   model.ForeignKeyReference
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference %s -> %s[%s]", e.Field, e.Ref.TargetModelType, model.FormatKey(e.Ref.TargetNaturalKey))
}

// ConflictError reports a create that collided with an existing natural key
// under a policy that forbids overwrite. The default policy resolves it by
// linking the existing row instead.
type ConflictError struct {
	ModelType  string
	NaturalKey []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("natural key conflict on %s[%s]", e.ModelType, model.FormatKey(e.NaturalKey))
}

// ChecksumMismatchError reports a restored binary artifact whose recomputed
// checksum differs from the snapshot's. The owning record is flagged
// degraded but not rolled back.
type ChecksumMismatchError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("artifact checksum mismatch for %s: want %s, got %s", e.Path, e.Want, e.Got)
}

// SchemaVersionMismatchError reports a package whose format version this
// engine cannot process. Fatal at the package level: nothing is restored.
type SchemaVersionMismatchError struct {
	PackageVersion int
	EngineVersion  int
}

func (e *SchemaVersionMismatchError) Error() string {
	return fmt.Sprintf("package format version %d not supported (engine supports up to %d)", e.PackageVersion, e.EngineVersion)
}

// StrategyExhaustedError reports a record that failed the enhanced, direct,
// and raw paths in turn. Recorded as failed; the session continues.
type StrategyExhaustedError struct {
	Record string
	Last   error
}

func (e *StrategyExhaustedError) Error() string {
	return fmt.Sprintf("all restore strategies failed for %s: %v", e.Record, e.Last)
}

func (e *StrategyExhaustedError) Unwrap() error { return e.Last }
