// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/uptrace/bun"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/logging"
	"github.com/jinkaiteo/edms-sub000/internal/model"
)

// Scenario classifies the destination relative to the snapshot's
// reset-preserved entity set.
type Scenario string

const (
	// ScenarioNormal means preserved entities coincide (or the destination
	// is empty); resolution is pure pass-through.
	ScenarioNormal Scenario = "normal"
	// ScenarioReduced means the destination has been reset: preserved
	// natural keys match but surrogate identifiers diverge, so the
	// identifier mapping must be populated before anything else.
	ScenarioReduced Scenario = "reduced"
)

// DetectPolicy tunes scenario classification. The count-comparison heuristic
// is a conservative proxy, not a certain signal, so it stays configurable.
type DetectPolicy struct {
	// NormalThreshold is the fraction of key-matched preserved entities
	// that must hold identical surrogate ids for the destination to be
	// classified normal. Anything below it defaults to reduced, which
	// degrades gracefully to ordinary resolution when no remapping is
	// actually needed.
	NormalThreshold float64
}

// DefaultDetectPolicy requires an exact id coincidence for normal.
func DefaultDetectPolicy() DetectPolicy {
	return DetectPolicy{NormalThreshold: 1.0}
}

// Detection is the detector's verdict for one package/destination pair.
type Detection struct {
	KeyFormat string
	Scenario  Scenario
}

// Detect inspects the package manifest and the destination's
// reset-preserved entities and decides key format and scenario.
func Detect(ctx context.Context, idb bun.IDB, pkg *model.BackupPackage, pol DetectPolicy) (Detection, error) {
	det := Detection{KeyFormat: pkg.Manifest.KeyFormat, Scenario: ScenarioNormal}
	if det.KeyFormat == "" {
		det.KeyFormat = model.KeyFormatLegacy
	}

	// Legacy packages carry raw identifiers in their reference fields.
	// Those only resolve through the identifier mapping, so the reduced
	// path is taken unconditionally; into an already-matching destination
	// it degrades to ordinary resolution.
	if det.KeyFormat == model.KeyFormatLegacy {
		det.Scenario = ScenarioReduced
		logging.Debugf("restore: detected key_format=%s scenario=%s (legacy references require the identifier mapping)",
			det.KeyFormat, det.Scenario)
		return det, nil
	}

	matched, sameID, snapTotal, destTotal := 0, 0, 0, 0
	for _, ti := range model.PreservedTypes() {
		recs := pkg.RecordsFor(ti.Name)
		snapTotal += len(recs)
		rows, err := db.PreservedRowsBun(ctx, idb, ti.Name)
		if err != nil {
			return det, fmt.Errorf("inspect preserved %s: %w", ti.Name, err)
		}
		destTotal += len(rows)
		byKey := make(map[string]int64, len(rows))
		for _, row := range rows {
			byKey[model.KeyString(row.Key)] = row.ID
		}
		for _, rec := range recs {
			id, ok := byKey[model.KeyString(rec.NaturalKey)]
			if !ok {
				continue
			}
			matched++
			if rec.LegacyID != 0 && rec.LegacyID == id {
				sameID++
			}
		}
	}

	switch {
	case snapTotal == 0 || destTotal == 0:
		// Nothing to compare: an empty destination has nothing to remap.
		det.Scenario = ScenarioNormal
	case matched == 0:
		// Preserved sets are disjoint by key; treat as a reset with extra
		// drift and let remapping degrade to ordinary resolution.
		det.Scenario = ScenarioReduced
	case float64(sameID)/float64(matched) >= pol.NormalThreshold && matched == snapTotal:
		det.Scenario = ScenarioNormal
	default:
		det.Scenario = ScenarioReduced
	}

	logging.Debugf("restore: detected key_format=%s scenario=%s (snapshot=%d destination=%d matched=%d same_id=%d)",
		det.KeyFormat, det.Scenario, snapTotal, destTotal, matched, sameID)
	return det, nil
}

// ApplyLegacyShim rewrites a legacy-format package in place so the rest of
// the engine only ever sees natural-key references: every raw identifier in
// a declared reference field becomes an opaque single-element natural key
// scoped to its target model type.
func ApplyLegacyShim(pkg *model.BackupPackage) {
	for typeName, recs := range pkg.Records {
		ti, ok := model.TypeByName(typeName)
		if !ok || len(ti.RefFields) == 0 {
			continue
		}
		for i := range recs {
			for field, target := range ti.RefFields {
				fv, ok := recs[i].Fields[field]
				if !ok || fv.Ref != nil || fv.Literal == nil {
					continue
				}
				recs[i].Fields[field] = model.RefTo(target, legacyKey(fv.Literal))
			}
		}
		pkg.Records[typeName] = recs
	}
}

func legacyKey(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		// JSON numbers decode as float64.
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case int:
		return strconv.Itoa(n)
	default:
		return fmt.Sprint(v)
	}
}
