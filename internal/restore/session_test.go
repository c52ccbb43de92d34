// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"testing"

	"github.com/jinkaiteo/edms-sub000/internal/model"
)

func TestSession_LaterStrategyOverridesOutcome(t *testing.T) {
	sess := NewSession("s1")
	sess.Record(RecordResult{ModelType: model.TypeDocuments, NaturalKey: []string{"DOC-1"},
		Outcome: OutcomeSkipped, Strategy: StrategyEnhanced})
	sess.Record(RecordResult{ModelType: model.TypeDocuments, NaturalKey: []string{"DOC-1"},
		Outcome: OutcomeCreated, Strategy: StrategyDirect, Partial: true})

	results := sess.Results()
	if len(results) != 1 {
		t.Fatalf("expected one final result, got %d", len(results))
	}
	if results[0].Outcome != OutcomeCreated || results[0].Strategy != StrategyDirect {
		t.Fatalf("override lost: %+v", results[0])
	}
}

func TestSession_ReportCompleteness(t *testing.T) {
	sess := NewSession("s2")
	sess.Record(RecordResult{ModelType: model.TypeRoles, NaturalKey: []string{"A"}, Outcome: OutcomeCreated})
	sess.Record(RecordResult{ModelType: model.TypeRoles, NaturalKey: []string{"B"}, Outcome: OutcomeLinkedExisting})
	sess.Record(RecordResult{ModelType: model.TypeRoles, NaturalKey: []string{"C"}, Outcome: OutcomeRemapped})
	sess.Record(RecordResult{ModelType: model.TypeUsers, NaturalKey: []string{"d"}, Outcome: OutcomeSkipped})

	r := sess.BuildReport(nil)
	if r.TotalRecords != 4 {
		t.Fatalf("expected 4 records, got %d", r.TotalRecords)
	}
	if r.Completeness != 0.75 {
		t.Fatalf("expected completeness 0.75, got %f", r.Completeness)
	}
	if r.PerType[model.TypeRoles][OutcomeCreated] != 1 {
		t.Fatalf("per-type tally wrong: %+v", r.PerType)
	}
}

func TestIdentifierMapping_FirstWriteWins(t *testing.T) {
	im := NewIdentifierMapping()
	im.Put(model.TypeRoles, "7", 101)
	im.Put(model.TypeRoles, "7", 999)

	id, ok := im.Get(model.TypeRoles, "7")
	if !ok || id != 101 {
		t.Fatalf("expected first mapping to stick, got %d (ok=%v)", id, ok)
	}
	if im.Len(model.TypeRoles) != 1 {
		t.Fatalf("expected one entry, got %d", im.Len(model.TypeRoles))
	}
}

func TestNaturalKeyIndex_PartitionedByType(t *testing.T) {
	ix := NewNaturalKeyIndex()
	ix.Put(model.TypeRoles, []string{"Reviewer"}, 5)
	ix.Put(model.TypeUsers, []string{"Reviewer"}, 8)

	if id, ok := ix.Get(model.TypeRoles, []string{"Reviewer"}); !ok || id != 5 {
		t.Fatalf("role partition wrong: %d %v", id, ok)
	}
	if id, ok := ix.Get(model.TypeUsers, []string{"Reviewer"}); !ok || id != 8 {
		t.Fatalf("user partition wrong: %d %v", id, ok)
	}
	if _, ok := ix.Get(model.TypeDocuments, []string{"Reviewer"}); ok {
		t.Fatalf("unexpected hit in untouched partition")
	}
}
