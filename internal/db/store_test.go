// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jinkaiteo/edms-sub000/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStoreFromDSN("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_InsertAndLookupByNaturalKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	roleID, err := InsertByTypeBun(ctx, s.Bun(), model.TypeRoles, map[string]any{"name": "Reviewer"})
	if err != nil {
		t.Fatalf("insert role failed: %v", err)
	}
	if roleID <= 0 {
		t.Fatalf("expected a positive role id, got %d", roleID)
	}

	id, found, err := LookupNaturalKeyBun(ctx, s.Bun(), model.TypeRoles, []string{"Reviewer"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !found || id != roleID {
		t.Fatalf("lookup mismatch: found=%v id=%d want %d", found, id, roleID)
	}

	_, found, err = LookupNaturalKeyBun(ctx, s.Bun(), model.TypeRoles, []string{"Nobody"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found {
		t.Fatalf("expected miss for unknown role")
	}
}

func TestStore_DuplicateNaturalKeyMapsToErrDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := InsertByTypeBun(ctx, s.Bun(), model.TypeUsers, map[string]any{"username": "alice", "is_active": true}); err != nil {
		t.Fatalf("insert alice failed: %v", err)
	}
	_, err := InsertByTypeBun(ctx, s.Bun(), model.TypeUsers, map[string]any{"username": "alice"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestStore_CompositeKeyLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID, err := InsertByTypeBun(ctx, s.Bun(), model.TypeUsers, map[string]any{"username": "bob", "is_active": true})
	if err != nil {
		t.Fatalf("insert user failed: %v", err)
	}
	roleID, err := InsertByTypeBun(ctx, s.Bun(), model.TypeRoles, map[string]any{"name": "Author"})
	if err != nil {
		t.Fatalf("insert role failed: %v", err)
	}
	if _, err := InsertByTypeBun(ctx, s.Bun(), model.TypeUserRoles, map[string]any{"user_id": userID, "role_id": roleID}); err != nil {
		t.Fatalf("insert user role failed: %v", err)
	}

	_, found, err := LookupNaturalKeyBun(ctx, s.Bun(), model.TypeUserRoles, []string{"bob", "Author"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !found {
		t.Fatalf("expected user role (bob, Author) to be found")
	}

	_, found, err = LookupNaturalKeyBun(ctx, s.Bun(), model.TypeUserRoles, []string{"bob", "Reviewer"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found {
		t.Fatalf("did not expect (bob, Reviewer) to exist")
	}
}

func TestStore_DocumentGraphRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bdb := s.Bun()

	dtID, _ := InsertByTypeBun(ctx, bdb, model.TypeDocumentTypes, map[string]any{"code": "SOP", "name": "Standard Operating Procedure"})
	stID, _ := InsertByTypeBun(ctx, bdb, model.TypeWorkflowStates, map[string]any{"code": "draft", "label": "Draft"})
	uID, _ := InsertByTypeBun(ctx, bdb, model.TypeUsers, map[string]any{"username": "carol", "is_active": true})

	docID, err := InsertByTypeBun(ctx, bdb, model.TypeDocuments, map[string]any{
		"number": "SOP-001", "title": "Cleaning",
		"doc_type_id": dtID, "author_id": uID, "state_id": stID,
		"created_at": time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert document failed: %v", err)
	}

	verID, err := InsertByTypeBun(ctx, bdb, model.TypeDocumentVersions, map[string]any{
		"document_id": docID, "seq": int64(1), "file_path": "SOP-001/v1.pdf",
		"checksum": "abc123", "created_by_id": uID,
	})
	if err != nil {
		t.Fatalf("insert version failed: %v", err)
	}
	if verID <= 0 {
		t.Fatalf("expected a positive version id")
	}

	id, found, err := LookupNaturalKeyBun(ctx, bdb, model.TypeDocumentVersions, []string{"SOP-001", "1"})
	if err != nil || !found || id != verID {
		t.Fatalf("version lookup mismatch: id=%d found=%v err=%v", id, found, err)
	}

	docs, err := GetAllDocumentsBun(ctx, bdb)
	if err != nil {
		t.Fatalf("GetAllDocuments failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Number != "SOP-001" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
}

func TestStore_UpdateColumn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, _ := InsertByTypeBun(ctx, s.Bun(), model.TypeDocuments, map[string]any{"number": "DOC-1", "title": "one"})
	id2, _ := InsertByTypeBun(ctx, s.Bun(), model.TypeDocuments, map[string]any{"number": "DOC-2", "title": "two"})

	if err := UpdateColumnBun(ctx, s.Bun(), "documents", id1, "superseded_by_id", id2); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	docs, err := GetAllDocumentsBun(ctx, s.Bun())
	if err != nil {
		t.Fatalf("GetAllDocuments failed: %v", err)
	}
	for _, d := range docs {
		if d.Number == "DOC-1" && d.SupersededByID != id2 {
			t.Fatalf("expected DOC-1 superseded by %d, got %d", id2, d.SupersededByID)
		}
	}
}

func TestStore_RawInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := RawInsertByTypeBun(ctx, s.Bun(), model.TypeRoles, map[string]any{"name": "Approver"})
	if err != nil {
		t.Fatalf("raw insert failed: %v", err)
	}
	_, found, err := LookupNaturalKeyBun(ctx, s.Bun(), model.TypeRoles, []string{"Approver"})
	if err != nil || !found {
		t.Fatalf("expected Approver after raw insert: found=%v err=%v", found, err)
	}

	err = RawInsertByTypeBun(ctx, s.Bun(), model.TypeRoles, map[string]any{"name": "Approver"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on raw re-insert, got %v", err)
	}
}

func TestStore_PreservedRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := InsertByTypeBun(ctx, s.Bun(), model.TypeWorkflowStates, map[string]any{"code": "effective", "label": "Effective"})
	rows, err := PreservedRowsBun(ctx, s.Bun(), model.TypeWorkflowStates)
	if err != nil {
		t.Fatalf("PreservedRows failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != id || rows[0].Key[0] != "effective" {
		t.Fatalf("unexpected preserved rows: %+v", rows)
	}
}

func TestStore_DanglingReferenceSweep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A document whose author id points nowhere.
	if err := RawInsertByTypeBun(ctx, s.Bun(), model.TypeDocuments, map[string]any{
		"number": "DOC-9", "title": "orphan", "author_id": int64(4242),
	}); err != nil {
		t.Fatalf("raw insert failed: %v", err)
	}

	refs, err := DanglingReferencesBun(ctx, s.Bun())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	found := false
	for _, r := range refs {
		if r.Table == "documents" && r.Column == "author_id" && r.RowKey == "DOC-9" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected dangling author_id on DOC-9, got %+v", refs)
	}
}

func TestStore_RestoreSessionPersistence(t *testing.T) {
	s := newTestStore(t)

	m := &RestoreSessionModel{
		ID: "sess-1", KeyFormat: "natural", Scenario: "reduced",
		StrategyUsed: "enhanced", Status: "running",
		StartedAt: time.Now().UTC(), ReportJSON: "{}",
	}
	if err := s.SaveRestoreSession(m); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Saving again with a new status updates in place.
	m.Status = "completed"
	if err := s.SaveRestoreSession(m); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := s.GetRestoreSession("sess-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != "completed" || got.Scenario != "reduced" {
		t.Fatalf("unexpected session: %+v", got)
	}

	list, err := s.ListRestoreSessions()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one session, got %d", len(list))
	}
}

func TestStore_AuditLog(t *testing.T) {
	s := newTestStore(t)
	if err := s.LogAction("restore", "session=abc records=5"); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}
	n, err := CountRowsBun(context.Background(), s.Bun(), "audit_log")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one audit row, got %d", n)
	}
}
