// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"context"
	"strconv"
	"testing"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/model"
)

func TestResolver_LinksExistingByNaturalKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := db.InsertByTypeBun(ctx, s.Bun(), model.TypeUsers, map[string]any{"username": "alice", "is_active": true})

	sess := NewSession("r1")
	res := NewResolver(s.Bun(), sess, Policy{})

	r, err := res.Resolve(ctx, model.TypeUsers, []string{"alice"}, false, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r.OK || r.ID != id || r.Outcome != OutcomeLinkedExisting {
		t.Fatalf("unexpected resolution: %+v", r)
	}

	// Second resolve hits the session index, same answer.
	r2, err := res.Resolve(ctx, model.TypeUsers, []string{"alice"}, false, nil)
	if err != nil || r2.ID != id {
		t.Fatalf("cached resolve wrong: %+v err=%v", r2, err)
	}
}

func TestResolver_NeverFabricatesUsersByDefault(t *testing.T) {
	s := newTestStore(t)
	sess := NewSession("r2")
	res := NewResolver(s.Bun(), sess, Policy{})

	r, err := res.Resolve(context.Background(), model.TypeUsers, []string{"ghost"}, true, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.OK {
		t.Fatalf("user must not be fabricated under the default policy: %+v", r)
	}
	n, _ := db.CountRowsBun(context.Background(), s.Bun(), "users")
	if n != 0 {
		t.Fatalf("users table should stay empty, has %d rows", n)
	}
}

func TestResolver_PlaceholderUsersAreInactive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := NewSession("r3")
	res := NewResolver(s.Bun(), sess, Policy{CreateMissingUsers: true})

	r, err := res.Resolve(ctx, model.TypeUsers, []string{"ghost"}, true, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r.OK || r.Outcome != OutcomeCreated {
		t.Fatalf("expected creation, got %+v", r)
	}

	users, err := db.GetAllUsersBun(ctx, s.Bun())
	if err != nil || len(users) != 1 {
		t.Fatalf("expected one user: %+v err=%v", users, err)
	}
	if users[0].IsActive || users[0].IsAdmin {
		t.Fatalf("placeholder must be inactive and unprivileged: %+v", users[0])
	}
}

func TestResolver_PreservedCreationIsPolicyGated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := NewSession("r4")

	denied := NewResolver(s.Bun(), sess, Policy{CreateMissingPreserved: false})
	r, err := denied.Resolve(ctx, model.TypeRoles, []string{"Reviewer"}, true, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.OK {
		t.Fatalf("preserved type creation should be denied: %+v", r)
	}

	allowed := NewResolver(s.Bun(), NewSession("r5"), Policy{CreateMissingPreserved: true})
	r, err = allowed.Resolve(ctx, model.TypeRoles, []string{"Reviewer"}, true, nil)
	if err != nil || !r.OK || r.Outcome != OutcomeCreated {
		t.Fatalf("expected creation when allowed: %+v err=%v", r, err)
	}
}

func TestResolver_IdentifierMappingWinsForPreserved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := db.InsertByTypeBun(ctx, s.Bun(), model.TypeRoles, map[string]any{"name": "Reviewer"})

	sess := NewSession("r6")
	// A reduced-scenario mapping from the legacy id to the current row.
	sess.IDMap.Put(model.TypeRoles, "17", id)
	res := NewResolver(s.Bun(), sess, Policy{})

	r, err := res.Resolve(ctx, model.TypeRoles, []string{"17"}, false, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r.OK || r.ID != id || r.Outcome != OutcomeRemapped {
		t.Fatalf("expected remap via identifier mapping, got %+v", r)
	}
}

func TestResolver_DuplicateRaceLinksExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := NewSession("r7")
	res := NewResolver(s.Bun(), sess, Policy{CreateMissingPreserved: true})

	// Simulate a concurrent writer having created the row after our lookup
	// would miss: pre-create it, then poison the index so Resolve goes for
	// an insert.
	id, _ := db.InsertByTypeBun(ctx, s.Bun(), model.TypeWorkflowStates, map[string]any{"code": "draft", "label": "Draft"})
	_ = id

	r, err := res.Resolve(ctx, model.TypeWorkflowStates, []string{"draft"}, true, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r.OK || r.Outcome != OutcomeLinkedExisting || r.ID != id {
		t.Fatalf("expected link to the existing row, got %+v", r)
	}

	// The natural key stays unique regardless of how many resolutions ran.
	for i := 0; i < 3; i++ {
		if _, err := res.Resolve(ctx, model.TypeWorkflowStates, []string{"draft"}, true, nil); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	n, _ := db.CountRowsBun(ctx, s.Bun(), "workflow_states")
	if n != 1 {
		t.Fatalf("expected a single draft state, got %d", n)
	}
}

func TestResolver_LegacyNumericKeysStayOpaque(t *testing.T) {
	// A shimmed legacy key that is numeric must not accidentally match a
	// username that happens to look like a number only via the id map.
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := db.InsertByTypeBun(ctx, s.Bun(), model.TypeUsers, map[string]any{"username": strconv.FormatInt(99, 10), "is_active": true})

	sess := NewSession("r8")
	res := NewResolver(s.Bun(), sess, Policy{})
	r, err := res.Resolve(ctx, model.TypeUsers, []string{"99"}, false, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// users is not reset-preserved, so the key resolves by natural key only.
	if !r.OK || r.ID != id || r.Outcome != OutcomeLinkedExisting {
		t.Fatalf("unexpected resolution: %+v", r)
	}
}
