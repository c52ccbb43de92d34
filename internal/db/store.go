// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"

	"github.com/jinkaiteo/edms-sub000/internal/model"
	"github.com/uptrace/bun"
)

// Store defines the interface for all database operations the engine's
// callers use directly. The restore processors additionally work on the
// underlying Bun handle (via Bun()) so they can manage their own session
// transaction and savepoints.
type Store interface {
	// Bun exposes the underlying Bun DB for transaction-scoped work.
	Bun() *bun.DB
	// DBType reports the configured backend ("sqlite", "postgres", "mysql").
	DBType() string

	// LookupNaturalKey resolves a natural key to the current surrogate id.
	LookupNaturalKey(modelType string, key []string) (int64, bool, error)

	// Whole-table getters used by the exporter.
	GetAllRoles() ([]model.Role, error)
	GetAllWorkflowStates() ([]model.WorkflowState, error)
	GetAllDocumentTypes() ([]model.DocumentType, error)
	GetAllUsers() ([]model.User, error)
	GetAllUserRoles() ([]model.UserRole, error)
	GetAllDocuments() ([]model.Document, error)
	GetAllDocumentVersions() ([]model.DocumentVersion, error)

	// Audit log methods
	LogAction(action string, details string) error

	// Restore session audit rows
	SaveRestoreSession(m *RestoreSessionModel) error
	GetRestoreSession(id string) (*RestoreSessionModel, error)
	ListRestoreSessions() ([]RestoreSessionModel, error)

	Close() error
}

// bunStore is the shared bun-backed implementation; the per-dialect store
// types embed it so backend-specific overrides stay possible.
type bunStore struct {
	bun    *bun.DB
	dbType string
}

func (s *bunStore) Bun() *bun.DB   { return s.bun }
func (s *bunStore) DBType() string { return s.dbType }

func (s *bunStore) LookupNaturalKey(modelType string, key []string) (int64, bool, error) {
	return LookupNaturalKeyBun(context.Background(), s.bun, modelType, key)
}

func (s *bunStore) GetAllRoles() ([]model.Role, error) {
	return GetAllRolesBun(context.Background(), s.bun)
}

func (s *bunStore) GetAllWorkflowStates() ([]model.WorkflowState, error) {
	return GetAllWorkflowStatesBun(context.Background(), s.bun)
}

func (s *bunStore) GetAllDocumentTypes() ([]model.DocumentType, error) {
	return GetAllDocumentTypesBun(context.Background(), s.bun)
}

func (s *bunStore) GetAllUsers() ([]model.User, error) {
	return GetAllUsersBun(context.Background(), s.bun)
}

func (s *bunStore) GetAllUserRoles() ([]model.UserRole, error) {
	return GetAllUserRolesBun(context.Background(), s.bun)
}

func (s *bunStore) GetAllDocuments() ([]model.Document, error) {
	return GetAllDocumentsBun(context.Background(), s.bun)
}

func (s *bunStore) GetAllDocumentVersions() ([]model.DocumentVersion, error) {
	return GetAllDocumentVersionsBun(context.Background(), s.bun)
}

func (s *bunStore) LogAction(action string, details string) error {
	return LogActionBun(context.Background(), s.bun, action, details)
}

func (s *bunStore) SaveRestoreSession(m *RestoreSessionModel) error {
	return SaveRestoreSessionBun(context.Background(), s.bun, m)
}

func (s *bunStore) GetRestoreSession(id string) (*RestoreSessionModel, error) {
	return GetRestoreSessionBun(context.Background(), s.bun, id)
}

func (s *bunStore) ListRestoreSessions() ([]RestoreSessionModel, error) {
	return ListRestoreSessionsBun(context.Background(), s.bun)
}

func (s *bunStore) Close() error {
	return s.bun.Close()
}

// SqliteStore is the SQLite implementation of the Store interface.
type SqliteStore struct{ bunStore }

// PostgresStore is the PostgreSQL implementation of the Store interface.
type PostgresStore struct{ bunStore }

// MySQLStore is the MySQL implementation of the Store interface.
type MySQLStore struct{ bunStore }
