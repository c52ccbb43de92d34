// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the core domain entities of the EDMS backup engine
// and the portable snapshot types exchanged between exporter and restorer.
package model

import "time"

// Role represents a named permission group. Roles are seed data: a
// destination reset regenerates them with fresh ids but identical names.
type Role struct {
	ID   int64
	Name string
}

// WorkflowState is a state in the document workflow (DRAFT, IN_REVIEW,
// EFFECTIVE, ...). Like roles, states survive a reset by code only.
type WorkflowState struct {
	ID    int64
	Code  string
	Label string
}

// DocumentType classifies documents (SOP, POLICY, FORM, ...).
type DocumentType struct {
	ID   int64
	Code string
	Name string
}

// User is an account in the EDMS. Privileged users are never created on
// demand during a restore.
type User struct {
	ID          int64
	Username    string
	DisplayName string
	Email       string
	IsAdmin     bool
	IsActive    bool
}

// UserRole links a user to a role.
type UserRole struct {
	UserID int64
	RoleID int64
}

// Document is the central business entity. SupersededByID is a nullable
// self-reference and the one place the dependency graph can form cycles.
type Document struct {
	ID             int64
	Number         string
	Title          string
	DocTypeID      int64
	AuthorID       int64
	StateID        int64
	SupersededByID int64
	CreatedAt      time.Time
}

// DocumentVersion is one revision of a document's binary artifact. The
// checksum is the sha256 hex digest of the file at FilePath, relative to
// the artifact store directory.
type DocumentVersion struct {
	ID          int64
	DocumentID  int64
	Seq         int
	FilePath    string
	Checksum    string
	CreatedByID int64
	CreatedAt   time.Time
}
