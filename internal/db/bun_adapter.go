package db

import (
	"context"
	"database/sql"
	"fmt"
	"os/user"
	"sort"
	"strings"
	"time"

	"github.com/jinkaiteo/edms-sub000/internal/model"
	"github.com/uptrace/bun"
)

// RoleModel maps the `roles` table for Bun queries.
type RoleModel struct {
	bun.BaseModel `bun:"table:roles"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Name          string `bun:"name"`
}

// WorkflowStateModel maps the `workflow_states` table.
type WorkflowStateModel struct {
	bun.BaseModel `bun:"table:workflow_states"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Code          string `bun:"code"`
	Label         string `bun:"label"`
}

// DocumentTypeModel maps the `document_types` table.
type DocumentTypeModel struct {
	bun.BaseModel `bun:"table:document_types"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Code          string `bun:"code"`
	Name          string `bun:"name"`
}

// UserModel maps the `users` table.
type UserModel struct {
	bun.BaseModel `bun:"table:users"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Username      string `bun:"username"`
	DisplayName   string `bun:"display_name"`
	Email         string `bun:"email"`
	IsAdmin       bool   `bun:"is_admin"`
	IsActive      bool   `bun:"is_active"`
}

// UserRoleModel maps the `user_roles` assignment table. It has no surrogate
// key of its own; its identity is the (user_id, role_id) pair.
type UserRoleModel struct {
	bun.BaseModel `bun:"table:user_roles"`
	UserID        int64 `bun:"user_id"`
	RoleID        int64 `bun:"role_id"`
}

// DocumentModel maps the `documents` table. Reference columns are nullable
// so partially restored rows can leave unresolved links absent.
type DocumentModel struct {
	bun.BaseModel  `bun:"table:documents"`
	ID             int64         `bun:"id,pk,autoincrement"`
	Number         string        `bun:"number"`
	Title          string        `bun:"title"`
	DocTypeID      sql.NullInt64 `bun:"doc_type_id"`
	AuthorID       sql.NullInt64 `bun:"author_id"`
	StateID        sql.NullInt64 `bun:"state_id"`
	SupersededByID sql.NullInt64 `bun:"superseded_by_id"`
	CreatedAt      sql.NullTime  `bun:"created_at"`
}

// DocumentVersionModel maps the `document_versions` table.
type DocumentVersionModel struct {
	bun.BaseModel `bun:"table:document_versions"`
	ID            int64         `bun:"id,pk,autoincrement"`
	DocumentID    int64         `bun:"document_id"`
	Seq           int           `bun:"seq"`
	FilePath      string        `bun:"file_path"`
	Checksum      string        `bun:"checksum"`
	CreatedByID   sql.NullInt64 `bun:"created_by_id"`
	CreatedAt     sql.NullTime  `bun:"created_at"`
}

// RestoreSessionModel maps the `restore_sessions` audit table.
type RestoreSessionModel struct {
	bun.BaseModel `bun:"table:restore_sessions"`
	ID            string       `bun:"id,pk"`
	KeyFormat     string       `bun:"key_format"`
	Scenario      string       `bun:"scenario"`
	StrategyUsed  string       `bun:"strategy_used"`
	Status        string       `bun:"status"`
	StartedAt     time.Time    `bun:"started_at"`
	FinishedAt    sql.NullTime `bun:"finished_at"`
	ReportJSON    string       `bun:"report_json"`
}

// AuditLogModel maps the audit_log table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Timestamp     string `bun:"timestamp"`
	Username      string `bun:"username"`
	Action        string `bun:"action"`
	Details       string `bun:"details"`
}

// --- Mapping helpers (centralized conversions) ---

func documentModelToModel(d DocumentModel) model.Document {
	doc := model.Document{ID: d.ID, Number: d.Number, Title: d.Title}
	if d.DocTypeID.Valid {
		doc.DocTypeID = d.DocTypeID.Int64
	}
	if d.AuthorID.Valid {
		doc.AuthorID = d.AuthorID.Int64
	}
	if d.StateID.Valid {
		doc.StateID = d.StateID.Int64
	}
	if d.SupersededByID.Valid {
		doc.SupersededByID = d.SupersededByID.Int64
	}
	if d.CreatedAt.Valid {
		doc.CreatedAt = d.CreatedAt.Time
	}
	return doc
}

func documentVersionModelToModel(v DocumentVersionModel) model.DocumentVersion {
	dv := model.DocumentVersion{ID: v.ID, DocumentID: v.DocumentID, Seq: v.Seq, FilePath: v.FilePath, Checksum: v.Checksum}
	if v.CreatedByID.Valid {
		dv.CreatedByID = v.CreatedByID.Int64
	}
	if v.CreatedAt.Valid {
		dv.CreatedAt = v.CreatedAt.Time
	}
	return dv
}

func userModelToModel(u UserModel) model.User {
	return model.User{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Email: u.Email, IsAdmin: u.IsAdmin, IsActive: u.IsActive}
}

// --- Natural-key resolution ---

// LookupNaturalKeyBun resolves a natural key tuple to the current surrogate
// id for the given model type. The bool result reports whether a row exists;
// a missing row is not an error. Assignment rows (user_roles) have no id of
// their own and report id 0 when present.
func LookupNaturalKeyBun(ctx context.Context, idb bun.IDB, modelType string, key []string) (int64, bool, error) {
	scanOne := func(q *bun.SelectQuery, dest *int64) (bool, error) {
		err := q.Scan(ctx, dest)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}

	var id int64
	switch modelType {
	case model.TypeRoles:
		if len(key) != 1 {
			return 0, false, fmt.Errorf("roles natural key needs 1 element, got %d", len(key))
		}
		found, err := scanOne(idb.NewSelect().Model((*RoleModel)(nil)).Column("id").Where("name = ?", key[0]), &id)
		return id, found, err
	case model.TypeWorkflowStates:
		if len(key) != 1 {
			return 0, false, fmt.Errorf("workflow_states natural key needs 1 element, got %d", len(key))
		}
		found, err := scanOne(idb.NewSelect().Model((*WorkflowStateModel)(nil)).Column("id").Where("code = ?", key[0]), &id)
		return id, found, err
	case model.TypeDocumentTypes:
		if len(key) != 1 {
			return 0, false, fmt.Errorf("document_types natural key needs 1 element, got %d", len(key))
		}
		found, err := scanOne(idb.NewSelect().Model((*DocumentTypeModel)(nil)).Column("id").Where("code = ?", key[0]), &id)
		return id, found, err
	case model.TypeUsers:
		if len(key) != 1 {
			return 0, false, fmt.Errorf("users natural key needs 1 element, got %d", len(key))
		}
		found, err := scanOne(idb.NewSelect().Model((*UserModel)(nil)).Column("id").Where("username = ?", key[0]), &id)
		return id, found, err
	case model.TypeUserRoles:
		if len(key) != 2 {
			return 0, false, fmt.Errorf("user_roles natural key needs 2 elements, got %d", len(key))
		}
		var n int
		err := QueryRawInto(ctx, idb, &n,
			`SELECT COUNT(*) FROM user_roles ur
			 JOIN users u ON ur.user_id = u.id
			 JOIN roles r ON ur.role_id = r.id
			 WHERE u.username = ? AND r.name = ?`, key[0], key[1])
		if err != nil {
			return 0, false, err
		}
		return 0, n > 0, nil
	case model.TypeDocuments:
		if len(key) != 1 {
			return 0, false, fmt.Errorf("documents natural key needs 1 element, got %d", len(key))
		}
		found, err := scanOne(idb.NewSelect().Model((*DocumentModel)(nil)).Column("id").Where("number = ?", key[0]), &id)
		return id, found, err
	case model.TypeDocumentVersions:
		if len(key) != 2 {
			return 0, false, fmt.Errorf("document_versions natural key needs 2 elements, got %d", len(key))
		}
		err := QueryRawInto(ctx, idb, &id,
			`SELECT v.id FROM document_versions v
			 JOIN documents d ON v.document_id = d.id
			 WHERE d.number = ? AND v.seq = ?`, key[0], key[1])
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	default:
		return 0, false, fmt.Errorf("unknown model type: %s", modelType)
	}
}

// --- Inserts used by the enhanced and direct restore paths ---

// Column values arrive as a map keyed by column name. Reference fields are
// already resolved to destination ids (or absent when a nullable link could
// not be resolved).

func nullInt(fields map[string]any, col string) sql.NullInt64 {
	v, ok := fields[col]
	if !ok || v == nil {
		return sql.NullInt64{}
	}
	if n, ok := v.(int64); ok {
		return sql.NullInt64{Int64: n, Valid: true}
	}
	return sql.NullInt64{}
}

func strField(fields map[string]any, col string) string {
	if v, ok := fields[col].(string); ok {
		return v
	}
	return ""
}

func boolField(fields map[string]any, col string) bool {
	if v, ok := fields[col].(bool); ok {
		return v
	}
	return false
}

func intField(fields map[string]any, col string) int64 {
	switch v := fields[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func timeField(fields map[string]any, col string) sql.NullTime {
	switch v := fields[col].(type) {
	case time.Time:
		return sql.NullTime{Time: v, Valid: true}
	case string:
		if v == "" {
			return sql.NullTime{}
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return sql.NullTime{Time: t, Valid: true}
		}
	}
	return sql.NullTime{}
}

// InsertByTypeBun inserts one row of the given model type from a resolved
// column map and returns the freshly assigned surrogate id. Uses Bun's
// NewInsert with Returning to support Postgres and MySQL.
func InsertByTypeBun(ctx context.Context, idb bun.IDB, modelType string, fields map[string]any) (int64, error) {
	switch modelType {
	case model.TypeRoles:
		m := &RoleModel{Name: strField(fields, "name")}
		if _, err := idb.NewInsert().Model(m).Column("name").Returning("id").Exec(ctx); err != nil {
			return 0, MapDBError(err)
		}
		return m.ID, nil
	case model.TypeWorkflowStates:
		m := &WorkflowStateModel{Code: strField(fields, "code"), Label: strField(fields, "label")}
		if _, err := idb.NewInsert().Model(m).Column("code", "label").Returning("id").Exec(ctx); err != nil {
			return 0, MapDBError(err)
		}
		return m.ID, nil
	case model.TypeDocumentTypes:
		m := &DocumentTypeModel{Code: strField(fields, "code"), Name: strField(fields, "name")}
		if _, err := idb.NewInsert().Model(m).Column("code", "name").Returning("id").Exec(ctx); err != nil {
			return 0, MapDBError(err)
		}
		return m.ID, nil
	case model.TypeUsers:
		m := &UserModel{
			Username:    strField(fields, "username"),
			DisplayName: strField(fields, "display_name"),
			Email:       strField(fields, "email"),
			IsAdmin:     boolField(fields, "is_admin"),
			IsActive:    boolField(fields, "is_active"),
		}
		if _, err := idb.NewInsert().Model(m).Column("username", "display_name", "email", "is_admin", "is_active").Returning("id").Exec(ctx); err != nil {
			return 0, MapDBError(err)
		}
		return m.ID, nil
	case model.TypeUserRoles:
		m := &UserRoleModel{UserID: intField(fields, "user_id"), RoleID: intField(fields, "role_id")}
		if _, err := idb.NewInsert().Model(m).Exec(ctx); err != nil {
			return 0, MapDBError(err)
		}
		return 0, nil
	case model.TypeDocuments:
		m := &DocumentModel{
			Number:         strField(fields, "number"),
			Title:          strField(fields, "title"),
			DocTypeID:      nullInt(fields, "doc_type_id"),
			AuthorID:       nullInt(fields, "author_id"),
			StateID:        nullInt(fields, "state_id"),
			SupersededByID: nullInt(fields, "superseded_by_id"),
			CreatedAt:      timeField(fields, "created_at"),
		}
		if _, err := idb.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
			return 0, MapDBError(err)
		}
		return m.ID, nil
	case model.TypeDocumentVersions:
		m := &DocumentVersionModel{
			DocumentID:  intField(fields, "document_id"),
			Seq:         int(intField(fields, "seq")),
			FilePath:    strField(fields, "file_path"),
			Checksum:    strField(fields, "checksum"),
			CreatedByID: nullInt(fields, "created_by_id"),
			CreatedAt:   timeField(fields, "created_at"),
		}
		if _, err := idb.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
			return 0, MapDBError(err)
		}
		return m.ID, nil
	default:
		return 0, fmt.Errorf("unknown model type: %s", modelType)
	}
}

// RawInsertByTypeBun issues a direct INSERT for the given model type,
// bypassing the Bun model layer entirely. Column names come straight from
// the resolved field map. Callers re-resolve the natural key afterwards if
// they need the assigned id, since not every engine reports LastInsertId.
func RawInsertByTypeBun(ctx context.Context, idb bun.IDB, modelType string, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("raw insert into %s with no columns", modelType)
	}
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, 0, len(cols))
	marks := make([]string, 0, len(cols))
	for _, c := range cols {
		args = append(args, fields[c])
		marks = append(marks, "?")
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", modelType, strings.Join(cols, ", "), strings.Join(marks, ", "))
	_, err := ExecRaw(ctx, idb, q, args...)
	return MapDBError(err)
}

// UpdateColumnBun sets one column on one row. Used by the two-pass cycle
// patcher and the raw apply path.
func UpdateColumnBun(ctx context.Context, idb bun.IDB, table string, id int64, column string, value any) error {
	_, err := ExecRaw(ctx, idb, fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", table, column), value, id)
	return err
}

// --- Preserved-entity inspection (scenario detection + identifier mapping) ---

// PreservedRow is a reset-preserved entity as it currently exists in the
// destination: its surrogate id and natural key.
type PreservedRow struct {
	ID  int64
	Key []string
}

// PreservedRowsBun lists the current destination rows of a reset-preserved
// model type with their natural keys.
func PreservedRowsBun(ctx context.Context, idb bun.IDB, modelType string) ([]PreservedRow, error) {
	var out []PreservedRow
	switch modelType {
	case model.TypeRoles:
		var ms []RoleModel
		if err := idb.NewSelect().Model(&ms).OrderExpr("name").Scan(ctx); err != nil {
			return nil, err
		}
		for _, m := range ms {
			out = append(out, PreservedRow{ID: m.ID, Key: []string{m.Name}})
		}
	case model.TypeWorkflowStates:
		var ms []WorkflowStateModel
		if err := idb.NewSelect().Model(&ms).OrderExpr("code").Scan(ctx); err != nil {
			return nil, err
		}
		for _, m := range ms {
			out = append(out, PreservedRow{ID: m.ID, Key: []string{m.Code}})
		}
	case model.TypeDocumentTypes:
		var ms []DocumentTypeModel
		if err := idb.NewSelect().Model(&ms).OrderExpr("code").Scan(ctx); err != nil {
			return nil, err
		}
		for _, m := range ms {
			out = append(out, PreservedRow{ID: m.ID, Key: []string{m.Code}})
		}
	default:
		return nil, fmt.Errorf("model type %s is not reset-preserved", modelType)
	}
	return out, nil
}

// CountRowsBun returns the row count of a table.
func CountRowsBun(ctx context.Context, idb bun.IDB, table string) (int, error) {
	var n int
	if err := QueryRawInto(ctx, idb, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)); err != nil {
		return 0, err
	}
	return n, nil
}

// --- Referential completeness sweep ---

// DanglingRef reports a foreign-key column value that points at a row which
// does not exist. The sweep is a defect detector for the restore processors
// themselves; unresolved-at-restore-time references are stored as NULL and
// never show up here.
type DanglingRef struct {
	Table  string
	Column string
	RowKey string
	Target string
}

// fkCheck describes one declared foreign key to sweep.
type fkCheck struct {
	table, column, target, rowKeyCol string
}

var fkChecks = []fkCheck{
	{"user_roles", "user_id", "users", "user_id"},
	{"user_roles", "role_id", "roles", "role_id"},
	{"documents", "doc_type_id", "document_types", "number"},
	{"documents", "author_id", "users", "number"},
	{"documents", "state_id", "workflow_states", "number"},
	{"documents", "superseded_by_id", "documents", "number"},
	{"document_versions", "document_id", "documents", "id"},
	{"document_versions", "created_by_id", "users", "id"},
}

// DanglingReferencesBun sweeps every declared foreign key and returns the
// rows whose reference target is missing.
func DanglingReferencesBun(ctx context.Context, idb bun.IDB) ([]DanglingRef, error) {
	var out []DanglingRef
	for _, c := range fkChecks {
		q := fmt.Sprintf(
			`SELECT t.%s FROM %s t LEFT JOIN %s r ON t.%s = r.id
			 WHERE t.%s IS NOT NULL AND r.id IS NULL`,
			c.rowKeyCol, c.table, c.target, c.column, c.column)
		var keys []string
		if err := QueryRawInto(ctx, idb, &keys, q); err != nil {
			return nil, fmt.Errorf("sweep %s.%s: %w", c.table, c.column, err)
		}
		for _, k := range keys {
			out = append(out, DanglingRef{Table: c.table, Column: c.column, RowKey: k, Target: c.target})
		}
	}
	return out, nil
}

// --- Artifact checksum inspection ---

// ArtifactRow pairs a restored document version with its recorded checksum
// for the integrity validator.
type ArtifactRow struct {
	DocumentNumber string
	Seq            int
	FilePath       string
	Checksum       string
}

// VersionArtifactsBun lists every document version that carries a binary
// artifact path.
func VersionArtifactsBun(ctx context.Context, idb bun.IDB) ([]ArtifactRow, error) {
	type row struct {
		Number   string
		Seq      int
		FilePath string
		Checksum string
	}
	var rs []row
	err := QueryRawInto(ctx, idb, &rs,
		`SELECT d.number AS number, v.seq AS seq, v.file_path AS file_path, v.checksum AS checksum
		 FROM document_versions v JOIN documents d ON v.document_id = d.id
		 WHERE v.file_path <> ''`)
	if err != nil {
		return nil, err
	}
	out := make([]ArtifactRow, 0, len(rs))
	for _, r := range rs {
		out = append(out, ArtifactRow{DocumentNumber: r.Number, Seq: r.Seq, FilePath: r.FilePath, Checksum: r.Checksum})
	}
	return out, nil
}

// --- Whole-table getters used by the exporter ---

func GetAllRolesBun(ctx context.Context, idb bun.IDB) ([]model.Role, error) {
	var ms []RoleModel
	if err := idb.NewSelect().Model(&ms).OrderExpr("name").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Role, 0, len(ms))
	for _, m := range ms {
		out = append(out, model.Role{ID: m.ID, Name: m.Name})
	}
	return out, nil
}

func GetAllWorkflowStatesBun(ctx context.Context, idb bun.IDB) ([]model.WorkflowState, error) {
	var ms []WorkflowStateModel
	if err := idb.NewSelect().Model(&ms).OrderExpr("code").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.WorkflowState, 0, len(ms))
	for _, m := range ms {
		out = append(out, model.WorkflowState{ID: m.ID, Code: m.Code, Label: m.Label})
	}
	return out, nil
}

func GetAllDocumentTypesBun(ctx context.Context, idb bun.IDB) ([]model.DocumentType, error) {
	var ms []DocumentTypeModel
	if err := idb.NewSelect().Model(&ms).OrderExpr("code").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.DocumentType, 0, len(ms))
	for _, m := range ms {
		out = append(out, model.DocumentType{ID: m.ID, Code: m.Code, Name: m.Name})
	}
	return out, nil
}

func GetAllUsersBun(ctx context.Context, idb bun.IDB) ([]model.User, error) {
	var ms []UserModel
	if err := idb.NewSelect().Model(&ms).OrderExpr("username").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(ms))
	for _, m := range ms {
		out = append(out, userModelToModel(m))
	}
	return out, nil
}

func GetAllUserRolesBun(ctx context.Context, idb bun.IDB) ([]model.UserRole, error) {
	var ms []UserRoleModel
	if err := idb.NewSelect().Model(&ms).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.UserRole, 0, len(ms))
	for _, m := range ms {
		out = append(out, model.UserRole{UserID: m.UserID, RoleID: m.RoleID})
	}
	return out, nil
}

func GetAllDocumentsBun(ctx context.Context, idb bun.IDB) ([]model.Document, error) {
	var ms []DocumentModel
	if err := idb.NewSelect().Model(&ms).OrderExpr("number").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Document, 0, len(ms))
	for _, m := range ms {
		out = append(out, documentModelToModel(m))
	}
	return out, nil
}

func GetAllDocumentVersionsBun(ctx context.Context, idb bun.IDB) ([]model.DocumentVersion, error) {
	var ms []DocumentVersionModel
	if err := idb.NewSelect().Model(&ms).OrderExpr("document_id, seq").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.DocumentVersion, 0, len(ms))
	for _, m := range ms {
		out = append(out, documentVersionModelToModel(m))
	}
	return out, nil
}

// --- Audit log ---

// LogActionBun inserts an audit log entry with the current OS user.
func LogActionBun(ctx context.Context, idb bun.IDB, action string, details string) error {
	curUser, err := user.Current()
	username := "unknown"
	if err == nil {
		if parts := strings.Split(curUser.Username, `\`); len(parts) > 1 {
			username = parts[1]
		} else {
			username = curUser.Username
		}
	}
	_, err = ExecRaw(ctx, idb, "INSERT INTO audit_log (username, action, details) VALUES (?, ?, ?)", username, action, details)
	return MapDBError(err)
}

// --- Restore session audit rows ---

// SaveRestoreSessionBun upserts the immutable audit row for a finished (or
// progressing) restore session.
func SaveRestoreSessionBun(ctx context.Context, idb bun.IDB, m *RestoreSessionModel) error {
	_, err := ExecRaw(ctx, idb,
		`INSERT INTO restore_sessions (id, key_format, scenario, strategy_used, status, started_at, finished_at, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.KeyFormat, m.Scenario, m.StrategyUsed, m.Status, m.StartedAt, m.FinishedAt, m.ReportJSON)
	if MapDBError(err) == ErrDuplicate {
		_, err = ExecRaw(ctx, idb,
			`UPDATE restore_sessions SET key_format = ?, scenario = ?, strategy_used = ?, status = ?, finished_at = ?, report_json = ? WHERE id = ?`,
			m.KeyFormat, m.Scenario, m.StrategyUsed, m.Status, m.FinishedAt, m.ReportJSON, m.ID)
	}
	return err
}

// GetRestoreSessionBun fetches one session audit row by id.
func GetRestoreSessionBun(ctx context.Context, idb bun.IDB, id string) (*RestoreSessionModel, error) {
	var m RestoreSessionModel
	err := idb.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListRestoreSessionsBun lists session audit rows, most recent first.
func ListRestoreSessionsBun(ctx context.Context, idb bun.IDB) ([]RestoreSessionModel, error) {
	var ms []RestoreSessionModel
	if err := idb.NewSelect().Model(&ms).OrderExpr("started_at DESC").Scan(ctx); err != nil {
		return nil, err
	}
	return ms, nil
}
