package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"capaudit/internal/audit"
	"capaudit/internal/config"
)

// Store manages audit persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the audit database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath connects to the database at an explicit path.
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// CreateAudit inserts a new audit in the queued state.
func (s *Store) CreateAudit(ctx context.Context, id string) (*audit.Audit, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO audits (id, state, progress, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id,
		audit.StateQueued,
		"Queued",
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit: %w", err)
	}
	return s.GetAudit(ctx, id)
}

// UpdateProgress records the current stage. Progress updates are advisory;
// callers treat failures as non-fatal.
func (s *Store) UpdateProgress(ctx context.Context, id string, state audit.State, progress string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE audits SET state = ?, progress = ?, updated_at = ? WHERE id = ?`,
		state,
		nullableString(progress),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// MarkError moves the audit to the terminal error state.
func (s *Store) MarkError(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE audits SET state = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		audit.StateError,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark error: %w", err)
	}
	return nil
}

// InsertDocuments persists parsed documents and writes the assigned row ids
// back onto the slice so downstream stages can reference them.
func (s *Store) InsertDocuments(ctx context.Context, auditID string, docs []audit.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin documents tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for i := range docs {
		doc := &docs[i]
		envelope := doc.ExtractedData
		if envelope == nil {
			built := audit.BuildEnvelope(doc)
			envelope = &built
		}
		extractedJSON, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("marshal envelope for %s: %w", doc.Filename, err)
		}

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO documents (
                audit_id, filename, category, summary, parse_status, parse_error,
                pdf_path, preview_image, extracted_json, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			auditID,
			doc.Filename,
			nullableString(doc.Category),
			nullableString(doc.Summary),
			nullableString(string(doc.ParseStatus)),
			nullableString(doc.ParseError),
			nullableString(doc.PDFPath),
			nullableString(doc.PreviewImage),
			string(extractedJSON),
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert document %s: %w", doc.Filename, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		doc.DocumentID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit documents: %w", err)
	}
	return nil
}

// InsertEquityEvents persists the audit's equity events.
func (s *Store) InsertEquityEvents(ctx context.Context, auditID string, events []audit.EquityEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin events tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for i := range events {
		event := &events[i]
		var detailsJSON any
		if len(event.Details) > 0 {
			encoded, err := json.Marshal(event.Details)
			if err != nil {
				return fmt.Errorf("marshal event details: %w", err)
			}
			detailsJSON = string(encoded)
		}

		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO equity_events (
                audit_id, event_date, event_type, shareholder_name, share_class,
                share_delta, source_doc_id, source_snippet, approval_doc_id,
                approval_snippet, compliance_status, compliance_note, summary,
                preview_image, details_json, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			auditID,
			nullableString(event.EventDate),
			string(event.EventType),
			nullableString(event.ShareholderName),
			nullableString(event.ShareClass),
			event.ShareDelta,
			nullableInt64(event.SourceDocID),
			nullableString(event.SourceSnippet),
			nullableString(event.ApprovalDocID),
			nullableString(event.ApprovalSnippet),
			nullableString(string(event.Compliance)),
			nullableString(event.ComplianceNote),
			nullableString(event.Summary),
			nullableString(event.PreviewImage),
			detailsJSON,
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert equity event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}

// EquityEvents returns the audit's events in insertion order.
func (s *Store) EquityEvents(ctx context.Context, auditID string) ([]audit.EquityEvent, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT event_date, event_type, shareholder_name, share_class, share_delta,
                source_doc_id, source_snippet, approval_doc_id, approval_snippet,
                compliance_status, compliance_note, summary, preview_image, details_json
         FROM equity_events WHERE audit_id = ? ORDER BY id`,
		auditID,
	)
	if err != nil {
		return nil, fmt.Errorf("query equity events: %w", err)
	}
	defer rows.Close()

	var events []audit.EquityEvent
	for rows.Next() {
		var (
			event       audit.EquityEvent
			eventDate   sql.NullString
			eventType   string
			shareholder sql.NullString
			shareClass  sql.NullString
			sourceDocID sql.NullInt64
			snippet     sql.NullString
			approvalID  sql.NullString
			approvalSn  sql.NullString
			compliance  sql.NullString
			note        sql.NullString
			summary     sql.NullString
			preview     sql.NullString
			detailsRaw  sql.NullString
		)
		if err := rows.Scan(
			&eventDate, &eventType, &shareholder, &shareClass, &event.ShareDelta,
			&sourceDocID, &snippet, &approvalID, &approvalSn,
			&compliance, &note, &summary, &preview, &detailsRaw,
		); err != nil {
			return nil, fmt.Errorf("scan equity event: %w", err)
		}
		event.EventDate = eventDate.String
		event.EventType = audit.EventType(eventType)
		event.ShareholderName = shareholder.String
		event.ShareClass = shareClass.String
		event.SourceDocID = sourceDocID.Int64
		event.SourceSnippet = snippet.String
		event.ApprovalDocID = approvalID.String
		event.ApprovalSnippet = approvalSn.String
		event.Compliance = audit.ComplianceStatus(compliance.String)
		event.ComplianceNote = note.String
		event.Summary = summary.String
		event.PreviewImage = preview.String
		if detailsRaw.Valid && detailsRaw.String != "" {
			if err := json.Unmarshal([]byte(detailsRaw.String), &event.Details); err != nil {
				return nil, fmt.Errorf("decode event details: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// AppendIssues adds issues to the audit without disturbing existing ones.
func (s *Store) AppendIssues(ctx context.Context, id string, found []audit.Issue) error {
	if len(found) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin issues tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var issuesRaw sql.NullString
	row := tx.QueryRowContext(ctx, `SELECT issues_json FROM audits WHERE id = ?`, id)
	if err := row.Scan(&issuesRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("audit %s not found", id)
		}
		return fmt.Errorf("read issues: %w", err)
	}

	var existing []audit.Issue
	if issuesRaw.Valid && issuesRaw.String != "" {
		if err := json.Unmarshal([]byte(issuesRaw.String), &existing); err != nil {
			return fmt.Errorf("decode issues: %w", err)
		}
	}
	for _, issue := range found {
		existing = append(existing, audit.NormalizeIssue(issue))
	}

	encoded, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("encode issues: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE audits SET issues_json = ?, updated_at = ? WHERE id = ?`,
		string(encoded),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("write issues: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit issues: %w", err)
	}
	return nil
}

// UpdateResults persists the final synthesis and moves the audit to its
// terminal state.
func (s *Store) UpdateResults(ctx context.Context, id string, results *audit.Results, report *audit.QualityReport, state audit.State) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	var reportJSON any
	reviewRequired := false
	if report != nil {
		encoded, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode quality report: %w", err)
		}
		reportJSON = string(encoded)
		reviewRequired = report.ReviewRequired
	}

	issuesJSON, err := json.Marshal(results.Issues)
	if err != nil {
		return fmt.Errorf("encode issues: %w", err)
	}

	companyName := ""
	if results != nil {
		companyName = results.CompanyName
	}

	_, err = s.db.ExecContext(
		ctx,
		`UPDATE audits
         SET company_name = ?, state = ?, progress = ?, results_json = ?,
             issues_json = ?, quality_report_json = ?, review_required = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(companyName),
		state,
		"Complete",
		string(resultsJSON),
		string(issuesJSON),
		reportJSON,
		boolToInt(reviewRequired),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update results: %w", err)
	}
	return nil
}

// GetAudit fetches an audit by identifier. A missing audit returns nil.
func (s *Store) GetAudit(ctx context.Context, id string) (*audit.Audit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audits WHERE id = ?`, id)
	record, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get audit: %w", err)
	}
	return record, nil
}

// ListAudits returns all audits, newest first.
func (s *Store) ListAudits(ctx context.Context) ([]*audit.Audit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+auditColumns+` FROM audits ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var audits []*audit.Audit
	for rows.Next() {
		record, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, record)
	}
	return audits, rows.Err()
}

const auditColumns = "id, company_name, state, progress, error_message, results_json, issues_json, quality_report_json, review_required, created_at, updated_at"

func scanAudit(scanner interface{ Scan(dest ...any) error }) (*audit.Audit, error) {
	var (
		id             string
		companyName    sql.NullString
		stateStr       string
		progress       sql.NullString
		errorMessage   sql.NullString
		resultsRaw     sql.NullString
		issuesRaw      sql.NullString
		reportRaw      sql.NullString
		reviewRequired sql.NullInt64
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&id, &companyName, &stateStr, &progress, &errorMessage,
		&resultsRaw, &issuesRaw, &reportRaw, &reviewRequired,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &audit.Audit{
		ID:           id,
		CompanyName:  companyName.String,
		State:        audit.State(stateStr),
		Progress:     progress.String,
		ErrorMessage: errorMessage.String,
	}
	if reviewRequired.Valid {
		record.ReviewRequired = reviewRequired.Int64 != 0
	}
	if resultsRaw.Valid && resultsRaw.String != "" {
		record.Results = &audit.Results{}
		if err := json.Unmarshal([]byte(resultsRaw.String), record.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	if issuesRaw.Valid && issuesRaw.String != "" {
		if err := json.Unmarshal([]byte(issuesRaw.String), &record.Issues); err != nil {
			return nil, fmt.Errorf("decode issues: %w", err)
		}
	}
	if reportRaw.Valid && reportRaw.String != "" {
		record.QualityReport = &audit.QualityReport{}
		if err := json.Unmarshal([]byte(reportRaw.String), record.QualityReport); err != nil {
			return nil, fmt.Errorf("decode quality report: %w", err)
		}
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
