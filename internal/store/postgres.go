package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE email=$1
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ── Refresh sessions (Postgres fallback when Redis is not configured) ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ── Proposals ──

func (s *PostgresStore) InsertProposal(ctx context.Context, proposal Proposal) error {
	data, err := json.Marshal(proposal.Data)
	if err != nil {
		return fmt.Errorf("marshal proposal data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO proposals (id, title, client_name, agency_name, status, is_locked, locked_reason, locked_at, data, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, proposal.ID, proposal.Title, proposal.ClientName, proposal.AgencyName, proposal.Status,
		proposal.IsLocked, proposal.LockedReason, proposal.LockedAt, data, proposal.CreatedBy,
		proposal.CreatedAt, proposal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProposal(ctx context.Context, proposalID string) (Proposal, error) {
	var proposal Proposal
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, client_name, agency_name, status, is_locked, locked_reason, locked_at, data, created_by, created_at, updated_at
		FROM proposals WHERE id=$1
	`, proposalID).Scan(&proposal.ID, &proposal.Title, &proposal.ClientName, &proposal.AgencyName,
		&proposal.Status, &proposal.IsLocked, &proposal.LockedReason, &proposal.LockedAt, &data,
		&proposal.CreatedBy, &proposal.CreatedAt, &proposal.UpdatedAt)
	if err != nil {
		return Proposal{}, err
	}
	if err := json.Unmarshal(data, &proposal.Data); err != nil {
		return Proposal{}, fmt.Errorf("decode proposal data: %w", err)
	}
	return proposal, nil
}

func (s *PostgresStore) ListProposals(ctx context.Context) ([]Proposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, client_name, agency_name, status, is_locked, locked_reason, locked_at, data, created_by, created_at, updated_at
		FROM proposals
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	items := make([]Proposal, 0)
	for rows.Next() {
		var proposal Proposal
		var data []byte
		if err := rows.Scan(&proposal.ID, &proposal.Title, &proposal.ClientName, &proposal.AgencyName,
			&proposal.Status, &proposal.IsLocked, &proposal.LockedReason, &proposal.LockedAt, &data,
			&proposal.CreatedBy, &proposal.CreatedAt, &proposal.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		if err := json.Unmarshal(data, &proposal.Data); err != nil {
			return nil, fmt.Errorf("decode proposal data: %w", err)
		}
		items = append(items, proposal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return items, nil
}

// UpdateProposal overwrites the whole document row. Saves are
// last-write-wins at document granularity; there is no version check.
func (s *PostgresStore) UpdateProposal(ctx context.Context, proposal Proposal) error {
	data, err := json.Marshal(proposal.Data)
	if err != nil {
		return fmt.Errorf("marshal proposal data: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE proposals
		SET title=$2, client_name=$3, agency_name=$4, status=$5, is_locked=$6, locked_reason=$7, locked_at=$8, data=$9, updated_at=$10
		WHERE id=$1
	`, proposal.ID, proposal.Title, proposal.ClientName, proposal.AgencyName, proposal.Status,
		proposal.IsLocked, proposal.LockedReason, proposal.LockedAt, data, proposal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update proposal rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteProposal(ctx context.Context, proposalID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM proposals WHERE id=$1`, proposalID)
	if err != nil {
		return false, fmt.Errorf("delete proposal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete proposal rows: %w", err)
	}
	return affected > 0, nil
}

// ── Edit history ──

func (s *PostgresStore) InsertEditRecord(ctx context.Context, record EditRecord) error {
	changes, err := json.Marshal(record.Changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO edit_records (id, proposal_id, recorded_at, editor_name, editor_email, section_changed, change_type, summary, changes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, record.ID, record.ProposalID, record.Timestamp, record.EditorName, record.EditorEmail,
		record.SectionChanged, record.ChangeType, record.Summary, changes)
	if err != nil {
		return fmt.Errorf("insert edit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEditRecords(ctx context.Context, proposalID string, limit int) ([]EditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, proposal_id, recorded_at, editor_name, editor_email, section_changed, change_type, summary, changes
		FROM edit_records
		WHERE proposal_id=$1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2
	`, proposalID, limit)
	if err != nil {
		return nil, fmt.Errorf("list edit records: %w", err)
	}
	defer rows.Close()

	items := make([]EditRecord, 0)
	for rows.Next() {
		var record EditRecord
		var changes []byte
		if err := rows.Scan(&record.ID, &record.ProposalID, &record.Timestamp, &record.EditorName,
			&record.EditorEmail, &record.SectionChanged, &record.ChangeType, &record.Summary, &changes); err != nil {
			return nil, fmt.Errorf("scan edit record: %w", err)
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &record.Changes); err != nil {
				return nil, fmt.Errorf("decode changes: %w", err)
			}
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edit records: %w", err)
	}
	return items, nil
}

// ── Comments ──

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, proposal_id, section_id, author_name, author_email, author_type, content, created_at, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, comment.ID, comment.ProposalID, comment.SectionID, comment.AuthorName, comment.AuthorEmail,
		comment.AuthorType, comment.Content, comment.CreatedAt, comment.ParentID)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	var comment Comment
	var resolvedBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, proposal_id, section_id, author_name, author_email, author_type, content, created_at, parent_id, resolved, resolved_at, resolved_by
		FROM comments WHERE id=$1
	`, commentID).Scan(&comment.ID, &comment.ProposalID, &comment.SectionID, &comment.AuthorName,
		&comment.AuthorEmail, &comment.AuthorType, &comment.Content, &comment.CreatedAt,
		&comment.ParentID, &comment.Resolved, &comment.ResolvedAt, &resolvedBy)
	if err != nil {
		return Comment{}, err
	}
	comment.ResolvedBy = resolvedBy.String
	return comment, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, proposalID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, proposal_id, section_id, author_name, author_email, author_type, content, created_at, parent_id, resolved, resolved_at, resolved_by
		FROM comments
		WHERE proposal_id=$1
		ORDER BY created_at ASC, id ASC
	`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var comment Comment
		var resolvedBy sql.NullString
		if err := rows.Scan(&comment.ID, &comment.ProposalID, &comment.SectionID, &comment.AuthorName,
			&comment.AuthorEmail, &comment.AuthorType, &comment.Content, &comment.CreatedAt,
			&comment.ParentID, &comment.Resolved, &comment.ResolvedAt, &resolvedBy); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comment.ResolvedBy = resolvedBy.String
		items = append(items, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ResolveComment(ctx context.Context, commentID, resolvedBy string, resolvedAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET resolved=TRUE, resolved_at=$2, resolved_by=$3 WHERE id=$1
	`, commentID, resolvedAt, resolvedBy)
	if err != nil {
		return false, fmt.Errorf("resolve comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ReopenComment(ctx context.Context, commentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET resolved=FALSE, resolved_at=NULL, resolved_by=NULL WHERE id=$1
	`, commentID)
	if err != nil {
		return false, fmt.Errorf("reopen comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reopen comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1 OR parent_id=$1`, commentID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows: %w", err)
	}
	return affected > 0, nil
}

// ── Share links ──

func (s *PostgresStore) InsertShareLink(ctx context.Context, link ShareLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_links (id, proposal_id, token, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, link.ID, link.ProposalID, link.Token, link.CreatedBy, link.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert share link: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetShareLinkByToken(ctx context.Context, token string) (ShareLink, error) {
	var link ShareLink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, proposal_id, token, created_by, created_at, revoked_at
		FROM share_links
		WHERE token=$1 AND revoked_at IS NULL
	`, token).Scan(&link.ID, &link.ProposalID, &link.Token, &link.CreatedBy, &link.CreatedAt, &link.RevokedAt)
	if err != nil {
		return ShareLink{}, err
	}
	return link, nil
}

func (s *PostgresStore) GetShareLinkByProposal(ctx context.Context, proposalID string) (ShareLink, error) {
	var link ShareLink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, proposal_id, token, created_by, created_at, revoked_at
		FROM share_links
		WHERE proposal_id=$1 AND revoked_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, proposalID).Scan(&link.ID, &link.ProposalID, &link.Token, &link.CreatedBy, &link.CreatedAt, &link.RevokedAt)
	if err != nil {
		return ShareLink{}, err
	}
	return link, nil
}

func (s *PostgresStore) RevokeShareLink(ctx context.Context, linkID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE share_links SET revoked_at=NOW() WHERE id=$1`, linkID)
	if err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	return nil
}
