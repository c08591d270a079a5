package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across proposals, comments, and
// edit_records using plainto_tsquery and ts_rank, with ts_headline for
// snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Proposals sub-query
	if q.FilterType == "" || q.FilterType == ResultProposal {
		propWhere := "p.fts @@ " + tsQuery
		if q.FilterProposalID != "" {
			propWhere += fmt.Sprintf(" AND p.id = $%d", argN)
			args = append(args, q.FilterProposalID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'proposal'::text AS type, p.id, p.title,
				ts_headline('english', coalesce(p.client_name, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS proposal_id,
				''::text AS section_id,
				''::text AS author_type,
				ts_rank(p.fts, %s) AS rank
			FROM proposals p
			WHERE %s`, tsQuery, tsQuery, propWhere))
	}

	// Comments sub-query
	if q.FilterType == "" || q.FilterType == ResultComment {
		commentWhere := "c.fts @@ " + tsQuery
		if q.FilterProposalID != "" {
			commentWhere += fmt.Sprintf(" AND c.proposal_id = $%d", argN)
			args = append(args, q.FilterProposalID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'comment'::text AS type, c.id, c.author_name AS title,
				ts_headline('english', coalesce(c.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.proposal_id,
				c.section_id,
				c.author_type,
				ts_rank(c.fts, %s) AS rank
			FROM comments c
			WHERE %s`, tsQuery, tsQuery, commentWhere))
	}

	// Edit history sub-query. Never exposed to client viewers.
	if !q.IsClient && (q.FilterType == "" || q.FilterType == ResultEdit) {
		editWhere := "e.fts @@ " + tsQuery
		if q.FilterProposalID != "" {
			editWhere += fmt.Sprintf(" AND e.proposal_id = $%d", argN)
			args = append(args, q.FilterProposalID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'edit'::text AS type, e.id, e.change_type AS title,
				ts_headline('english', coalesce(e.summary, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				e.proposal_id,
				e.section_changed AS section_id,
				''::text AS author_type,
				ts_rank(e.fts, %s) AS rank
			FROM edit_records e
			WHERE %s`, tsQuery, tsQuery, editWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, proposal_id, section_id, author_type
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProposalID, &r.SectionID, &r.AuthorType); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProposalRecord, []CommentRecord, []EditRecordDoc, error) {
	propRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, client_name, agency_name, status
		FROM proposals
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load proposals: %w", err)
	}
	defer propRows.Close()

	proposals := make([]ProposalRecord, 0)
	for propRows.Next() {
		var pr ProposalRecord
		if err := propRows.Scan(&pr.ID, &pr.Title, &pr.ClientName, &pr.AgencyName, &pr.Status); err != nil {
			return nil, nil, nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, pr)
	}
	if err := propRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate proposals: %w", err)
	}

	commentRows, err := p.db.QueryContext(ctx, `
		SELECT id, content, author_name, author_type, proposal_id, section_id, resolved
		FROM comments
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load comments: %w", err)
	}
	defer commentRows.Close()

	comments := make([]CommentRecord, 0)
	for commentRows.Next() {
		var c CommentRecord
		if err := commentRows.Scan(&c.ID, &c.Content, &c.AuthorName, &c.AuthorType, &c.ProposalID, &c.SectionID, &c.Resolved); err != nil {
			return nil, nil, nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := commentRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate comments: %w", err)
	}

	editRows, err := p.db.QueryContext(ctx, `
		SELECT id, summary, change_type, proposal_id, section_changed
		FROM edit_records
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load edits: %w", err)
	}
	defer editRows.Close()

	edits := make([]EditRecordDoc, 0)
	for editRows.Next() {
		var e EditRecordDoc
		if err := editRows.Scan(&e.ID, &e.Summary, &e.ChangeType, &e.ProposalID, &e.SectionChanged); err != nil {
			return nil, nil, nil, fmt.Errorf("scan edit: %w", err)
		}
		edits = append(edits, e)
	}
	if err := editRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate edits: %w", err)
	}

	return proposals, comments, edits, nil
}
