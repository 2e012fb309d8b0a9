package storage

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/hoanghai1803/feedwright/internal/models"
)

// SearchDrafts performs a full-text search on draft titles and bodies using
// FTS5. Every word of the query must match, the last one as a prefix.
// Results are ordered by relevance.
func (s *Store) SearchDrafts(ctx context.Context, query string, limit int) ([]models.Draft, error) {
	match := ftsQuery(query)
	if match == "" {
		return []models.Draft{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.title, d.slug, d.body_html, d.author_id, d.category_id,
				d.status, d.feed_id, d.thumbnail_id, d.created_at
		 FROM drafts_fts fts
		 JOIN drafts d ON d.id = fts.rowid
		 WHERE drafts_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching drafts: %w", err)
	}
	defer rows.Close()

	drafts := []models.Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		drafts = append(drafts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return drafts, nil
}

// ftsQuery keeps only letters and digits and quotes each word, so user
// input never reaches the FTS5 query syntax.
func ftsQuery(q string) string {
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for i, w := range words {
		term := `"` + w + `"`
		if i == len(words)-1 {
			term += "*"
		}
		terms = append(terms, term)
	}
	return strings.Join(terms, " ")
}
