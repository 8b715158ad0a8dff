// Package search implements lexical retrieval over the RetrievalIndex FTS5
// table (spec §4.5).
package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"turn-orchestrator/internal/store"
	"turn-orchestrator/pkg/types"
)

// DB is the subset of *sql.DB search needs; satisfied by store.Store.DB().
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Filters narrows a search beyond the phrase match itself (spec §4.5).
type Filters struct {
	SourceType           string
	ExcludeConversations bool
	FileTypes            []string // suffix match against location.path
	Paths                []string // glob match ('*' -> '%') against location.path
}

// Result is one enriched search hit.
type Result struct {
	ChunkID        string                 `json:"chunk_id"`
	SourceType     string                 `json:"source_type"`
	SourceID       string                 `json:"source_id"`
	Content        string                 `json:"content"`
	Highlighted    string                 `json:"highlighted"`
	RelevanceScore float64                `json:"relevance_score"`
	Location       map[string]interface{} `json:"location"`
	Path           string                 `json:"path,omitempty"`
	RoundNumber    int                    `json:"round_number,omitempty"`
	Speaker        string                 `json:"speaker,omitempty"`
}

// Response is search's top-level return shape.
type Response struct {
	Results         []Result `json:"results"`
	Total           int      `json:"total"`
	Query           string   `json:"query"`
	Limit           int      `json:"limit"`
	Offset          int      `json:"offset"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
}

// Searcher runs lexical searches against a Store's retrieval_index table.
type Searcher struct {
	db       DB
	maxLimit int
}

// New builds a Searcher. maxLimit <= 0 falls back to 100 (spec §4.5's
// "limit ≤ 100").
func New(db DB, maxLimit int) *Searcher {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Searcher{db: db, maxLimit: maxLimit}
}

// NewFromStore is a convenience constructor over *store.Store.
func NewFromStore(s *store.Store, maxLimit int) *Searcher {
	return New(s.DB(), maxLimit)
}

// Search runs a project-scoped lexical search.
func (s *Searcher) Search(ctx context.Context, projectID, rawQuery string, limit, offset int, f Filters) (*Response, error) {
	start := time.Now()

	if limit <= 0 || limit > s.maxLimit {
		limit = s.maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	// Indexed content is normalized to NFC before FTS5 tokenizes it
	// (see indexer.indexEntries); normalizing the query the same way
	// keeps composed/decomposed spellings of the same text matching.
	normalizedQuery := norm.NFC.String(rawQuery)
	phrase := ToPhraseLiteral(normalizedQuery)

	where, args := buildPredicate(projectID, phrase, f)

	total, err := s.countTotal(ctx, where, args)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT ri.chunk_id, cc.source_type, cc.source_id, ri.content, cc.location, bm25(ri) AS rank
		FROM retrieval_index ri
		JOIN content_chunks cc ON cc.id = ri.chunk_id
		WHERE %s
		ORDER BY rank
		LIMIT ? OFFSET ?`, where)
	rows, err := s.db.QueryContext(ctx, query, append(append([]interface{}{}, args...), limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	terms := queryTerms(normalizedQuery)
	var results []Result
	for rows.Next() {
		var r Result
		var locationJSON string
		var rank float64
		if err := rows.Scan(&r.ChunkID, &r.SourceType, &r.SourceID, &r.Content, &locationJSON, &rank); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.RelevanceScore = absFloat(rank)
		r.Highlighted = highlight(r.Content, terms)
		r.Location = parseLocation(locationJSON)
		enrichFromLocation(&r)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Response{
		Results:         results,
		Total:           total,
		Query:           rawQuery,
		Limit:           limit,
		Offset:          offset,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (s *Searcher) countTotal(ctx context.Context, where string, args []interface{}) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM retrieval_index ri
		JOIN content_chunks cc ON cc.id = ri.chunk_id
		WHERE %s`, where)
	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting search results: %w", err)
	}
	return total, nil
}

func buildPredicate(projectID, phrase string, f Filters) (string, []interface{}) {
	clauses := []string{"ri MATCH ?", "ri.project_id = ?"}
	args := []interface{}{phrase, projectID}

	if f.SourceType != "" {
		clauses = append(clauses, "cc.source_type = ?")
		args = append(args, f.SourceType)
	}
	if f.ExcludeConversations {
		clauses = append(clauses, "cc.source_type != ?")
		args = append(args, types.SourceTypeMessage)
	}
	for _, ft := range f.FileTypes {
		clauses = append(clauses, "json_extract(cc.location, '$.path') LIKE ?")
		args = append(args, "%"+ft)
	}
	for _, p := range f.Paths {
		clauses = append(clauses, "json_extract(cc.location, '$.path') LIKE ?")
		args = append(args, store.ToSQLLike(p))
	}

	return strings.Join(clauses, " AND "), args
}

// ToPhraseLiteral converts a raw query into the phrase-literal form spec
// §4.5 requires: internal '"' doubled, trimmed, wrapped in quotes. This
// neutralises FTS5 query operators (AND/OR/NOT/NEAR, column filters, etc).
func ToPhraseLiteral(raw string) string {
	trimmed := strings.TrimSpace(raw)
	escaped := strings.ReplaceAll(trimmed, `"`, `""`)
	return `"` + escaped + `"`
}

func queryTerms(raw string) []string {
	fields := strings.Fields(raw)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"`)
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// highlight wraps case-insensitive occurrences of terms in content with
// "**...**" markers (spec §4.5).
func highlight(content string, terms []string) string {
	if len(terms) == 0 {
		return content
	}
	lower := strings.ToLower(content)
	type span = struct{ start, end int }
	var spans []span
	for _, term := range terms {
		needle := strings.ToLower(term)
		if needle == "" {
			continue
		}
		from := 0
		for {
			idx := strings.Index(lower[from:], needle)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(needle)
			spans = append(spans, span{start, end})
			from = end
		}
	}
	if len(spans) == 0 {
		return content
	}

	var b strings.Builder
	cursor := 0
	for _, sp := range mergeSpans(spans) {
		b.WriteString(content[cursor:sp.start])
		b.WriteString("**")
		b.WriteString(content[sp.start:sp.end])
		b.WriteString("**")
		cursor = sp.end
	}
	b.WriteString(content[cursor:])
	return b.String()
}

func mergeSpans(spans []struct{ start, end int }) []struct{ start, end int } {
	if len(spans) <= 1 {
		return spans
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[j].start < spans[i].start {
				spans[i], spans[j] = spans[j], spans[i]
			}
		}
	}
	var merged []struct{ start, end int }
	cur := spans[0]
	for _, sp := range spans[1:] {
		if sp.start <= cur.end {
			if sp.end > cur.end {
				cur.end = sp.end
			}
			continue
		}
		merged = append(merged, cur)
		cur = sp
	}
	merged = append(merged, cur)
	return merged
}

func parseLocation(raw string) map[string]interface{} {
	m := map[string]interface{}{}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}

func enrichFromLocation(r *Result) {
	switch r.SourceType {
	case types.SourceTypeFile:
		if p, ok := r.Location["path"].(string); ok {
			r.Path = p
		}
	case types.SourceTypeMessage:
		if rn, ok := r.Location["round_number"].(float64); ok {
			r.RoundNumber = int(rn)
		}
		if sp, ok := r.Location["speaker"].(string); ok {
			r.Speaker = sp
		}
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
