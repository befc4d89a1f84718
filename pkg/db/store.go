package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hanziwordle/hanziwordle/pkg/hanzi"
	"github.com/hanziwordle/hanziwordle/pkg/query"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Querier runs read queries bound to a context. *sql.DB and *sql.Tx both
// satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// InsertWord stores a word. It reports false when a word with the same text
// already exists; stored pinyin is never overwritten.
func InsertWord(db DBExecutor, text, pinyin string) (bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false, fmt.Errorf("word must be non-empty")
	}
	if pinyin == "" {
		return false, fmt.Errorf("pinyin must be non-empty for %q", trimmed)
	}
	res, err := db.Exec(`INSERT INTO words (text, pinyin) VALUES (?, ?) ON CONFLICT(text) DO NOTHING`, trimmed, pinyin)
	if err != nil {
		return false, fmt.Errorf("insert word %q: %w", trimmed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertWords stores each word and returns how many were new.
func InsertWords(db DBExecutor, words []Word) (int, error) {
	stored := 0
	for _, w := range words {
		ok, err := InsertWord(db, w.Text, w.Pinyin)
		if err != nil {
			return stored, err
		}
		if ok {
			stored++
		}
	}
	return stored, nil
}

// GetWord looks a word up by its text. It returns sql.ErrNoRows when absent.
func GetWord(db DBExecutor, text string) (Word, error) {
	var w Word
	err := db.QueryRow(`SELECT id, text, pinyin, added_at FROM words WHERE text = ?`, text).
		Scan(&w.ID, &w.Text, &w.Pinyin, &w.AddedAt)
	if err != nil {
		return Word{}, err
	}
	return w, nil
}

// CountWords returns the number of stored words.
func CountWords(db DBExecutor) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM words`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// renderPredicate turns a predicate into a WHERE clause with positional
// parameters. Patterns are only ever passed as arguments.
func renderPredicate(p query.Predicate) (string, []interface{}, error) {
	if len(p.Clauses) == 0 {
		return "", nil, fmt.Errorf("predicate has no clauses")
	}
	conds := make([]string, 0, len(p.Clauses))
	args := make([]interface{}, 0, len(p.Clauses)+1)
	for _, c := range p.Clauses {
		var column string
		switch c.Field {
		case query.FieldText:
			column = "text"
		case query.FieldPinyin:
			column = "pinyin"
		default:
			return "", nil, fmt.Errorf("unknown field %q", c.Field)
		}

		switch c.Op {
		case query.OpLike:
			conds = append(conds, column+" LIKE ?")
			if c.Field == query.FieldPinyin {
				// Stored pinyin ends with the sentinel; anchor on it so the
				// last syllable has to match exactly.
				args = append(args, c.Pattern+hanzi.Sentinel)
			} else {
				args = append(args, c.Pattern)
			}
		case query.OpContains:
			conds = append(conds, column+" LIKE '%' || ? || '%'")
			args = append(args, c.Pattern)
		case query.OpLength:
			conds = append(conds, "LENGTH("+column+") = ?")
			args = append(args, c.Length)
		default:
			return "", nil, fmt.Errorf("unknown op %v", c.Op)
		}
	}

	limit := p.Limit
	if limit <= 0 || limit > query.MaxResults {
		limit = query.MaxResults
	}
	args = append(args, limit)
	return strings.Join(conds, " AND ") + " LIMIT ?", args, nil
}

// SearchWords returns the words matching p, at most p.Limit of them.
func SearchWords(ctx context.Context, db Querier, p query.Predicate) ([]Word, error) {
	where, args, err := renderPredicate(p)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, text, pinyin, added_at FROM words WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("search words: %w", err)
	}
	defer rows.Close()

	var out []Word
	for rows.Next() {
		var w Word
		if err := rows.Scan(&w.ID, &w.Text, &w.Pinyin, &w.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
