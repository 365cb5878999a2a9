package slangdict

import (
	"strings"
	"unicode/utf8"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

// A SlangTerm is a word together with totals over all of its definitions.
type SlangTerm struct {
	Word            string
	DefinitionCount int64
	TotalUpvotes    int64
}

func (t *SlangTerm) URL() string {
	return WordURL(t.Word)
}

func GetDistinctWords(conn *sqlite.Conn) ([]string, error) {
	var words []string
	collect := func(stmt *sqlite.Stmt) error {
		words = append(words, stmt.ColumnText(0))
		return nil
	}
	err := sqlitex.Exec(conn, "select distinct word from definition where word != ''", collect)
	return words, err
}

func queryTerms(conn *sqlite.Conn, rest string, args ...any) ([]SlangTerm, error) {
	var terms []SlangTerm
	query := `
		select word, count(*), sum(upvotes)
		from definition
		` + rest
	collect := func(stmt *sqlite.Stmt) error {
		terms = append(terms, SlangTerm{
			Word:            stmt.ColumnText(0),
			DefinitionCount: stmt.ColumnInt64(1),
			TotalUpvotes:    stmt.ColumnInt64(2),
		})
		return nil
	}
	err := sqlitex.Exec(conn, query, collect, args...)
	return terms, err
}

// GetSlangTerms lists every term alphabetically.
func GetSlangTerms(conn *sqlite.Conn) ([]SlangTerm, error) {
	return queryTerms(conn, "group by word order by word")
}

// GetSlangTermsByLetter lists the terms starting with letter. Any other
// argument, conventionally "#", lists the terms that start with something
// other than a letter.
func GetSlangTermsByLetter(conn *sqlite.Conn, letter string) ([]SlangTerm, error) {
	letter = strings.ToLower(letter)
	r, size := utf8.DecodeRuneInString(letter)
	if size == len(letter) && r >= 'a' && r <= 'z' {
		return queryTerms(conn, "where substr(word, 1, 1) = ? group by word order by word", letter)
	}
	terms, err := GetSlangTerms(conn)
	if err != nil {
		return nil, err
	}
	var others []SlangTerm
	for _, term := range terms {
		first, _ := utf8.DecodeRuneInString(term.Word)
		if first < 'a' || first > 'z' {
			others = append(others, term)
		}
	}
	return others, nil
}

// GetPopularSlangTerms ranks terms by the upvotes on all their definitions.
func GetPopularSlangTerms(conn *sqlite.Conn, limit int) ([]SlangTerm, error) {
	return queryTerms(conn, `
		group by word
		order by sum(upvotes) desc, count(*) desc, word
		limit ?`,
		limit)
}

// BrowseLetters are the index pages of the browse view, in order.
var BrowseLetters = strings.Split("abcdefghijklmnopqrstuvwxyz#", "")
