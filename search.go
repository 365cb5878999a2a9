package slangdict

import (
	"strings"
	"unicode/utf8"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

// Which field of a definition a search query matched.
type MatchType string

const (
	MatchWord       MatchType = "word"
	MatchDefinition MatchType = "definition"
	MatchExample    MatchType = "example"
)

const (
	minSearchQueryLength = 2
	searchTierLimit      = 10
)

// likeEscaper escapes LIKE wildcards for use with "escape '\'".
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// normalizeSearchQuery returns the "%query%" LIKE pattern, or "" if the query
// is too short to search for.
func normalizeSearchQuery(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	if utf8.RuneCountInString(q) < minSearchQueryLength {
		return ""
	}
	return "%" + likeEscaper.Replace(q) + "%"
}

// SearchDefinitions finds definitions whose word, body or example contains q.
// Word matches come first, then body matches, then example matches; a
// definition only shows up in the first tier it matches. Each tier holds at
// most ten results, most upvoted first.
func SearchDefinitions(conn *sqlite.Conn, q string) ([]Definition, error) {
	pattern := normalizeSearchQuery(q)
	if pattern == "" {
		return nil, nil
	}
	tiers := []struct {
		matchType MatchType
		where     string
	}{
		{MatchWord, `definition.word like ?1 escape '\'`},
		{MatchDefinition, `lower(definition.body) like ?1 escape '\'
			and definition.word not like ?1 escape '\'`},
		{MatchExample, `lower(definition.example) like ?1 escape '\'
			and definition.word not like ?1 escape '\'
			and lower(definition.body) not like ?1 escape '\'`},
	}
	var results []Definition
	for _, tier := range tiers {
		defs, err := queryDefinitions(conn, "where "+tier.where+`
			order by definition.upvotes desc, definition.definition_id
			limit ?2`,
			pattern, searchTierLimit)
		if err != nil {
			return nil, err
		}
		for i := range defs {
			defs[i].MatchType = tier.matchType
		}
		results = append(results, defs...)
	}
	return results, nil
}

// SearchTags returns up to ten tag names containing q, alphabetically.
func SearchTags(conn *sqlite.Conn, q string) ([]string, error) {
	pattern := normalizeSearchQuery(q)
	if pattern == "" {
		return nil, nil
	}
	var tags []string
	collect := func(stmt *sqlite.Stmt) error {
		tags = append(tags, stmt.ColumnText(0))
		return nil
	}
	query := `select name from tag where name like ? escape '\' order by name limit ?`
	err := sqlitex.Exec(conn, query, collect, pattern, searchTierLimit)
	return tags, err
}

// GetAllTags lists every tag that is attached to at least one definition.
func GetAllTags(conn *sqlite.Conn) ([]string, error) {
	var tags []string
	collect := func(stmt *sqlite.Stmt) error {
		tags = append(tags, stmt.ColumnText(0))
		return nil
	}
	query := `
		select distinct tag.name
		from tag
		join definition_tag using (tag_id)
		order by tag.name`
	err := sqlitex.Exec(conn, query, collect)
	return tags, err
}
