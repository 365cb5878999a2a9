package slangdict

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

type Definition struct {
	DefinitionID int64
	Word         string
	Body         string
	Example      string
	UserID       int64
	UserName     string
	Upvotes      int64
	Downvotes    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Tags         []string

	// Only set on search results.
	MatchType MatchType
}

func (d *Definition) Score() int64 {
	return d.Upvotes - d.Downvotes
}

func (d *Definition) URL() string {
	return fmt.Sprintf("%s#d%d", WordURL(d.Word), d.DefinitionID)
}

func (d *Definition) WordURL() string {
	return WordURL(d.Word)
}

func (d *Definition) EditURL() string {
	return fmt.Sprintf("/definitions/%d/edit", d.DefinitionID)
}

func (d *Definition) UserURL() string {
	return userURL(d.UserName)
}

func (d *Definition) Edited() bool {
	return d.UpdatedAt.After(d.CreatedAt)
}

func WordURL(word string) string {
	return "/define/" + url.PathEscape(word)
}

func TagURL(tag string) string {
	return "/tag/" + url.PathEscape(tag)
}

// NormalizeWord lowercases a word and collapses its whitespace, matching the
// keys the term linker produces.
func NormalizeWord(word string) string {
	return strings.Join(strings.Fields(strings.ToLower(word)), " ")
}

// ParseTags splits a comma-separated list into lowercased, deduplicated tags,
// dropping empty ones. Order of first appearance is kept.
func ParseTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		tag = NormalizeWord(tag)
		if tag == "" || slices.Contains(tags, tag) {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

const definitionColumns = `
	definition.definition_id, definition.word, definition.body, definition.example,
	definition.user_id, user.user_name, definition.upvotes, definition.downvotes,
	definition.created_at, definition.updated_at`

func scanDefinition(stmt *sqlite.Stmt) Definition {
	return Definition{
		DefinitionID: stmt.ColumnInt64(0),
		Word:         stmt.ColumnText(1),
		Body:         stmt.ColumnText(2),
		Example:      stmt.ColumnText(3),
		UserID:       stmt.ColumnInt64(4),
		UserName:     stmt.ColumnText(5),
		Upvotes:      stmt.ColumnInt64(6),
		Downvotes:    stmt.ColumnInt64(7),
		CreatedAt:    time.Unix(stmt.ColumnInt64(8), 0).UTC(),
		UpdatedAt:    time.Unix(stmt.ColumnInt64(9), 0).UTC(),
	}
}

// queryDefinitions runs "select <definition columns> from definition join user"
// followed by rest, then loads the tags of every row.
func queryDefinitions(conn *sqlite.Conn, rest string, args ...any) ([]Definition, error) {
	var defs []Definition
	query := "select " + definitionColumns + " from definition join user using (user_id) " + rest
	collect := func(stmt *sqlite.Stmt) error {
		defs = append(defs, scanDefinition(stmt))
		return nil
	}
	if err := sqlitex.Exec(conn, query, collect, args...); err != nil {
		return nil, err
	}
	if err := loadTags(conn, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func loadTags(conn *sqlite.Conn, defs []Definition) error {
	if len(defs) == 0 {
		return nil
	}
	index := make(map[int64]int, len(defs))
	ids := make([]int64, len(defs))
	for i := range defs {
		index[defs[i].DefinitionID] = i
		ids[i] = defs[i].DefinitionID
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	query := `
		select definition_tag.definition_id, tag.name
		from definition_tag
		join tag using (tag_id)
		where definition_tag.definition_id in (select value from json_each(?))
		order by tag.name`
	collect := func(stmt *sqlite.Stmt) error {
		i := index[stmt.ColumnInt64(0)]
		defs[i].Tags = append(defs[i].Tags, stmt.ColumnText(1))
		return nil
	}
	return sqlitex.Exec(conn, query, collect, string(idsJSON))
}

// GetDefinition returns nil if there is no definition with that ID.
func GetDefinition(conn *sqlite.Conn, definitionID int64) (*Definition, error) {
	defs, err := queryDefinitions(conn, "where definition.definition_id = ?", definitionID)
	if err != nil || len(defs) == 0 {
		return nil, err
	}
	return &defs[0], nil
}

// GetDefinitionsByWord returns every definition of word, most upvoted first.
func GetDefinitionsByWord(conn *sqlite.Conn, word string) ([]Definition, error) {
	return queryDefinitions(conn, `
		where definition.word = ?
		order by definition.upvotes desc, definition.definition_id`,
		NormalizeWord(word))
}

func GetRecentDefinitions(conn *sqlite.Conn, limit int, offset int) ([]Definition, error) {
	return queryDefinitions(conn, `
		order by definition.created_at desc, definition.definition_id desc
		limit ? offset ?`,
		limit, offset)
}

func GetRandomDefinitions(conn *sqlite.Conn, limit int) ([]Definition, error) {
	return queryDefinitions(conn, "order by random() limit ?", limit)
}

func GetDefinitionsByTag(conn *sqlite.Conn, tag string, limit int) ([]Definition, error) {
	return queryDefinitions(conn, `
		where definition.definition_id in (
			select definition_id
			from definition_tag
			join tag using (tag_id)
			where tag.name = ?
		)
		order by definition.upvotes desc, definition.definition_id
		limit ?`,
		NormalizeWord(tag), limit)
}

func GetDefinitionsByUser(conn *sqlite.Conn, userID int64, limit int) ([]Definition, error) {
	return queryDefinitions(conn, `
		where definition.user_id = ?
		order by definition.created_at desc, definition.definition_id desc
		limit ?`,
		userID, limit)
}

func CountDefinitions(conn *sqlite.Conn) (int64, error) {
	var count int64
	collect := func(stmt *sqlite.Stmt) error {
		count = stmt.ColumnInt64(0)
		return nil
	}
	err := sqlitex.Exec(conn, "select count(*) from definition", collect)
	return count, err
}

// CreateDefinition stores a definition and its tags in one savepoint.
func CreateDefinition(conn *sqlite.Conn, userID int64, word, body, example string, tags []string) (def *Definition, err error) {
	word = NormalizeWord(word)
	body = strings.TrimSpace(body)
	example = strings.TrimSpace(example)
	if word == "" || body == "" {
		return nil, errors.New("word and definition are required")
	}

	defer sqlitex.Save(conn)(&err)

	now := utcNow().Unix()
	query := `
		insert into definition (word, body, example, user_id, created_at, updated_at)
		values (?, ?, ?, ?, ?, ?)`
	if err = sqlitex.Exec(conn, query, nil, word, body, example, userID, now, now); err != nil {
		return nil, err
	}
	definitionID := conn.LastInsertRowID()
	if err = setDefinitionTags(conn, definitionID, tags); err != nil {
		return nil, err
	}
	def, err = GetDefinition(conn, definitionID)
	if err == nil && def == nil {
		err = fmt.Errorf("definition %d vanished after insert", definitionID)
	}
	return def, err
}

func setDefinitionTags(conn *sqlite.Conn, definitionID int64, tags []string) error {
	err := sqlitex.Exec(conn, "delete from definition_tag where definition_id = ?", nil, definitionID)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		tag = NormalizeWord(tag)
		if tag == "" {
			continue
		}
		err := sqlitex.Exec(conn, "insert into tag (name) values (?) on conflict (name) do nothing", nil, tag)
		if err != nil {
			return err
		}
		query := `
			insert into definition_tag (definition_id, tag_id)
			select ?, tag_id from tag where name = ?
			on conflict do nothing`
		if err := sqlitex.Exec(conn, query, nil, definitionID, tag); err != nil {
			return err
		}
	}
	return nil
}

// checkOwner returns ErrNotFound if the definition doesn't exist and
// ErrForbidden if it belongs to someone else.
func checkOwner(conn *sqlite.Conn, userID int64, definitionID int64) error {
	var ownerID int64
	found := false
	collect := func(stmt *sqlite.Stmt) error {
		ownerID = stmt.ColumnInt64(0)
		found = true
		return nil
	}
	err := sqlitex.Exec(conn, "select user_id from definition where definition_id = ?", collect, definitionID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("definition %d: %w", definitionID, ErrNotFound)
	}
	if ownerID != userID {
		return fmt.Errorf("definition %d: %w", definitionID, ErrForbidden)
	}
	return nil
}

// UpdateDefinition rewrites the body, example and tags. The word itself can't
// change, since votes were cast on it.
func UpdateDefinition(conn *sqlite.Conn, userID int64, definitionID int64, body, example string, tags []string) (err error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return errors.New("definition is required")
	}

	defer sqlitex.Save(conn)(&err)

	if err = checkOwner(conn, userID, definitionID); err != nil {
		return err
	}
	query := "update definition set body = ?, example = ?, updated_at = ? where definition_id = ?"
	err = sqlitex.Exec(conn, query, nil, body, strings.TrimSpace(example), utcNow().Unix(), definitionID)
	if err != nil {
		return err
	}
	return setDefinitionTags(conn, definitionID, tags)
}

// DeleteDefinition removes a definition along with its votes, tags and any
// word of the day entries pointing at it.
func DeleteDefinition(conn *sqlite.Conn, userID int64, definitionID int64) (err error) {
	defer sqlitex.Save(conn)(&err)

	if err = checkOwner(conn, userID, definitionID); err != nil {
		return err
	}
	for _, query := range []string{
		"delete from vote where definition_id = ?",
		"delete from definition_tag where definition_id = ?",
		"delete from word_of_the_day where definition_id = ?",
		"delete from definition where definition_id = ?",
	} {
		if err = sqlitex.Exec(conn, query, nil, definitionID); err != nil {
			return err
		}
	}
	return nil
}
