package slangdict

import (
	"encoding/json"
	"fmt"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

type Vote int

const (
	NoVote   Vote = 0
	VoteUp   Vote = 1
	VoteDown Vote = -1
)

func ParseVote(s string) (Vote, error) {
	switch s {
	case "up":
		return VoteUp, nil
	case "down":
		return VoteDown, nil
	}
	return NoVote, fmt.Errorf("invalid vote %q", s)
}

func (v Vote) String() string {
	switch v {
	case VoteUp:
		return "up"
	case VoteDown:
		return "down"
	}
	return "none"
}

// What a call to VoteOnDefinition did.
type VoteResult string

const (
	VoteAdded   VoteResult = "added"
	VoteRemoved VoteResult = "removed"
	VoteChanged VoteResult = "changed"
)

// counterColumn is the definition column that tracks votes of this kind.
func (v Vote) counterColumn() string {
	if v == VoteUp {
		return "upvotes"
	}
	return "downvotes"
}

func GetUserVote(conn *sqlite.Conn, userID int64, definitionID int64) (Vote, error) {
	vote := NoVote
	collect := func(stmt *sqlite.Stmt) error {
		vote = Vote(stmt.ColumnInt(0))
		return nil
	}
	query := "select vote from vote where user_id = ? and definition_id = ?"
	err := sqlitex.Exec(conn, query, collect, userID, definitionID)
	return vote, err
}

// GetUserVotes returns the user's votes on the given definitions, keyed by
// definition ID. Definitions the user hasn't voted on are left out.
func GetUserVotes(conn *sqlite.Conn, userID int64, defs []Definition) (map[int64]Vote, error) {
	votes := make(map[int64]Vote)
	if len(defs) == 0 {
		return votes, nil
	}
	ids := make([]int64, len(defs))
	for i := range defs {
		ids[i] = defs[i].DefinitionID
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	query := `
		select definition_id, vote
		from vote
		where user_id = ? and definition_id in (select value from json_each(?))`
	collect := func(stmt *sqlite.Stmt) error {
		if vote := Vote(stmt.ColumnInt(1)); vote != NoVote {
			votes[stmt.ColumnInt64(0)] = vote
		}
		return nil
	}
	if err := sqlitex.Exec(conn, query, collect, userID, string(idsJSON)); err != nil {
		return nil, err
	}
	return votes, nil
}

// VoteOnDefinition records a vote. Casting the same vote twice takes it back,
// and casting the opposite vote switches it. The counters on the definition
// are kept in step inside the same savepoint.
func VoteOnDefinition(conn *sqlite.Conn, userID int64, definitionID int64, vote Vote) (result VoteResult, err error) {
	if vote != VoteUp && vote != VoteDown {
		return "", fmt.Errorf("invalid vote %d", vote)
	}

	defer sqlitex.Save(conn)(&err)

	def, err := GetDefinition(conn, definitionID)
	if err != nil {
		return "", err
	}
	if def == nil {
		return "", fmt.Errorf("definition %d: %w", definitionID, ErrNotFound)
	}
	existing, err := GetUserVote(conn, userID, definitionID)
	if err != nil {
		return "", err
	}

	adjust := func(v Vote, delta int) error {
		query := fmt.Sprintf("update definition set %[1]s = max(%[1]s + ?, 0) where definition_id = ?", v.counterColumn())
		return sqlitex.Exec(conn, query, nil, delta, definitionID)
	}

	switch existing {
	case vote:
		if err = sqlitex.Exec(conn, "delete from vote where user_id = ? and definition_id = ?", nil, userID, definitionID); err != nil {
			return "", err
		}
		if err = adjust(vote, -1); err != nil {
			return "", err
		}
		return VoteRemoved, nil
	case NoVote:
		query := "insert into vote (user_id, definition_id, vote, created_at) values (?, ?, ?, ?)"
		if err = sqlitex.Exec(conn, query, nil, userID, definitionID, int(vote), utcNow().Unix()); err != nil {
			return "", err
		}
		if err = adjust(vote, 1); err != nil {
			return "", err
		}
		return VoteAdded, nil
	default:
		query := "update vote set vote = ?, created_at = ? where user_id = ? and definition_id = ?"
		if err = sqlitex.Exec(conn, query, nil, int(vote), utcNow().Unix(), userID, definitionID); err != nil {
			return "", err
		}
		if err = adjust(existing, -1); err != nil {
			return "", err
		}
		if err = adjust(vote, 1); err != nil {
			return "", err
		}
		return VoteChanged, nil
	}
}
