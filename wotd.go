package slangdict

import (
	"math/rand/v2"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

// The word of the day is picked at random from this many top definitions.
const wordOfTheDayPool = 20

func dayKey(day time.Time) string {
	return day.UTC().Format(time.DateOnly)
}

func getWordOfTheDayID(conn *sqlite.Conn, day string) (int64, error) {
	var definitionID int64
	collect := func(stmt *sqlite.Stmt) error {
		definitionID = stmt.ColumnInt64(0)
		return nil
	}
	err := sqlitex.Exec(conn, "select definition_id from word_of_the_day where day = ?", collect, day)
	return definitionID, err
}

// GetWordOfTheDay returns the definition picked for today's date, picking and
// storing one first if needed. It returns nil when there are no definitions.
func GetWordOfTheDay(conn *sqlite.Conn, today time.Time) (def *Definition, err error) {
	defer sqlitex.Save(conn)(&err)

	day := dayKey(today)
	definitionID, err := getWordOfTheDayID(conn, day)
	if err != nil {
		return nil, err
	}
	if definitionID == 0 {
		var candidates []int64
		collect := func(stmt *sqlite.Stmt) error {
			candidates = append(candidates, stmt.ColumnInt64(0))
			return nil
		}
		query := "select definition_id from definition order by upvotes desc, definition_id limit ?"
		if err = sqlitex.Exec(conn, query, collect, wordOfTheDayPool); err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}
		definitionID = candidates[rand.IntN(len(candidates))]
		query = "insert into word_of_the_day (day, definition_id) values (?, ?) on conflict (day) do nothing"
		if err = sqlitex.Exec(conn, query, nil, day, definitionID); err != nil {
			return nil, err
		}
		// Someone else may have picked first.
		if definitionID, err = getWordOfTheDayID(conn, day); err != nil {
			return nil, err
		}
	}
	return GetDefinition(conn, definitionID)
}
