package slangdict

import (
	"cmp"
	"slices"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/james-bowman/sparse"
)

type RelatedWord struct {
	Word       string
	SharedTags int
}

func (w *RelatedWord) URL() string {
	return WordURL(w.Word)
}

// wordTagMatrix is a 0/1 incidence matrix with a row per word and a column per
// tag. Entry (i, j) is set when any definition of word i carries tag j.
type wordTagMatrix struct {
	words  []string
	index  map[string]int
	matrix *sparse.CSR
}

// loadWordTagMatrix loads only the columns for word's own tags, so every
// other row holds exactly the tags that word shares with it.
func loadWordTagMatrix(conn *sqlite.Conn, word string) (*wordTagMatrix, error) {
	type pair struct{ word, tag int }
	m := &wordTagMatrix{index: make(map[string]int)}
	tagIndex := make(map[int64]int)
	var pairs []pair
	query := `
		select distinct definition.word, definition_tag.tag_id
		from definition
		join definition_tag using (definition_id)
		where definition_tag.tag_id in (
			select tag_id
			from definition_tag
			join definition using (definition_id)
			where definition.word = ?
		)`
	collect := func(stmt *sqlite.Stmt) error {
		word, tag := stmt.ColumnText(0), stmt.ColumnInt64(1)
		w, ok := m.index[word]
		if !ok {
			w = len(m.words)
			m.index[word] = w
			m.words = append(m.words, word)
		}
		t, ok := tagIndex[tag]
		if !ok {
			t = len(tagIndex)
			tagIndex[tag] = t
		}
		pairs = append(pairs, pair{w, t})
		return nil
	}
	if err := sqlitex.Exec(conn, query, collect, word); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return m, nil
	}
	dok := sparse.NewDOK(len(m.words), len(tagIndex))
	for _, p := range pairs {
		dok.Set(p.word, p.tag, 1)
	}
	m.matrix = dok.ToCSR()
	return m, nil
}

// related counts, for every other word, how many of word's tags it shares.
func (m *wordTagMatrix) related(word string) map[int]int {
	target, ok := m.index[word]
	if !ok || m.matrix == nil {
		return nil
	}
	shared := make(map[int]int)
	m.matrix.DoNonZero(func(i, j int, v float64) {
		if i != target {
			shared[i]++
		}
	})
	return shared
}

// GetRelatedWords ranks other words by how many tags they share with word,
// breaking ties alphabetically.
func GetRelatedWords(conn *sqlite.Conn, word string, limit int) ([]RelatedWord, error) {
	word = NormalizeWord(word)
	m, err := loadWordTagMatrix(conn, word)
	if err != nil {
		return nil, err
	}
	shared := m.related(word)
	related := make([]RelatedWord, 0, len(shared))
	for i, n := range shared {
		related = append(related, RelatedWord{Word: m.words[i], SharedTags: n})
	}
	slices.SortFunc(related, func(a, b RelatedWord) int {
		if c := cmp.Compare(b.SharedTags, a.SharedTags); c != 0 {
			return c
		}
		return cmp.Compare(a.Word, b.Word)
	})
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}
