package main

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/maxhully/slangdict"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// A row of the seed CSV: word,definition,example,tags. Tags are comma
// separated inside their cell.
type seedRow struct {
	line    int
	word    string
	body    string
	example string
	tags    []string
}

// Reads and parses seed rows.
//
// Returns two channels---one for the parsed rows, one for the errors.
func streamSeedRows(reader io.Reader) (<-chan seedRow, <-chan error) {
	rows := make(chan seedRow, 12)
	errChan := make(chan error, 1)
	go func() {
		defer close(rows)
		defer close(errChan)

		csvReader := csv.NewReader(reader)
		csvReader.FieldsPerRecord = -1
		csvReader.TrimLeadingSpace = true

		sawHeader := false
		for {
			record, err := csvReader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errChan <- err
				return
			}
			if !sawHeader && strings.EqualFold(record[0], "word") {
				sawHeader = true
				continue
			}
			line, _ := csvReader.FieldPos(0)
			if len(record) < 2 {
				errChan <- fmt.Errorf("line %d: expected at least word and definition, got %d fields", line, len(record))
				return
			}
			row := seedRow{line: line, word: record[0], body: record[1]}
			if len(record) > 2 {
				row.example = record[2]
			}
			if len(record) > 3 {
				row.tags = slangdict.ParseTags(record[3])
			}
			rows <- row
		}
	}()
	return rows, errChan
}

// openSeedSource opens a local file, or fetches the CSV if given a URL.
func openSeedSource(ctx context.Context, source string) (io.ReadCloser, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.Open(source)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s failed: %w", source, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", source, resp.Status)
	}
	return resp.Body, nil
}

// getOrCreateSeedUser returns the named user, creating it with a random
// password if it doesn't exist yet.
func getOrCreateSeedUser(conn *sqlite.Conn, name string) (*slangdict.User, error) {
	user, err := slangdict.GetUserByName(conn, name)
	if err != nil || user != nil {
		return user, err
	}
	password := make([]byte, 16)
	if _, err := rand.Read(password); err != nil {
		return nil, err
	}
	logger.Info("creating seed user", zap.String("user", name))
	return slangdict.CreateUser(conn, name, hex.EncodeToString(password))
}

// seedDefinitions stores every row in one savepoint. Rows missing a word or
// definition are skipped.
func seedDefinitions(conn *sqlite.Conn, user *slangdict.User, rows <-chan seedRow, errChan <-chan error) (created int, err error) {
	defer sqlitex.Save(conn)(&err)
	// Let the reader goroutine finish if we stop early
	defer func() {
		for range rows {
		}
	}()

	for row := range rows {
		if slangdict.NormalizeWord(row.word) == "" || strings.TrimSpace(row.body) == "" {
			logger.Warn("skipping incomplete row", zap.Int("line", row.line))
			continue
		}
		if _, err = slangdict.CreateDefinition(conn, user.UserID, row.word, row.body, row.example, row.tags); err != nil {
			return created, fmt.Errorf("line %d: %w", row.line, err)
		}
		created++
	}
	// Any read error is sent before rows is closed, so it's waiting here.
	for e := range errChan {
		err = errors.Join(err, e)
	}
	return created, err
}

var (
	seedCSV  string
	seedUser string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load definitions from a CSV file or URL",
	Long: `seed reads word,definition,example,tags rows (with an optional header)
and adds them as definitions by the given user, creating the user if needed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src, err := openSeedSource(ctx, seedCSV)
		if err != nil {
			return err
		}
		defer src.Close()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		conn := db.Get(ctx)
		if conn == nil {
			return ctx.Err()
		}
		defer db.Put(conn)

		user, err := getOrCreateSeedUser(conn, seedUser)
		if err != nil {
			return err
		}
		rows, errChan := streamSeedRows(src)
		created, err := seedDefinitions(conn, user, rows, errChan)
		if err != nil {
			return err
		}
		logger.Info("seeded definitions", zap.Int("created", created), zap.String("user", user.Name))
		fmt.Fprintf(cmd.OutOrStdout(), "added %d definitions\n", created)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedCSV, "csv", "", "Path or http(s) URL of the CSV to load")
	seedCmd.Flags().StringVar(&seedUser, "user", "slangbot", "Name of the user the definitions are added as")
	_ = seedCmd.MarkFlagRequired("csv")
}
