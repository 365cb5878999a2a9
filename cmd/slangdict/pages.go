package main

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/maxhully/slangdict"
	"github.com/maxhully/slangdict/linker"
	"golang.org/x/sync/errgroup"
)

const (
	popularTermsLimit = 12
	relatedWordsLimit = 8
	randomLimit       = 5
	tagPageLimit      = 50
	userPageLimit     = 50
)

// getConn writes a 503 and returns nil if the request is cancelled before a
// connection frees up.
func (app *App) getConn(w http.ResponseWriter, r *http.Request) *sqlite.Conn {
	conn := app.db.Get(r.Context())
	if conn == nil {
		http.Error(w, "503 Service Unavailable", http.StatusServiceUnavailable)
	}
	return conn
}

func (app *App) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn := app.db.Get(ctx)
	if conn == nil {
		return fmt.Errorf("couldn't get a connection: %v", ctx.Err())
	}
	defer app.db.Put(conn)
	return fn(conn)
}

// vocabulary returns the linker's snapshot. Handlers call it before taking
// their connection: a cold cache refetches on a connection of its own, and
// waiting for it while holding one can starve the pool.
func (app *App) vocabulary(r *http.Request) *linker.Snapshot {
	return app.linker.Snapshot(r.Context())
}

// linkDefinitions runs the definitions through the term linker and attaches
// the current user's votes.
func (app *App) linkDefinitions(conn *sqlite.Conn, snap *linker.Snapshot, user *slangdict.User, defs []slangdict.Definition) ([]slangdict.LinkedDefinition, error) {
	var votes map[int64]slangdict.Vote
	if user != nil {
		var err error
		if votes, err = slangdict.GetUserVotes(conn, user.UserID, defs); err != nil {
			return nil, err
		}
	}
	return slangdict.LinkDefinitions(snap, defs, votes), nil
}

type homepage struct {
	page
	// Zero or one definitions
	WordOfTheDay []slangdict.LinkedDefinition
	PopularTerms []slangdict.SlangTerm
	Definitions  []slangdict.LinkedDefinition
	PrevPageURL  string
	NextPageURL  string
}

func pageNumber(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Homepage loads the word of the day, the popular terms and the recent
// definitions at the same time, each on its own connection.
func (app *App) Homepage(w http.ResponseWriter, r *http.Request) {
	p := newPage(r)
	pageNum := pageNumber(r)
	var (
		wotd    *slangdict.Definition
		popular []slangdict.SlangTerm
		recent  []slangdict.Definition
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return app.withConn(ctx, func(conn *sqlite.Conn) error {
			var err error
			wotd, err = slangdict.GetWordOfTheDay(conn, time.Now())
			return err
		})
	})
	g.Go(func() error {
		return app.withConn(ctx, func(conn *sqlite.Conn) error {
			var err error
			popular, err = slangdict.GetPopularSlangTerms(conn, popularTermsLimit)
			return err
		})
	})
	g.Go(func() error {
		return app.withConn(ctx, func(conn *sqlite.Conn) error {
			var err error
			// One extra to know whether there is a next page
			recent, err = slangdict.GetRecentDefinitions(conn, app.pageSize+1, (pageNum-1)*app.pageSize)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	hp := &homepage{page: p, PopularTerms: popular}
	if len(recent) > app.pageSize {
		recent = recent[:app.pageSize]
		hp.NextPageURL = fmt.Sprintf("/?page=%d", pageNum+1)
	}
	if pageNum > 1 {
		hp.PrevPageURL = fmt.Sprintf("/?page=%d", pageNum-1)
	}
	shown := recent
	if wotd != nil {
		shown = append([]slangdict.Definition{*wotd}, recent...)
	}
	snap := app.vocabulary(r)
	err := app.withConn(r.Context(), func(conn *sqlite.Conn) error {
		linked, err := app.linkDefinitions(conn, snap, p.User, shown)
		if err != nil {
			return err
		}
		if wotd != nil {
			hp.WordOfTheDay, linked = linked[:1], linked[1:]
		}
		hp.Definitions = linked
		return nil
	})
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.RenderTemplate(w, r, "index.html", hp)
}

type definePage struct {
	page
	Word        string
	Definitions []slangdict.LinkedDefinition
	Related     []slangdict.RelatedWord
}

func (app *App) Define(w http.ResponseWriter, r *http.Request) {
	snap := app.vocabulary(r)
	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	p := &definePage{page: newPage(r), Word: slangdict.NormalizeWord(r.PathValue("word"))}
	defs, err := slangdict.GetDefinitionsByWord(conn, p.Word)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if p.Definitions, err = app.linkDefinitions(conn, snap, p.User, defs); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if len(defs) == 0 {
		app.renderTemplateStatus(w, r, http.StatusNotFound, "define.html", p)
		return
	}
	if p.Related, err = slangdict.GetRelatedWords(conn, p.Word, relatedWordsLimit); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.RenderTemplate(w, r, "define.html", p)
}

type searchPage struct {
	page
	Query       string
	TooShort    bool
	Tags        []string
	Definitions []slangdict.LinkedDefinition
}

func (app *App) Search(w http.ResponseWriter, r *http.Request) {
	p := &searchPage{page: newPage(r), Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if len([]rune(p.Query)) < 2 {
		p.TooShort = true
		app.RenderTemplate(w, r, "search.html", p)
		return
	}

	snap := app.vocabulary(r)
	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	defs, err := slangdict.SearchDefinitions(conn, p.Query)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if p.Tags, err = slangdict.SearchTags(conn, p.Query); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if p.Definitions, err = app.linkDefinitions(conn, snap, p.User, defs); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.RenderTemplate(w, r, "search.html", p)
}

type browsePage struct {
	page
	Letter  string
	Letters []string
	Terms   []slangdict.SlangTerm
	AllTags []string
}

func (app *App) Browse(w http.ResponseWriter, r *http.Request) {
	p := &browsePage{
		page:    newPage(r),
		Letter:  strings.ToLower(r.PathValue("letter")),
		Letters: slangdict.BrowseLetters,
	}
	if p.Letter != "" && !slices.Contains(slangdict.BrowseLetters, p.Letter) {
		http.NotFound(w, r)
		return
	}

	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	var err error
	if p.Letter == "" {
		p.Terms, err = slangdict.GetSlangTerms(conn)
		if err == nil {
			p.AllTags, err = slangdict.GetAllTags(conn)
		}
	} else {
		p.Terms, err = slangdict.GetSlangTermsByLetter(conn, p.Letter)
	}
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.RenderTemplate(w, r, "browse.html", p)
}

type definitionListPage struct {
	page
	Tag         string
	PageUser    *slangdict.User
	Definitions []slangdict.LinkedDefinition
}

func (app *App) Tag(w http.ResponseWriter, r *http.Request) {
	snap := app.vocabulary(r)
	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	p := &definitionListPage{page: newPage(r), Tag: slangdict.NormalizeWord(r.PathValue("tag"))}
	defs, err := slangdict.GetDefinitionsByTag(conn, p.Tag, tagPageLimit)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if p.Definitions, err = app.linkDefinitions(conn, snap, p.User, defs); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.RenderTemplate(w, r, "tag.html", p)
}

func (app *App) Random(w http.ResponseWriter, r *http.Request) {
	snap := app.vocabulary(r)
	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	p := &definitionListPage{page: newPage(r)}
	defs, err := slangdict.GetRandomDefinitions(conn, randomLimit)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if p.Definitions, err = app.linkDefinitions(conn, snap, p.User, defs); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	app.RenderTemplate(w, r, "random.html", p)
}

func (app *App) ShowUser(w http.ResponseWriter, r *http.Request) {
	snap := app.vocabulary(r)
	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	pageUser, err := slangdict.GetUserByName(conn, r.PathValue("username"))
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if pageUser == nil {
		http.NotFound(w, r)
		return
	}
	p := &definitionListPage{page: newPage(r), PageUser: pageUser}
	defs, err := slangdict.GetDefinitionsByUser(conn, pageUser.UserID, userPageLimit)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if p.Definitions, err = app.linkDefinitions(conn, snap, p.User, defs); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.RenderTemplate(w, r, "user.html", p)
}
