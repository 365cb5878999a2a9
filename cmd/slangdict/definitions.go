package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/maxhully/slangdict"
	"go.uber.org/zap"
)

const (
	maxWordLength    = 100
	maxBodyLength    = 2000
	maxExampleLength = 1000
	maxTags          = 10
)

type definitionForm struct {
	Word    string
	Body    string
	Example string
	// As typed, comma separated
	Tags   string
	Errors map[string]string
}

func newDefinitionForm() definitionForm {
	return definitionForm{Errors: make(map[string]string)}
}

func (f *definitionForm) ParseFromBody(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	f.Word = slangdict.NormalizeWord(r.PostForm.Get("word"))
	f.Body = strings.TrimSpace(r.PostForm.Get("definition"))
	f.Example = strings.TrimSpace(r.PostForm.Get("example"))
	f.Tags = strings.TrimSpace(r.PostForm.Get("tags"))
	return nil
}

func tooLong(what string, s string, limit int) string {
	if utf8.RuneCountInString(s) > limit {
		return fmt.Sprintf("%s is too long (max %d characters)", what, limit)
	}
	return ""
}

// Validate checks everything but the word, which only matters when creating.
func (f *definitionForm) Validate() {
	if f.Body == "" {
		f.Errors["definition"] = "Definition is required"
	} else if msg := tooLong("Definition", f.Body, maxBodyLength); msg != "" {
		f.Errors["definition"] = msg
	}
	if msg := tooLong("Example", f.Example, maxExampleLength); msg != "" {
		f.Errors["example"] = msg
	}
	if len(slangdict.ParseTags(f.Tags)) > maxTags {
		f.Errors["tags"] = fmt.Sprintf("Too many tags (max %d)", maxTags)
	}
}

func (f *definitionForm) ValidateWord() {
	if f.Word == "" {
		f.Errors["word"] = "Word is required"
	} else if msg := tooLong("Word", f.Word, maxWordLength); msg != "" {
		f.Errors["word"] = msg
	}
}

type submitPage struct {
	page
	Form definitionForm
}

func (app *App) SubmitDefinition(w http.ResponseWriter, r *http.Request) {
	user := slangdict.CurrentUser(r.Context())
	if user == nil {
		redirectToLogin(w, r)
		return
	}
	p := &submitPage{page: newPage(r), Form: newDefinitionForm()}
	if r.Method != http.MethodPost {
		// Links from empty define pages prefill the word
		p.Form.Word = slangdict.NormalizeWord(r.URL.Query().Get("word"))
		app.RenderTemplate(w, r, "submit.html", p)
		return
	}
	if err := p.Form.ParseFromBody(r); err != nil {
		app.badRequest(w, r, err)
		return
	}
	p.Form.ValidateWord()
	p.Form.Validate()
	if len(p.Form.Errors) > 0 {
		app.renderTemplateStatus(w, r, http.StatusUnprocessableEntity, "submit.html", p)
		return
	}

	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	def, err := slangdict.CreateDefinition(conn, user.UserID, p.Form.Word, p.Form.Body, p.Form.Example, slangdict.ParseTags(p.Form.Tags))
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	// New words should link right away
	app.linker.Invalidate()
	app.log.Info("definition created",
		zap.Int64("definition_id", def.DefinitionID),
		zap.String("word", def.Word),
		zap.String("user", user.Name))
	http.Redirect(w, r, def.URL(), http.StatusSeeOther)
}

func definitionIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

type editPage struct {
	page
	Definition *slangdict.Definition
	Form       definitionForm
}

func (app *App) EditDefinition(w http.ResponseWriter, r *http.Request) {
	user := slangdict.CurrentUser(r.Context())
	if user == nil {
		redirectToLogin(w, r)
		return
	}
	definitionID, ok := definitionIDFromPath(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	def, err := slangdict.GetDefinition(conn, definitionID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if def == nil {
		http.NotFound(w, r)
		return
	}
	if def.UserID != user.UserID {
		http.Error(w, "403 Forbidden", http.StatusForbidden)
		return
	}

	p := &editPage{page: newPage(r), Definition: def, Form: newDefinitionForm()}
	if r.Method != http.MethodPost {
		p.Form.Word = def.Word
		p.Form.Body = def.Body
		p.Form.Example = def.Example
		p.Form.Tags = strings.Join(def.Tags, ", ")
		app.RenderTemplate(w, r, "edit.html", p)
		return
	}
	if err := p.Form.ParseFromBody(r); err != nil {
		app.badRequest(w, r, err)
		return
	}
	if p.Form.Validate(); len(p.Form.Errors) > 0 {
		app.renderTemplateStatus(w, r, http.StatusUnprocessableEntity, "edit.html", p)
		return
	}
	err = slangdict.UpdateDefinition(conn, user.UserID, definitionID, p.Form.Body, p.Form.Example, slangdict.ParseTags(p.Form.Tags))
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	app.linker.Invalidate()
	http.Redirect(w, r, def.URL(), http.StatusSeeOther)
}

func (app *App) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	user := slangdict.CurrentUser(r.Context())
	if user == nil {
		redirectToLogin(w, r)
		return
	}
	definitionID, ok := definitionIDFromPath(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	def, err := slangdict.GetDefinition(conn, definitionID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if def == nil {
		http.NotFound(w, r)
		return
	}
	if err := slangdict.DeleteDefinition(conn, user.UserID, definitionID); err != nil {
		app.storeError(w, r, err)
		return
	}
	// The word may have just lost its last definition
	app.linker.Invalidate()
	app.log.Info("definition deleted", zap.Int64("definition_id", definitionID), zap.String("user", user.Name))
	http.Redirect(w, r, def.WordURL(), http.StatusSeeOther)
}

func (app *App) Vote(w http.ResponseWriter, r *http.Request) {
	user := slangdict.CurrentUser(r.Context())
	if user == nil {
		redirectToLogin(w, r)
		return
	}
	definitionID, ok := definitionIDFromPath(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		app.badRequest(w, r, err)
		return
	}
	vote, err := slangdict.ParseVote(r.PostForm.Get("vote"))
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	result, err := slangdict.VoteOnDefinition(conn, user.UserID, definitionID, vote)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	app.log.Debug("vote",
		zap.Int64("definition_id", definitionID),
		zap.Stringer("vote", vote),
		zap.String("result", string(result)))

	def, err := slangdict.GetDefinition(conn, definitionID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	http.Redirect(w, r, def.URL(), http.StatusSeeOther)
}
