package main

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"crawshaw.io/sqlite"
	"github.com/gorilla/csrf"
	"github.com/maxhully/slangdict"
	"go.uber.org/zap"
)

const (
	// Max length for username and password
	maxNameLength = 256
	// Avatars bigger than this are rejected
	maxAvatarBytes = 1 << 20
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

type nameAndPasswordForm struct {
	User      *slangdict.User
	Name      string
	Password  string
	CSRFField template.HTML
	Errors    map[string]string
}

func newNameAndPasswordForm(r *http.Request) nameAndPasswordForm {
	return nameAndPasswordForm{
		User:      slangdict.CurrentUser(r.Context()),
		CSRFField: csrf.TemplateField(r),
		Errors:    make(map[string]string),
	}
}

func (f *nameAndPasswordForm) ParseFromBody(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	f.Name = strings.TrimSpace(r.PostForm.Get("name"))
	f.Password = r.PostForm.Get("password")
	return nil
}

type SignUpForm struct {
	nameAndPasswordForm
}

func (f *SignUpForm) Validate(conn *sqlite.Conn) error {
	if len(f.Name) == 0 {
		f.Errors["name"] = "Name is required"
	} else if len(f.Name) > maxNameLength {
		f.Errors["name"] = fmt.Sprintf("Name is too long (max %d characters)", maxNameLength)
	} else if strings.ContainsFunc(f.Name, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '/' }) {
		f.Errors["name"] = "Name must not have any spaces in it"
	} else {
		existingUserWithName, err := slangdict.GetUserByName(conn, f.Name)
		if err != nil {
			return err
		}
		if existingUserWithName != nil {
			f.Errors["name"] = "A user with this name already exists"
		}
	}

	if len(f.Password) == 0 {
		f.Errors["password"] = "Password is required"
	} else if len(f.Password) > maxNameLength {
		f.Errors["password"] = fmt.Sprintf("Password is too long (max %d characters)", maxNameLength)
	}
	return nil
}

func (app *App) startSession(w http.ResponseWriter, r *http.Request, conn *sqlite.Conn, user *slangdict.User) bool {
	session, err := slangdict.CreateUserSession(conn, user.UserID)
	if err != nil {
		app.errorResponse(w, r, err)
		return false
	}
	slangdict.SaveSessionInCookie(w, session)
	return true
}

func (app *App) SignUpUser(w http.ResponseWriter, r *http.Request) {
	form := &SignUpForm{newNameAndPasswordForm(r)}
	if r.Method != http.MethodPost {
		app.RenderTemplate(w, r, "signup.html", form)
		return
	}
	if err := form.ParseFromBody(r); err != nil {
		app.badRequest(w, r, err)
		return
	}

	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	if err := form.Validate(conn); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if len(form.Errors) > 0 {
		app.renderTemplateStatus(w, r, http.StatusUnprocessableEntity, "signup.html", form)
		return
	}

	user, err := slangdict.CreateUser(conn, form.Name, form.Password)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.log.Info("user signed up", zap.String("user", user.Name))
	if !app.startSession(w, r, conn, user) {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type LogInForm struct {
	nameAndPasswordForm
}

// check writes problems onto the form. The returned user is nil unless the
// name and password are both right.
func (f *LogInForm) check(conn *sqlite.Conn) (*slangdict.User, error) {
	user, hashAndSalt, err := slangdict.GetUserPassword(conn, f.Name)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Usernames are public on this site anyway.
		f.Errors["name"] = "There is no user with this name"
		return nil, nil
	}
	if !slangdict.CheckPassword([]byte(f.Password), *hashAndSalt) {
		f.Errors["password"] = "This password is incorrect"
		return nil, nil
	}
	return user, nil
}

func (app *App) LogIn(w http.ResponseWriter, r *http.Request) {
	form := &LogInForm{newNameAndPasswordForm(r)}
	if r.Method != http.MethodPost {
		app.RenderTemplate(w, r, "login.html", form)
		return
	}
	if err := form.ParseFromBody(r); err != nil {
		app.badRequest(w, r, err)
		return
	}

	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	user, err := form.check(conn)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if user == nil {
		app.renderTemplateStatus(w, r, http.StatusUnprocessableEntity, "login.html", form)
		return
	}
	if !app.startSession(w, r, conn, user) {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (app *App) LogOut(w http.ResponseWriter, r *http.Request) {
	sessionPublicID, err := slangdict.SessionPublicIDFromRequest(r)
	if err == nil && sessionPublicID != nil {
		conn := app.getConn(w, r)
		if conn == nil {
			return
		}
		err = slangdict.DeleteUserSession(conn, sessionPublicID)
		app.db.Put(conn)
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
	}
	slangdict.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type updateProfileForm struct {
	DisplayName string
	Bio         string
	Errors      map[string]string
}

type updateProfilePage struct {
	page
	Form updateProfileForm
}

func (f *updateProfileForm) Validate() {
	if len(f.DisplayName) > maxNameLength {
		f.Errors["display_name"] = fmt.Sprintf("Display name is too long (max %d characters)", maxNameLength)
	}
	if len(f.Bio) > maxNameLength {
		f.Errors["bio"] = fmt.Sprintf("Bio is too long (max %d characters)", maxNameLength)
	}
}

// readAvatar returns nil contents when no file was sent.
func readAvatar(r *http.Request) ([]byte, string, error) {
	file, _, err := r.FormFile("avatar")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	defer file.Close()
	contents, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(contents) == 0 {
		return nil, "", nil
	}
	if len(contents) > maxAvatarBytes {
		return nil, "Avatar is too big (max 1MB)", nil
	}
	if !bytes.HasPrefix(contents, pngMagic) {
		return nil, "Avatar must be a PNG", nil
	}
	return contents, "", nil
}

func (app *App) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := slangdict.CurrentUser(r.Context())
	if user == nil {
		redirectToLogin(w, r)
		return
	}
	p := &updateProfilePage{
		page: newPage(r),
		Form: updateProfileForm{
			DisplayName: user.DisplayName,
			Bio:         user.Bio,
			Errors:      make(map[string]string),
		},
	}
	if r.Method == http.MethodGet {
		app.RenderTemplate(w, r, "profile.html", p)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 2*maxAvatarBytes)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		app.badRequest(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		app.badRequest(w, r, err)
		return
	}
	p.Form.DisplayName = strings.TrimSpace(r.PostForm.Get("display_name"))
	p.Form.Bio = strings.TrimSpace(r.PostForm.Get("bio"))
	p.Form.Validate()

	var avatar []byte
	if r.MultipartForm != nil {
		var problem string
		var err error
		if avatar, problem, err = readAvatar(r); err != nil {
			app.badRequest(w, r, err)
			return
		}
		if problem != "" {
			p.Form.Errors["avatar"] = problem
		}
	}
	if len(p.Form.Errors) > 0 {
		app.renderTemplateStatus(w, r, http.StatusUnprocessableEntity, "profile.html", p)
		return
	}

	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	var uploadID int64
	if avatar != nil {
		var err error
		if uploadID, err = slangdict.SaveUpload(conn, "image/png", avatar); err != nil {
			app.errorResponse(w, r, err)
			return
		}
	}
	err := slangdict.UpdateUserProfile(conn, user.Name, p.Form.DisplayName, p.Form.Bio, uploadID)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	http.Redirect(w, r, user.URL(), http.StatusSeeOther)
}

func (app *App) ServeUpload(w http.ResponseWriter, r *http.Request) {
	stem, ext, ok := strings.Cut(r.PathValue("upload_id"), ".")
	if !ok || strings.ToLower(ext) != "png" {
		http.NotFound(w, r)
		return
	}
	uploadID, err := strconv.ParseInt(stem, 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	conn := app.getConn(w, r)
	if conn == nil {
		return
	}
	defer app.db.Put(conn)

	blob, contentType, err := slangdict.OpenUploadContents(conn, uploadID)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	defer blob.Close()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, blob); err != nil {
		app.log.Warn("copying upload", zap.Int64("upload_id", uploadID), zap.Error(err))
	}
}
