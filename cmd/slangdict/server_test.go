package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"testing"
	"time"

	"crawshaw.io/sqlite/sqlitex"
	"github.com/maxhully/slangdict"
	"github.com/maxhully/slangdict/linker"
	"github.com/maxhully/slangdict/memeface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	// The CLI commands log through the package logger.
	logger = zap.NewNop()
	m.Run()
}

func setUpTestApp(t *testing.T) (*App, error) {
	dir := t.TempDir()
	uri := path.Join(dir, "temptest.db")
	db, err := slangdict.NewDB(uri, 10)
	if err != nil {
		return nil, err
	}
	return NewApp(db, zap.NewNop(), slangdict.DefaultConfig())
}

// testHandler is the routes plus the user context, without CSRF.
func testHandler(t *testing.T, app *App) http.Handler {
	return slangdict.WithUserContextMiddleware(app.db, app.log, app.Routes(t.TempDir()))
}

func checkBodyContains(t *testing.T, resp *http.Response, substr string) {
	defer resp.Body.Close()
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(bodyBytes)

	if !strings.Contains(body, substr) {
		t.Errorf("expected %#v in the body:\n%s", substr, body)
	}
}

// createUserSession makes a user and returns a cookie that logs them in.
func createUserSession(t *testing.T, app *App, name string) (*slangdict.User, *http.Cookie) {
	conn := app.db.Get(t.Context())
	defer app.db.Put(conn)
	user, err := slangdict.CreateUser(conn, name, "secretpassword123")
	require.NoError(t, err)
	sess, err := slangdict.CreateUserSession(conn, user.UserID)
	require.NoError(t, err)
	return user, sess.ToCookie()
}

func createDefinition(t *testing.T, app *App, user *slangdict.User, word, body string, tags ...string) *slangdict.Definition {
	conn := app.db.Get(t.Context())
	defer app.db.Put(conn)
	def, err := slangdict.CreateDefinition(conn, user.UserID, word, body, "", tags)
	require.NoError(t, err)
	app.linker.Invalidate()
	return def
}

func postForm(target string, form url.Values, cookie *http.Cookie) *http.Request {
	r, _ := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		r.AddCookie(cookie)
	}
	return r
}

func TestHomepage(t *testing.T) {
	app, err := setUpTestApp(t)
	if err != nil {
		t.Fatal(err)
	}
	defer app.db.Close()

	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	app.Homepage(w, r)

	result := w.Result()
	if result.StatusCode != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", result.StatusCode)
	}
	checkBodyContains(t, result, "Hello, stranger!")
}

func TestHomepageShowsWordOfTheDayAndPages(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	app.pageSize = 2

	user, cookie := createUserSession(t, app, "max")
	for _, word := range []string{"rizz", "mid", "bussin"} {
		createDefinition(t, app, user, word, "a definition of "+word)
	}

	h := testHandler(t, app)
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	result := w.Result()
	assert.Equal(t, http.StatusOK, result.StatusCode)
	body, _ := io.ReadAll(result.Body)
	assert.Contains(t, string(body), "Word of the day")
	assert.Contains(t, string(body), "Hey max")
	assert.Contains(t, string(body), `href="/?page=2"`)

	r, _ = http.NewRequest(http.MethodGet, "/?page=2", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	result = w.Result()
	assert.Equal(t, http.StatusOK, result.StatusCode)
	checkBodyContains(t, result, `href="/?page=1"`)
}

func TestSignUpUser(t *testing.T) {
	app, err := setUpTestApp(t)
	if err != nil {
		t.Fatal(err)
	}
	defer app.db.Close()

	r, _ := http.NewRequest(http.MethodGet, "/signup", nil)
	w := httptest.NewRecorder()
	app.SignUpUser(w, r)

	result := w.Result()
	if result.StatusCode != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", result.StatusCode)
	}

	form := url.Values{}
	form.Add("name", "Max")
	form.Add("password", "secretpassword123")

	w = httptest.NewRecorder()
	app.SignUpUser(w, postForm("/signup", form, nil))

	result = w.Result()
	if result.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303 See Other, got %d", result.StatusCode)
	}

	conn := app.db.Get(t.Context())
	defer app.db.Put(conn)
	user, err := slangdict.GetUserByName(conn, "Max")
	assert.Nil(t, err)
	assert.Equal(t, "Max", user.Name)
	assert.NotEqual(t, int64(0), user.AvatarUploadID, "Expected default avatar to be generated")
}

func TestSignUpUserValidation(t *testing.T) {
	var testCases = []struct {
		name                 string
		expectedErrorMessage string
	}{
		{"", "Name is required"},
		{"max hully", "Name must not have any spaces in it"},
		{"max", "A user with this name already exists"},
		{strings.Repeat("x", 257), "Name is too long"},
	}

	for _, testCase := range testCases {
		t.Run(fmt.Sprintf("%.20q", testCase.name), func(t *testing.T) {
			app, err := setUpTestApp(t)
			if err != nil {
				t.Fatal(err)
			}
			defer app.db.Close()

			// So that the user already exists
			conn := app.db.Get(t.Context())
			slangdict.CreateUser(conn, "max", "secretpassword123")
			app.db.Put(conn)

			form := url.Values{}
			form.Add("name", testCase.name)
			form.Add("password", "secretpassword456")

			w := httptest.NewRecorder()
			app.SignUpUser(w, postForm("/signup", form, nil))

			result := w.Result()
			assert.Equal(t, http.StatusUnprocessableEntity, result.StatusCode)
			checkBodyContains(t, result, testCase.expectedErrorMessage)
		})
	}
}

func TestLogInUser(t *testing.T) {
	var testCases = []struct {
		name                 string
		password             string
		expectedStatus       int
		expectedErrorMessage string
	}{
		{"max", "wrongpassword", 422, "password is incorrect"},
		{"notmax", "secretpassword123", 422, "no user with this name"},
		{"max", "secretpassword123", 303, ""},
	}

	for _, testCase := range testCases {
		t.Run(fmt.Sprintf("%v", testCase), func(t *testing.T) {
			app, err := setUpTestApp(t)
			if err != nil {
				t.Fatal(err)
			}
			defer app.db.Close()

			{
				conn := app.db.Get(t.Context())
				slangdict.CreateUser(conn, "max", "secretpassword123")
				app.db.Put(conn)
			}

			form := url.Values{}
			form.Add("name", testCase.name)
			form.Add("password", testCase.password)

			w := httptest.NewRecorder()
			app.LogIn(w, postForm("/login", form, nil))

			result := w.Result()
			if result.StatusCode != testCase.expectedStatus {
				t.Fatalf("expected %d, got %d", testCase.expectedStatus, result.StatusCode)
			}
			if len(testCase.expectedErrorMessage) > 0 {
				checkBodyContains(t, result, testCase.expectedErrorMessage)
			} else {
				cookies := w.Result().Cookies()
				if len(cookies) != 1 {
					t.Fatalf("expected 1 cookie set; got %d", len(cookies))
				}
				if cookies[0].Name != "id" {
					t.Errorf("expected cookie named %#v; got %#v", "id", cookies[0].Name)
				}
			}
		})
	}
}

func TestLogOutEndsSession(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()

	_, cookie := createUserSession(t, app, "max")
	h := testHandler(t, app)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, postForm("/logout", url.Values{}, cookie))
	assert.Equal(t, http.StatusSeeOther, w.Result().StatusCode)

	// The old cookie no longer logs anyone in
	r, _ := http.NewRequest(http.MethodGet, "/profile", nil)
	r.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusSeeOther, w.Result().StatusCode)
	assert.Equal(t, "/login", w.Result().Header.Get("Location"))
}

func TestUpdateProfile(t *testing.T) {
	app, err := setUpTestApp(t)
	assert.Nil(t, err)
	defer app.db.Close()

	user, cookie := createUserSession(t, app, "max")
	originalAvatarUploadID := user.AvatarUploadID
	assert.NotEqual(t, int64(0), originalAvatarUploadID)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	mw.WriteField("bio", "Hello!")
	mw.Close()

	h := slangdict.WithUserContextMiddleware(app.db, app.log, http.HandlerFunc(app.UpdateProfile))

	// First do a GET
	r, _ := http.NewRequest(http.MethodGet, "/profile", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	// Then POST
	r, _ = http.NewRequest(http.MethodPost, "/profile", body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r.AddCookie(cookie)
	w = httptest.NewRecorder()

	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusSeeOther, w.Result().StatusCode)

	conn := app.db.Get(t.Context())
	defer app.db.Put(conn)
	user, err = slangdict.GetUserByName(conn, "max")
	assert.Nil(t, err)
	assert.Equal(t, "Hello!", user.Bio)
	// We shouldn't change the avatar, since we didn't upload anything
	assert.Equal(t, originalAvatarUploadID, user.AvatarUploadID)
}

func postAvatar(t *testing.T, h http.Handler, cookie *http.Cookie, contents []byte) *http.Response {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	fw.Write(contents)
	mw.Close()

	r, _ := http.NewRequest(http.MethodPost, "/profile", body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Result()
}

func TestUpdateProfileAvatar(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()

	user, cookie := createUserSession(t, app, "max")
	h := testHandler(t, app)

	result := postAvatar(t, h, cookie, []byte("GIF89a not a png"))
	assert.Equal(t, http.StatusUnprocessableEntity, result.StatusCode)
	checkBodyContains(t, result, "Avatar must be a PNG")

	png := new(bytes.Buffer)
	require.NoError(t, memeface.GeneratePNG(png, 80, 7))
	result = postAvatar(t, h, cookie, png.Bytes())
	assert.Equal(t, http.StatusSeeOther, result.StatusCode)

	conn := app.db.Get(t.Context())
	updated, err := slangdict.GetUserByName(conn, "max")
	app.db.Put(conn)
	require.NoError(t, err)
	assert.NotEqual(t, user.AvatarUploadID, updated.AvatarUploadID)

	r, _ := http.NewRequest(http.MethodGet, updated.AvatarURL(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Equal(t, "image/png", w.Result().Header.Get("Content-Type"))
	assert.Equal(t, png.Bytes(), w.Body.Bytes())
}

func TestServeUploadNotFound(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	h := testHandler(t, app)

	for _, target := range []string{"/uploads/999.png", "/uploads/1.gif", "/uploads/abc.png"} {
		r, _ := http.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNotFound, w.Result().StatusCode, target)
	}
}

func TestSubmitDefinitionRequiresLogin(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()

	w := httptest.NewRecorder()
	testHandler(t, app).ServeHTTP(w, postForm("/submit", url.Values{"word": {"rizz"}}, nil))
	assert.Equal(t, http.StatusSeeOther, w.Result().StatusCode)
	assert.Equal(t, "/login", w.Result().Header.Get("Location"))
}

func TestSubmitDefinitionValidation(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	_, cookie := createUserSession(t, app, "max")
	h := testHandler(t, app)

	var testCases = []struct {
		form                 url.Values
		expectedErrorMessage string
	}{
		{url.Values{"definition": {"charm"}}, "Word is required"},
		{url.Values{"word": {"rizz"}}, "Definition is required"},
		{url.Values{"word": {strings.Repeat("a", 101)}, "definition": {"x"}}, "Word is too long"},
		{url.Values{"word": {"rizz"}, "definition": {"charm"}, "tags": {"a,b,c,d,e,f,g,h,i,j,k"}}, "Too many tags"},
	}
	for _, testCase := range testCases {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, postForm("/submit", testCase.form, cookie))
		result := w.Result()
		assert.Equal(t, http.StatusUnprocessableEntity, result.StatusCode)
		checkBodyContains(t, result, testCase.expectedErrorMessage)
	}
}

func TestSubmittedWordsLinkInOtherDefinitions(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	_, cookie := createUserSession(t, app, "max")
	h := testHandler(t, app)

	form := url.Values{
		"word":       {"Rizz"},
		"definition": {"Charm, the ability to attract someone."},
		"tags":       {"dating, compliments"},
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, postForm("/submit", form, cookie))
	result := w.Result()
	require.Equal(t, http.StatusSeeOther, result.StatusCode)
	assert.True(t, strings.HasPrefix(result.Header.Get("Location"), "/define/rizz#d"))

	// Warm the vocabulary before the next word exists
	r, _ := http.NewRequest(http.MethodGet, "/define/rizz", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	form = url.Values{
		"word":       {"rizzler"},
		"definition": {"Someone with a lot of Rizz."},
		"example":    {"no cap, he is the rizzler"},
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, postForm("/submit", form, cookie))
	require.Equal(t, http.StatusSeeOther, w.Result().StatusCode)

	r, _ = http.NewRequest(http.MethodGet, "/define/rizzler", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	result = w.Result()
	assert.Equal(t, http.StatusOK, result.StatusCode)
	body, _ := io.ReadAll(result.Body)
	assert.Contains(t, string(body), `Someone with a lot of <a class="term" href="/define/rizz">Rizz</a>.`)
	assert.Contains(t, string(body), `he is the <a class="term" href="/define/rizzler">rizzler</a>`)

	// The JSON endpoint sees the new word too
	r, _ = http.NewRequest(http.MethodGet, "/api/link?text="+url.QueryEscape("what a rizzler"), nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	var resp linkAPIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, []linker.Segment{{Text: "what a "}, {Text: "rizzler", Key: "rizzler"}}, resp.Segments)
}

func TestDefineUnknownWord(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()

	r, _ := http.NewRequest(http.MethodGet, "/define/skibidi", nil)
	w := httptest.NewRecorder()
	testHandler(t, app).ServeHTTP(w, r)
	result := w.Result()
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	checkBodyContains(t, result, "Nobody has defined")
}

func TestDefineShowsRelatedWords(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	user, _ := createUserSession(t, app, "max")
	createDefinition(t, app, user, "rizz", "charm", "dating")
	createDefinition(t, app, user, "gyat", "an exclamation", "dating")

	r, _ := http.NewRequest(http.MethodGet, "/define/rizz", nil)
	w := httptest.NewRecorder()
	testHandler(t, app).ServeHTTP(w, r)
	result := w.Result()
	assert.Equal(t, http.StatusOK, result.StatusCode)
	checkBodyContains(t, result, `<a href="/define/gyat">gyat</a>`)
}

func TestDefineWithColdVocabularyAndBusyPool(t *testing.T) {
	db, err := slangdict.NewDB(path.Join(t.TempDir(), "temptest.db"), 2)
	require.NoError(t, err)
	defer db.Close()
	app, err := NewApp(db, zap.NewNop(), slangdict.DefaultConfig())
	require.NoError(t, err)
	user, _ := createUserSession(t, app, "max")
	createDefinition(t, app, user, "rizz", "pure rizz energy")

	// Leave a single free connection for the request
	held := db.Get(t.Context())
	require.NotNil(t, held)
	defer db.Put(held)

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	r, _ := http.NewRequestWithContext(ctx, http.MethodGet, "/define/rizz", nil)
	w := httptest.NewRecorder()
	start := time.Now()
	testHandler(t, app).ServeHTTP(w, r)
	elapsed := time.Since(start)

	result := w.Result()
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Less(t, elapsed, time.Second)
	checkBodyContains(t, result, `pure <a class="term" href="/define/rizz">rizz</a> energy`)
}

func TestEditDefinition(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	owner, ownerCookie := createUserSession(t, app, "max")
	_, otherCookie := createUserSession(t, app, "luna")
	def := createDefinition(t, app, owner, "mid", "average", "opinions")
	h := testHandler(t, app)

	r, _ := http.NewRequest(http.MethodGet, def.EditURL(), nil)
	r.AddCookie(ownerCookie)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	checkBodyContains(t, w.Result(), "opinions")

	form := url.Values{"definition": {"painfully average"}, "tags": {"opinions, food"}}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, postForm(def.EditURL(), form, otherCookie))
	assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, postForm(def.EditURL(), form, ownerCookie))
	assert.Equal(t, http.StatusSeeOther, w.Result().StatusCode)

	conn := app.db.Get(t.Context())
	defer app.db.Put(conn)
	updated, err := slangdict.GetDefinition(conn, def.DefinitionID)
	require.NoError(t, err)
	assert.Equal(t, "painfully average", updated.Body)
	assert.Equal(t, []string{"food", "opinions"}, updated.Tags)
}

func TestDeleteDefinition(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	owner, ownerCookie := createUserSession(t, app, "max")
	_, otherCookie := createUserSession(t, app, "luna")
	def := createDefinition(t, app, owner, "mid", "average")
	h := testHandler(t, app)
	target := fmt.Sprintf("/definitions/%d/delete", def.DefinitionID)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, postForm(target, url.Values{}, otherCookie))
	assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, postForm(target, url.Values{}, ownerCookie))
	assert.Equal(t, http.StatusSeeOther, w.Result().StatusCode)
	assert.Equal(t, "/define/mid", w.Result().Header.Get("Location"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, postForm(target, url.Values{}, ownerCookie))
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)

	// The word no longer links anywhere
	r, _ := http.NewRequest(http.MethodGet, "/api/link?text=mid", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	var resp linkAPIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, []linker.Segment{{Text: "mid"}}, resp.Segments)
}

func TestVote(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	user, cookie := createUserSession(t, app, "max")
	def := createDefinition(t, app, user, "bussin", "really good")
	h := testHandler(t, app)
	target := fmt.Sprintf("/definitions/%d/vote", def.DefinitionID)

	getDef := func() *slangdict.Definition {
		conn := app.db.Get(t.Context())
		defer app.db.Put(conn)
		d, err := slangdict.GetDefinition(conn, def.DefinitionID)
		require.NoError(t, err)
		return d
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, postForm(target, url.Values{"vote": {"up"}}, cookie))
	assert.Equal(t, http.StatusSeeOther, w.Result().StatusCode)
	assert.Equal(t, int64(1), getDef().Upvotes)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, postForm(target, url.Values{"vote": {"down"}}, cookie))
	d := getDef()
	assert.Equal(t, int64(0), d.Upvotes)
	assert.Equal(t, int64(1), d.Downvotes)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, postForm(target, url.Values{"vote": {"sideways"}}, cookie))
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, postForm("/definitions/999/vote", url.Values{"vote": {"up"}}, cookie))
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestSearch(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	user, _ := createUserSession(t, app, "max")
	createDefinition(t, app, user, "rizz", "charm", "dating")
	createDefinition(t, app, user, "rizzler", "someone with rizz")
	h := testHandler(t, app)

	r, _ := http.NewRequest(http.MethodGet, "/search?q=r", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	checkBodyContains(t, w.Result(), "at least two characters")

	r, _ = http.NewRequest(http.MethodGet, "/search?q=rizz", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	result := w.Result()
	assert.Equal(t, http.StatusOK, result.StatusCode)
	body, _ := io.ReadAll(result.Body)
	assert.Contains(t, string(body), `<a href="/define/rizzler">rizzler</a>`)
	assert.Contains(t, string(body), "matched on word")

	r, _ = http.NewRequest(http.MethodGet, "/search?q=dat", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	checkBodyContains(t, w.Result(), `href="/tag/dating"`)
}

func TestBrowse(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	user, _ := createUserSession(t, app, "max")
	createDefinition(t, app, user, "rizz", "charm", "dating")
	createDefinition(t, app, user, "67", "a number")
	h := testHandler(t, app)

	var testCases = []struct {
		target         string
		expectedStatus int
		expectedBody   string
	}{
		{"/browse", http.StatusOK, `href="/tag/dating"`},
		{"/browse/r", http.StatusOK, `href="/define/rizz"`},
		{"/browse/R", http.StatusOK, `href="/define/rizz"`},
		{"/browse/%23", http.StatusOK, `href="/define/67"`},
		{"/browse/rr", http.StatusNotFound, ""},
	}
	for _, testCase := range testCases {
		t.Run(testCase.target, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, testCase.target, nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			result := w.Result()
			assert.Equal(t, testCase.expectedStatus, result.StatusCode)
			if testCase.expectedBody != "" {
				checkBodyContains(t, result, testCase.expectedBody)
			}
		})
	}
}

func TestTagAndUserPages(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	user, _ := createUserSession(t, app, "max")
	createDefinition(t, app, user, "rizz", "charm", "dating")
	h := testHandler(t, app)

	r, _ := http.NewRequest(http.MethodGet, "/tag/dating", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	checkBodyContains(t, w.Result(), `href="/define/rizz"`)

	r, _ = http.NewRequest(http.MethodGet, "/u/max/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	checkBodyContains(t, w.Result(), `href="/define/rizz"`)

	r, _ = http.NewRequest(http.MethodGet, "/u/nobody/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)

	r, _ = http.NewRequest(http.MethodGet, "/random", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	checkBodyContains(t, w.Result(), "charm")
}

func postBrainRotAPI(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	r, _ := http.NewRequest(http.MethodPost, "/api/brainrot", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestBrainRotAPI(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	user, _ := createUserSession(t, app, "max")
	createDefinition(t, app, user, "good", "not bad")
	h := testHandler(t, app)

	w := postBrainRotAPI(t, h, `{"text": "You are really good, thank you", "intensity": 0, "seed": 1}`)
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	var resp brainRotAPIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "You are really good, thank you", resp.Output)
	assert.Equal(t, uint64(1), resp.Seed)
	assert.Equal(t, []linker.Segment{
		{Text: "You are really "},
		{Text: "good", Key: "good"},
		{Text: ", thank you"},
	}, resp.Segments)

	// Same seed, same rot
	body := `{"text": "Hello! I hope you are doing well today.", "intensity": 150, "seed": 42}`
	var first, second brainRotAPIResponse
	require.NoError(t, json.NewDecoder(postBrainRotAPI(t, h, body).Body).Decode(&first))
	require.NoError(t, json.NewDecoder(postBrainRotAPI(t, h, body).Body).Decode(&second))
	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, 100, first.Intensity)
	assert.Equal(t, first.Output, linker.Text(first.Segments))

	w = postBrainRotAPI(t, h, `{"text": "", "intensity": 50}`)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "", resp.Output)
	assert.Equal(t, []linker.Segment{}, resp.Segments)

	w = postBrainRotAPI(t, h, `{"text": `)
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestBrainRotPage(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	user, _ := createUserSession(t, app, "max")
	def := createDefinition(t, app, user, "bussin", "Extremely tasty food")
	h := testHandler(t, app)

	r, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/brainrot?from=%d", def.DefinitionID), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	result := w.Result()
	assert.Equal(t, http.StatusOK, result.StatusCode)
	body, _ := io.ReadAll(result.Body)
	assert.Contains(t, string(body), "Extremely tasty food</textarea>")
	assert.NotContains(t, string(body), "Permalink")

	form := url.Values{"text": {"this food is bussin"}, "intensity": {"0"}, "seed": {"9"}}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, postForm("/brainrot", form, nil))
	result = w.Result()
	assert.Equal(t, http.StatusOK, result.StatusCode)
	body, _ = io.ReadAll(result.Body)
	assert.Contains(t, string(body), `this food is <a class="term" href="/define/bussin">bussin</a>`)
	assert.Contains(t, string(body), "/brainrot/face.png?intensity=0&amp;seed=9")

	r, _ = http.NewRequest(http.MethodGet, "/brainrot?from=999", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestBrainRotFace(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()
	h := testHandler(t, app)

	r, _ := http.NewRequest(http.MethodGet, "/brainrot/face.png?intensity=90&seed=5", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Equal(t, "image/png", w.Result().Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), pngMagic))

	r, _ = http.NewRequest(http.MethodGet, "/brainrot/face.png?intensity=90", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandlerChecksCSRFExceptForAPI(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()

	cfg := slangdict.DefaultConfig()
	cfg.StaticDir = t.TempDir()
	h := app.Handler(cfg, bytes.Repeat([]byte{7}, 32))

	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.NotEmpty(t, w.Result().Header.Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Result().Header.Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, postForm("/login", url.Values{"name": {"max"}}, nil))
	assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)

	w = postBrainRotAPI(t, h, `{"text": "hi", "intensity": 10}`)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
}

func TestSeedDefinitions(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()

	csvData := `word,definition,example,tags
rizz,"Charm, the ability to attract someone","he has rizz","dating, compliments"
,missing a word,,
mid,Average,,opinions
`
	conn := app.db.Get(t.Context())
	defer app.db.Put(conn)

	user, err := getOrCreateSeedUser(conn, "slangbot")
	require.NoError(t, err)
	again, err := getOrCreateSeedUser(conn, "slangbot")
	require.NoError(t, err)
	assert.Equal(t, user.UserID, again.UserID)

	rows, errChan := streamSeedRows(strings.NewReader(csvData))
	created, err := seedDefinitions(conn, user, rows, errChan)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	defs, err := slangdict.GetDefinitionsByWord(conn, "rizz")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Charm, the ability to attract someone", defs[0].Body)
	assert.Equal(t, []string{"compliments", "dating"}, defs[0].Tags)

	rows, errChan = streamSeedRows(strings.NewReader("rizz,\"unterminated\n"))
	_, err = seedDefinitions(conn, user, rows, errChan)
	assert.Error(t, err)
}

func TestBackfillEmptyAvatars(t *testing.T) {
	app, err := setUpTestApp(t)
	require.NoError(t, err)
	defer app.db.Close()

	conn := app.db.Get(t.Context())
	defer app.db.Put(conn)
	_, err = slangdict.CreateUser(conn, "max", "pass123")
	require.NoError(t, err)
	require.NoError(t, sqlitex.Exec(conn, "update user set avatar_upload_id = null", nil))

	n, err := backfillEmptyAvatars(conn, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	user, err := slangdict.GetUserByName(conn, "max")
	require.NoError(t, err)
	assert.NotEqual(t, int64(0), user.AvatarUploadID)

	n, err = backfillEmptyAvatars(conn, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPrintSegments(t *testing.T) {
	buf := new(bytes.Buffer)
	printSegments(buf, []linker.Segment{{Text: "that is "}, {Text: "Mid", Key: "mid"}})
	assert.Equal(t, "that is [Mid](mid)\n", buf.String())
}
