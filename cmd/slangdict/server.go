package main

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/handlers"
	"github.com/maxhully/slangdict"
	"github.com/maxhully/slangdict/linker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	renderer *slangdict.Renderer
	db       *slangdict.DB
	linker   *linker.Linker
	log      *zap.Logger
	pageSize int
}

func NewApp(db *slangdict.DB, log *zap.Logger, cfg *slangdict.Config) (*App, error) {
	renderer, err := slangdict.NewRenderer()
	if err != nil {
		return nil, err
	}
	cache := linker.NewVocabularyCache(db, cfg.VocabularyTTL, linker.WithLogger(log.Named("linker")))
	return &App{
		renderer: renderer,
		db:       db,
		linker:   linker.New(cache),
		log:      log,
		pageSize: cfg.PageSize,
	}, nil
}

func (app *App) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.log.Error("sending 500 error", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
}

func (app *App) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	app.log.Info("sending 400 error", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "400 Bad Request", http.StatusBadRequest)
}

// storeError maps the store's sentinel errors to 404 and 403, and anything
// else to a 500.
func (app *App) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, slangdict.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, slangdict.ErrForbidden):
		http.Error(w, "403 Forbidden", http.StatusForbidden)
	default:
		app.errorResponse(w, r, err)
	}
}

func (app *App) RenderTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	app.renderTemplateStatus(w, r, http.StatusOK, name, data)
}

// delayedStatusWriter holds back the status line until the first Write, so a
// template that fails before writing anything can still turn into a 500.
type delayedStatusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (d *delayedStatusWriter) Write(p []byte) (int, error) {
	if !d.wrote {
		d.wrote = true
		if d.Header().Get("Content-Type") == "" {
			d.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		d.ResponseWriter.WriteHeader(d.status)
	}
	return d.ResponseWriter.Write(p)
}

func (app *App) renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	dw := &delayedStatusWriter{ResponseWriter: w, status: status}
	if err := app.renderer.ExecuteTemplate(dw, name, data); err != nil && !dw.wrote {
		app.errorResponse(w, r, err)
	} else if err != nil {
		app.log.Error("writing response", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Every page template reads these two fields from the base layout.
type page struct {
	User      *slangdict.User
	CSRFField template.HTML
}

func newPage(r *http.Request) page {
	return page{
		User:      slangdict.CurrentUser(r.Context()),
		CSRFField: csrf.TemplateField(r),
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	// Clear the session cookie in case it has expired
	slangdict.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (app *App) Routes(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static", http.FileServer(http.Dir(staticDir))))

	mux.HandleFunc("GET /{$}", app.Homepage)
	mux.HandleFunc("GET /define/{word}", app.Define)
	mux.HandleFunc("GET /submit", app.SubmitDefinition)
	mux.HandleFunc("POST /submit", app.SubmitDefinition)
	mux.HandleFunc("GET /definitions/{id}/edit", app.EditDefinition)
	mux.HandleFunc("POST /definitions/{id}/edit", app.EditDefinition)
	mux.HandleFunc("POST /definitions/{id}/delete", app.DeleteDefinition)
	mux.HandleFunc("POST /definitions/{id}/vote", app.Vote)

	mux.HandleFunc("GET /search", app.Search)
	mux.HandleFunc("GET /browse", app.Browse)
	mux.HandleFunc("GET /browse/{letter}", app.Browse)
	mux.HandleFunc("GET /tag/{tag}", app.Tag)
	mux.HandleFunc("GET /random", app.Random)

	mux.HandleFunc("GET /brainrot", app.BrainRot)
	mux.HandleFunc("POST /brainrot", app.BrainRot)
	mux.HandleFunc("GET /brainrot/face.png", app.BrainRotFace)
	mux.HandleFunc("POST /api/brainrot", app.BrainRotAPI)
	mux.HandleFunc("GET /api/link", app.LinkAPI)

	mux.HandleFunc("GET /signup", app.SignUpUser)
	mux.HandleFunc("POST /signup", app.SignUpUser)
	mux.HandleFunc("GET /login", app.LogIn)
	mux.HandleFunc("POST /login", app.LogIn)
	mux.HandleFunc("POST /logout", app.LogOut)
	mux.HandleFunc("GET /profile", app.UpdateProfile)
	mux.HandleFunc("POST /profile", app.UpdateProfile)
	mux.HandleFunc("GET /u/{username}/{$}", app.ShowUser)
	mux.HandleFunc("GET /uploads/{upload_id}", app.ServeUpload)
	return mux
}

// skipCSRFForAPI lets the JSON endpoints through without a CSRF token. They
// neither read nor change anything that belongs to the logged-in user.
func skipCSRFForAPI(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			r = csrf.UnsafeSkipCheck(r)
		}
		h.ServeHTTP(w, r)
	})
}

// plaintextHTTP tells the CSRF check not to insist on an https Referer, for
// local development.
func plaintextHTTP(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

// Handler wraps the routes in the middleware stack, outermost first: panic
// recovery, gzip, request logging, safe headers, CSRF, then the user context.
func (app *App) Handler(cfg *slangdict.Config, secretKey []byte) http.Handler {
	csrfOptions := []csrf.Option{csrf.FieldName("csrf_token"), csrf.Path("/")}
	if cfg.InsecureCookies {
		csrfOptions = append(csrfOptions, csrf.Secure(false))
	}
	csrfProtect := csrf.Protect(secretKey, csrfOptions...)

	var h http.Handler = app.Routes(cfg.StaticDir)
	h = slangdict.WithUserContextMiddleware(app.db, app.log, h)
	h = csrfProtect(h)
	h = skipCSRFForAPI(h)
	if cfg.InsecureCookies {
		h = plaintextHTTP(h)
	}
	h = slangdict.SafeHeaderMiddleware(h)
	h = slangdict.RequestLogger(app.log, h)
	h = handlers.CompressHandler(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(app.log)),
		handlers.PrintRecoveryStack(true),
	)(h)
	return h
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		if err := cfg.Validate(); err != nil {
			return err
		}
		secretKey, err := cfg.SecretKeyBytes()
		if err != nil {
			return err
		}
		slangdict.InsecureCookies = cfg.InsecureCookies

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		app, err := NewApp(db, logger, cfg)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           app.Handler(cfg, secretKey),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			errc <- srv.ListenAndServe()
		}()
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Duration("startup", time.Since(start)))

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}
