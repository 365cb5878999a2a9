package slangdict

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
	"time"

	"github.com/oxtoacart/bpool"
)

// This is a little abstraction around template.Template to make a "base" layout
// template work.
//
// This is inspired mainly by staring at the pkgsite source code:
// https://github.com/golang/pkgsite/blob/master/internal/frontend/templates/templates.go
type Renderer struct {
	templates        map[string]*template.Template
	baseTemplateName string
	bufpool          *bpool.BufferPool
}

func (r *Renderer) ExecuteTemplate(w io.Writer, name string, data any) error {
	t, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("no template named %q", name)
	}
	// We render to a buffer (from the buffer pool) so that we can handle template
	// execution errors (without sending half a template response first).
	buf := r.bufpool.Get()
	defer r.bufpool.Put(buf)
	if err := t.ExecuteTemplate(buf, r.baseTemplateName, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

const baseTemplatePath = "templates/base.html"

//go:embed templates/*.html
var templateFS embed.FS

// A DefinitionCard is what the "definition" partial renders.
type DefinitionCard struct {
	LinkedDefinition
	CSRFField template.HTML
	LoggedIn  bool
	CanEdit   bool
}

// definitionCard returns a pointer so that templates can call the pointer
// methods of the embedded Definition.
func definitionCard(def LinkedDefinition, csrfField template.HTML, user *User) *DefinitionCard {
	return &DefinitionCard{
		LinkedDefinition: def,
		CSRFField:        csrfField,
		LoggedIn:         user != nil,
		CanEdit:          user != nil && user.UserID == def.UserID,
	}
}

var templateFuncs = template.FuncMap{
	"termURL": WordURL,
	"wordURL": WordURL,
	"tagURL":  TagURL,
	"browseURL": func(letter string) string {
		return "/browse/" + url.PathEscape(letter)
	},
	"card": definitionCard,
	"date": func(t time.Time) string {
		return t.Format("January 2, 2006")
	},
	"add": func(a, b int) int {
		return a + b
	},
}

func NewRenderer() (*Renderer, error) {
	renderer := Renderer{
		templates:        make(map[string]*template.Template),
		baseTemplateName: filepath.Base(baseTemplatePath),
		bufpool:          bpool.NewBufferPool(48),
	}
	paths, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	baseTemplate, err := template.New(renderer.baseTemplateName).Funcs(templateFuncs).ParseFS(templateFS, baseTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", baseTemplatePath, err)
	}
	for _, path := range paths {
		if path == baseTemplatePath {
			continue
		}
		t, err := baseTemplate.Clone()
		if err != nil {
			return nil, err
		}
		if t, err = t.ParseFS(templateFS, path); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		renderer.templates[filepath.Base(path)] = t
	}
	return &renderer, nil
}
