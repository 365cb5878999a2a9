package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/maxhully/slangdict"
	"github.com/maxhully/slangdict/brainrot"
	"github.com/maxhully/slangdict/linker"
	"github.com/maxhully/slangdict/memeface"
	"go.uber.org/zap"
)

const (
	maxBrainRotText         = 5000
	defaultBrainRotStrength = 50
)

type brainRotRequest struct {
	Text      string
	Intensity int
	Seed      uint64
	HasSeed   bool
}

// parseBrainRotRequest reads text, intensity and seed from the query string
// or the posted form. A missing seed picks a fresh one so the result can
// still be shared.
func parseBrainRotRequest(values url.Values) (brainRotRequest, error) {
	req := brainRotRequest{Text: values.Get("text"), Intensity: defaultBrainRotStrength}
	if utf8.RuneCountInString(req.Text) > maxBrainRotText {
		return req, fmt.Errorf("text is too long (max %d characters)", maxBrainRotText)
	}
	if v := strings.TrimSpace(values.Get("intensity")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid intensity %q", v)
		}
		req.Intensity = brainrot.Clamp(n)
	}
	if v := strings.TrimSpace(values.Get("seed")); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid seed %q", v)
		}
		req.Seed, req.HasSeed = seed, true
	}
	return req, nil
}

func faceURL(intensity int, seed uint64) string {
	q := url.Values{}
	q.Set("intensity", strconv.Itoa(intensity))
	q.Set("seed", strconv.FormatUint(seed, 10))
	return "/brainrot/face.png?" + q.Encode()
}

func brainRotShareURL(req brainRotRequest) string {
	q := url.Values{}
	q.Set("text", req.Text)
	q.Set("intensity", strconv.Itoa(req.Intensity))
	q.Set("seed", strconv.FormatUint(req.Seed, 10))
	return "/brainrot?" + q.Encode()
}

type brainRotPage struct {
	page
	Text      string
	Intensity int
	HasSeed   bool
	Seed      uint64
	HasOutput bool
	Output    []linker.Segment
	FaceURL   string
	ShareURL  string
}

// BrainRot shows the translator form. Submitting it, or opening a share link
// with text in the query, shows the rotted text too. ?from= prefills the form
// with a definition's text.
func (app *App) BrainRot(w http.ResponseWriter, r *http.Request) {
	var values url.Values
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			app.badRequest(w, r, err)
			return
		}
		values = r.PostForm
	} else {
		values = r.URL.Query()
	}
	req, err := parseBrainRotRequest(values)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	if from := r.URL.Query().Get("from"); from != "" && req.Text == "" {
		definitionID, err := strconv.ParseInt(from, 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		conn := app.getConn(w, r)
		if conn == nil {
			return
		}
		def, err := slangdict.GetDefinition(conn, definitionID)
		app.db.Put(conn)
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
		if def == nil {
			http.NotFound(w, r)
			return
		}
		req.Text = def.Body
	}

	p := &brainRotPage{
		page:      newPage(r),
		Text:      req.Text,
		Intensity: req.Intensity,
		HasSeed:   req.HasSeed,
		Seed:      req.Seed,
	}
	// A share link or a form post
	if strings.TrimSpace(req.Text) != "" && (r.Method == http.MethodPost || r.URL.Query().Has("text")) {
		if !req.HasSeed {
			req.Seed = rand.Uint64()
		}
		output := brainrot.TransformSeeded(req.Text, req.Intensity, req.Seed)
		p.HasOutput = true
		p.Seed = req.Seed
		p.Output = app.linker.Link(r.Context(), output)
		p.FaceURL = faceURL(req.Intensity, req.Seed)
		p.ShareURL = brainRotShareURL(req)
	}
	app.RenderTemplate(w, r, "brainrot.html", p)
}

// BrainRotFace draws the face for a brain-rot result. The same intensity and
// seed always give the same picture.
func (app *App) BrainRotFace(w http.ResponseWriter, r *http.Request) {
	req, err := parseBrainRotRequest(r.URL.Query())
	if err != nil {
		app.badRequest(w, r, err)
		return
	}
	if !req.HasSeed {
		app.badRequest(w, r, errors.New("seed is required"))
		return
	}
	buf := new(bytes.Buffer)
	if err := memeface.GeneratePNG(buf, req.Intensity, req.Seed); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := buf.WriteTo(w); err != nil {
		app.log.Warn("writing face", zap.Error(err))
	}
}

type brainRotAPIRequest struct {
	Text      string  `json:"text"`
	Intensity int     `json:"intensity"`
	Seed      *uint64 `json:"seed,omitempty"`
}

type brainRotAPIResponse struct {
	Output    string           `json:"output"`
	Intensity int              `json:"intensity"`
	Seed      uint64           `json:"seed"`
	Segments  []linker.Segment `json:"segments"`
}

type apiError struct {
	Error string `json:"error"`
}

func (app *App) BrainRotAPI(w http.ResponseWriter, r *http.Request) {
	var req brainRotAPIRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4*maxBrainRotText))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	if utf8.RuneCountInString(req.Text) > maxBrainRotText {
		writeJSON(w, http.StatusBadRequest, apiError{Error: fmt.Sprintf("text is too long (max %d characters)", maxBrainRotText)})
		return
	}
	resp := brainRotAPIResponse{Intensity: brainrot.Clamp(req.Intensity)}
	if req.Seed != nil {
		resp.Seed = *req.Seed
	} else {
		resp.Seed = rand.Uint64()
	}
	resp.Output = brainrot.TransformSeeded(req.Text, resp.Intensity, resp.Seed)
	resp.Segments = app.linker.Link(r.Context(), resp.Output)
	if resp.Segments == nil {
		resp.Segments = []linker.Segment{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type linkAPIResponse struct {
	Segments []linker.Segment `json:"segments"`
}

func (app *App) LinkAPI(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if utf8.RuneCountInString(text) > maxBrainRotText {
		writeJSON(w, http.StatusBadRequest, apiError{Error: fmt.Sprintf("text is too long (max %d characters)", maxBrainRotText)})
		return
	}
	segments := app.linker.Link(r.Context(), text)
	if segments == nil {
		segments = []linker.Segment{}
	}
	writeJSON(w, http.StatusOK, linkAPIResponse{Segments: segments})
}
