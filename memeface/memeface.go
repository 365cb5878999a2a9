// Package memeface draws random cartoon faces. At intensity 0 a face is a
// plain avatar; as intensity rises the face grows extra eyes, its features
// wander off and the background fills up with confetti.
package memeface

import (
	"image/color"
	"io"
	"math"
	"math/rand/v2"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"
)

// Faces are square, Size by Size.
const Size = 256.0

// HSL conversion code from
// https://github.com/gerow/go-color/blob/master/color.go
func hueToRGB(v1, v2, h float64) float64 {
	if h < 0 {
		h += 1
	}
	if h > 1 {
		h -= 1
	}
	switch {
	case 6*h < 1:
		return (v1 + (v2-v1)*6*h)
	case 2*h < 1:
		return v2
	case 3*h < 2:
		return v1 + (v2-v1)*((2.0/3.0)-h)*6
	}
	return v1
}

type hsl struct {
	h, s, l float64
}

func hslToRGB(c hsl) color.RGBA {
	h, s, l := c.h, c.s, c.l

	var v1, v2 float64
	if l < 0.5 {
		v2 = l * (1 + s)
	} else {
		v2 = (l + s) - (s * l)
	}

	v1 = 2*l - v2

	r := hueToRGB(v1, v2, h+(1.0/3.0))
	g := hueToRGB(v1, v2, h)
	b := hueToRGB(v1, v2, h-(1.0/3.0))

	return color.RGBA{
		R: uint8(math.Round(r * 255)),
		G: uint8(math.Round(g * 255)),
		B: uint8(math.Round(b * 255)),
		A: 255,
	}
}

type ellipticalArc struct {
	rx     float64
	ry     float64
	rot    float64
	theta0 float64
	theta1 float64
}

func (a *ellipticalArc) Path() *canvas.Path {
	return canvas.EllipticalArc(a.rx, a.ry, a.rot, a.theta0, a.theta1)
}

type point struct {
	x, y float64
}

type blob struct {
	at    point
	r     float64
	color color.RGBA
}

type face struct {
	bg    color.RGBA
	fg    color.RGBA
	eye   ellipticalArc
	eyes  []point
	mouth ellipticalArc
	// The mouth is drawn once per entry, so a wrecked face can grin twice.
	mouths   []point
	confetti []blob
}

type generator struct {
	rng       *rand.Rand
	size      float64
	intensity int
}

func (g *generator) inRange(min float64, max float64) float64 {
	return g.rng.Float64()*(max-min) + min
}

const (
	circle = 0
	smile  = 1
	frown  = 2
)

func (g *generator) arc(rx, ry float64) ellipticalArc {
	var theta1 float64
	switch g.rng.IntN(3) {
	case circle:
		theta1 = 360.0
	case smile:
		theta1 = -180.0
	case frown:
		theta1 = 180.0
	}
	return ellipticalArc{rx, ry, 0.0, 0.0, theta1}
}

// chaos is the intensity as a fraction in [0, 1].
func (g *generator) chaos() float64 {
	return float64(g.intensity) / 100
}

// jitter nudges p by up to chaos*size/4 in each direction.
func (g *generator) jitter(p point) point {
	d := g.chaos() * g.size / 4
	return point{p.x + g.inRange(-d, d), p.y + g.inRange(-d, d)}
}

func (g *generator) face() face {
	width, height := g.size, g.size
	chaos := g.chaos()

	l := g.rng.Float64()*0.7 + 0.2
	bg := hsl{
		g.rng.Float64(),
		g.rng.Float64()*0.2 + 0.8,
		math.Pow(l, 1.0/3.0),
	}
	fg := hsl{
		math.Mod(bg.h+0.5, 1.0),
		0.95,
		math.Pow(l, 3.0),
	}

	// Features grow with intensity.
	grow := 1 + chaos
	eye := g.arc(g.inRange(0.025, 0.2)*width*grow, g.inRange(0.025, 0.15)*height*grow)
	mouth := g.arc(g.inRange(0.025, 0.6)*width, g.inRange(0.025, 0.4)*height*grow)

	leftEyeX := g.rng.Float64()*(width-eye.rx*2) + eye.rx
	eyeSeparation := g.rng.Float64()*(width-leftEyeX-4*eye.rx) + 2*eye.rx
	eyeY := (width+eye.ry)*0.2 + g.rng.Float64()*0.8*(width-eye.ry)
	ySpace := eyeY - eye.ry - mouth.ry
	mouthY := g.rng.Float64()*(ySpace-mouth.ry) + mouth.ry

	f := face{
		bg:     hslToRGB(bg),
		fg:     hslToRGB(fg),
		eye:    eye,
		mouth:  mouth,
		eyes:   []point{{leftEyeX, eyeY}, {leftEyeX + eyeSeparation, eyeY}},
		mouths: []point{{width * g.rng.Float64(), mouthY}},
	}
	for i := range f.eyes {
		f.eyes[i] = g.jitter(f.eyes[i])
	}
	for range g.intensity / 25 {
		f.eyes = append(f.eyes, point{g.rng.Float64() * width, g.inRange(0.3, 1) * height})
	}
	if g.intensity > 70 && g.rng.Float64() < chaos {
		f.mouths = append(f.mouths, point{g.rng.Float64() * width, g.rng.Float64() * mouthY})
	}
	for range g.intensity / 10 {
		f.confetti = append(f.confetti, blob{
			at: point{g.rng.Float64() * width, g.rng.Float64() * height},
			r:  g.inRange(2, 6+10*chaos),
			color: hslToRGB(hsl{
				g.rng.Float64(),
				0.9,
				g.inRange(0.4, 0.7),
			}),
		})
	}
	return f
}

// New draws a face whose chaos scales with intensity (clamped to 0..100),
// using rng for every random choice.
func New(rng *rand.Rand, intensity int) *canvas.Canvas {
	g := &generator{rng: rng, size: Size, intensity: min(max(intensity, 0), 100)}
	f := g.face()

	c := canvas.New(Size, Size)
	ctx := canvas.NewContext(c)

	ctx.SetFillColor(f.bg)
	ctx.DrawPath(0.0, 0.0, canvas.Rectangle(Size, Size))

	for _, b := range f.confetti {
		ctx.SetFillColor(b.color)
		ctx.DrawPath(b.at.x, b.at.y, canvas.Circle(b.r))
	}

	// Adding rx so that the x coordinate is in the center of the ellipse
	ctx.SetFillColor(f.fg)
	for _, p := range f.eyes {
		ctx.DrawPath(p.x+f.eye.rx, p.y, f.eye.Path())
	}
	for _, p := range f.mouths {
		ctx.DrawPath(p.x+f.mouth.rx, p.y, f.mouth.Path())
	}
	return c
}

func WritePNG(w io.Writer, c *canvas.Canvas) error {
	pngWriter := renderers.PNG()
	return pngWriter(w, c)
}

// GeneratePNG writes a reproducible face for the seed and intensity.
func GeneratePNG(w io.Writer, intensity int, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	return WritePNG(w, New(rng, intensity))
}

// GenerateAvatarPNG writes a calm random face, for new user avatars.
func GenerateAvatarPNG(w io.Writer) error {
	return GeneratePNG(w, 0, rand.Uint64())
}
