// Package brainrot rewrites text into increasingly unhinged internet slang.
//
// The amount of damage is controlled by an intensity from 0 to 100. At 0 the
// text comes back untouched; past 20 sentences start collecting emoji; past
// 40 they get exclamations and random slang phrases; past 70 vowels get
// stretched; past 80 words sprout emoji; past 90 the whole thing gets an
// intro and an emoji burst. Every random decision is drawn from the
// Transformer's own generator, so a seeded source gives reproducible output.
package brainrot

import (
	"math/rand/v2"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinIntensity = 0
	MaxIntensity = 100
)

// Clamp forces intensity into [MinIntensity, MaxIntensity].
func Clamp(intensity int) int {
	return min(max(intensity, MinIntensity), MaxIntensity)
}

// A Transformer is not safe for concurrent use, since it owns its generator.
type Transformer struct {
	rng *rand.Rand
}

func New(src rand.Source) *Transformer {
	return &Transformer{rng: rand.New(src)}
}

// Transform rewrites text with a freshly seeded generator.
func Transform(text string, intensity int) string {
	return New(rand.NewPCG(rand.Uint64(), rand.Uint64())).Transform(text, intensity)
}

// TransformSeeded always gives the same output for the same arguments.
func TransformSeeded(text string, intensity int, seed uint64) string {
	return New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Transform(text, intensity)
}

func (t *Transformer) Transform(text string, intensity int) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	intensity = Clamp(intensity)
	result := t.substitute(text, intensity)
	if intensity > 20 {
		result = t.mutateSentences(result, intensity)
	}
	if intensity > 40 {
		result = t.injectPhrases(result, intensity)
	}
	if intensity > 70 {
		result = t.stretchVowels(result, intensity)
	}
	if intensity > 80 {
		result = t.sprinkleEmoji(result, intensity)
	}
	if intensity > 90 {
		result = t.goFeral(result)
	}
	return result
}

func (t *Transformer) chance(p float64) bool {
	return t.rng.Float64() < p
}

func (t *Transformer) pick(from []string) string {
	return from[t.rng.IntN(len(from))]
}

// substitute applies the first len(substitutions)*intensity/100 entries.
func (t *Transformer) substitute(text string, intensity int) string {
	n := len(substitutions) * intensity / 100
	for _, s := range substitutions[:n] {
		text = s.pattern.ReplaceAllLiteralString(text, s.replacement)
	}
	return text
}

func (t *Transformer) mutateSentences(text string, intensity int) string {
	sentences := splitSentences(text)
	for i, sentence := range sentences {
		if strings.TrimSpace(sentence) == "" {
			continue
		}
		if intensity > 30 {
			words := strings.Split(sentence, " ")
			for j, word := range words {
				if t.chance(float64(intensity) / 300) {
					words[j] = strings.ToUpper(word)
				}
			}
			sentence = strings.Join(words, " ")
		}
		if intensity > 40 && t.chance(float64(intensity)/200) {
			sentence = strings.TrimSuffix(sentence, ".") + t.pick(exclamations)
		}
		count := int(float64(intensity)*t.rng.Float64()/15) + 1
		var b strings.Builder
		b.WriteString(sentence)
		for range count {
			b.WriteByte(' ')
			b.WriteString(t.pick(emoji))
		}
		sentences[i] = b.String()
	}
	return strings.Join(sentences, " ")
}

func (t *Transformer) injectPhrases(text string, intensity int) string {
	sentences := splitSentences(text)
	for i, sentence := range sentences {
		if strings.TrimSpace(sentence) == "" || !t.chance(float64(intensity)/200) {
			continue
		}
		sentences[i] = t.insertPhrase(sentence, t.pick(phrases))
	}
	return strings.Join(sentences, " ")
}

func (t *Transformer) insertPhrase(sentence, phrase string) string {
	switch t.rng.IntN(4) {
	case 0:
		return phrase + " " + sentence
	case 1:
		return sentence + " " + phrase
	case 2:
		words := strings.Split(sentence, " ")
		if len(words) <= 3 {
			return sentence + " " + phrase
		}
		at := t.rng.IntN(len(words)-1) + 1
		return strings.Join(slices.Insert(words, at, phrase), " ")
	default:
		runes := []rune(sentence)
		if len(runes) <= 10 {
			return phrase + " " + sentence
		}
		start := int(t.rng.Float64() * float64(len(runes)) / 2)
		end := min(start+int(t.rng.Float64()*float64(len(runes))/4)+3, len(runes))
		return string(runes[:start]) + " " + phrase + " " + string(runes[end:])
	}
}

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func (t *Transformer) stretchVowels(text string, intensity int) string {
	p := float64(intensity-60) / 100
	var b strings.Builder
	b.Grow(len(text) * 2)
	for _, r := range text {
		b.WriteRune(r)
		if isVowel(r) && t.chance(p) {
			for range t.rng.IntN(3) + 1 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func (t *Transformer) sprinkleEmoji(text string, intensity int) string {
	words := strings.Split(text, " ")
	for i := range words {
		if t.chance(float64(intensity) / 500) {
			words[i] += t.pick(emoji) + t.pick(emoji)
		}
	}
	text = strings.Join(words, " ")
	if t.chance(0.7) {
		ending := " fr fr"
		if t.chance(0.5) {
			ending = " no cap"
		}
		sentences := splitSentences(text)
		sentences[t.rng.IntN(len(sentences))] += ending
		text = strings.Join(sentences, " ")
	}
	return text
}

func (t *Transformer) goFeral(text string) string {
	var b strings.Builder
	b.WriteString(t.pick(intros))
	b.WriteString(text)
	b.WriteString("!!! ")
	for range t.rng.IntN(5) + 3 {
		b.WriteString(t.pick(emoji))
	}
	return b.String()
}

// splitSentences cuts text after every '.', '!' or '?' that is followed by
// whitespace, keeping the punctuation and dropping the whitespace. It always
// returns at least one element.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
		default:
			continue
		}
		end := i + 1
		j := end
		for j < len(text) {
			r, size := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(r) {
				break
			}
			j += size
		}
		if j == end {
			continue
		}
		sentences = append(sentences, text[start:end])
		start = j
		i = j - 1
	}
	return append(sentences, text[start:])
}
