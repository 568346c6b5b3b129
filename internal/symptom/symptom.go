// Package symptom defines the symptom vocabulary and the voice transcript classifier.
package symptom

import "strings"

// Tag identifies a symptom category.
type Tag string

const (
	ChestPain   Tag = "chest_pain"
	Breathing   Tag = "breathing"
	Fever       Tag = "fever"
	Accident    Tag = "accident"
	Unconscious Tag = "unconscious"
	Other       Tag = "other"
)

type category struct {
	tag      Tag
	keywords []string
}

// categories is matched in order and the first hit wins, so a transcript
// mentioning both chest pain and fever is chest_pain.
var categories = []category{
	{ChestPain, []string{"chest pain", "heart pain", "chest hurt", "chest pressure"}},
	{Breathing, []string{"breath", "breathing", "cant breathe", "difficulty breathing", "shortness of breath"}},
	{Fever, []string{"fever", "temperature", "hot", "burning up"}},
	{Accident, []string{"accident", "injury", "hurt", "fell", "crash", "bleeding"}},
	{Unconscious, []string{"unconscious", "passed out", "not responding", "unresponsive", "fainted"}},
}

// Classify maps a speech transcript to a symptom tag by keyword substring
// match. It never fails: transcripts matching nothing are Other.
func Classify(transcript string) Tag {
	text := strings.ToLower(transcript)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				return c.tag
			}
		}
	}
	return Other
}

// All returns the full vocabulary in classifier order, Other last.
func All() []Tag {
	out := make([]Tag, 0, len(categories)+1)
	for _, c := range categories {
		out = append(out, c.tag)
	}
	return append(out, Other)
}

// Parse returns the tag named s and whether it is part of the vocabulary.
func Parse(s string) (Tag, bool) {
	t := Tag(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Valid reports whether t is part of the vocabulary.
func (t Tag) Valid() bool {
	if t == Other {
		return true
	}
	for _, c := range categories {
		if c.tag == t {
			return true
		}
	}
	return false
}

// Known reports whether t is a concrete symptom, i.e. valid and not Other.
func (t Tag) Known() bool {
	return t != Other && t.Valid()
}
