// Package segmenter splits screenplay text into scenes at location/time header lines.
package segmenter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"sceneflow-go/internal/types"
)

const (
	markers = `ИНТ\.?/НАТ|НАТ\.?/ИНТ|INT\.?/EXT|EXT\.?/INT|I/E|И\.?Н\.?Т|Н\.?А\.?Т|I\.?N\.?T|E\.?X\.?T`
	times   = `DAY|NIGHT|MORNING|EVENING|DAWN|DUSK|UNSPECIFIED|UNKNOWN|CONTINUOUS|LATER|` +
		`ДЕНЬ|НОЧЬ|УТРО|ВЕЧЕР|РАССВЕТ|СУМЕРКИ|ЗАКАТ|НЕИЗВЕСТНО|РЕЖИМ`
)

// headerPattern matches one whole header line:
//
//	[СЦЕНА|SCENE] [12.|1-4-А.] ИНТ. LOCATION [- ДЕНЬ]
//
// Groups: 1 number, 2 marker, 3 location, 4 time of day.
var headerPattern = regexp.MustCompile(`(?im)^[ \t]*` +
	`(?:(?:СЦЕНА|SCENE|СЦ\.)[ \t]*)?` +
	`(?:(\d+(?:[-.]\d+)*(?:-?[A-ZА-ЯЁ])?)(?:[.):][ \t]*|[ \t]+))?` +
	`(` + markers + `)(?:\.[ \t]*|[ \t]+)` +
	`(.+?)` +
	`(?:[ \t]*[-–—]+[ \t]*(` + times + `)\.?)?` +
	`[ \t\r]*$`)

// Document is the result of segmenting one text.
type Document struct {
	// Preamble is whatever precedes the first header (title page, notes).
	Preamble string
	Scenes   []types.Scene
}

// Segment is pure and deterministic: the same text always yields the same
// scenes, IDs and numbers. Whitespace-only text yields no scenes; text without
// any header yields exactly one scene covering the whole document.
func Segment(text string) Document {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Document{}
	}

	matches := headers(text)
	if len(matches) == 0 {
		unknown := unknownFor(trimmed)
		return Document{Scenes: []types.Scene{{
			ID:        sceneID(1),
			Number:    "1",
			Header:    types.NotAvailable,
			Location:  unknown,
			TimeOfDay: unknown,
			Text:      trimmed,
		}}}
	}

	positional := positionalNumbering(text, matches)
	doc := Document{
		Preamble: strings.TrimSpace(text[:matches[0][0]]),
		Scenes:   make([]types.Scene, 0, len(matches)),
	}
	for i, m := range matches {
		bodyEnd := len(text)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}

		number := group(text, m, 1)
		if number == "" || positional {
			number = strconv.Itoa(i + 1)
		}

		doc.Scenes = append(doc.Scenes, types.Scene{
			ID:        sceneID(i + 1),
			Number:    number,
			Header:    strings.TrimSpace(text[m[0]:m[1]]),
			Placement: placement(group(text, m, 2)),
			Location:  location(text, m),
			TimeOfDay: strings.ToUpper(group(text, m, 4)),
			Text:      strings.TrimSpace(text[m[1]:bodyEnd]),
		})
	}
	return doc
}

func sceneID(pos int) string {
	return fmt.Sprintf("Scene_%03d", pos)
}

func group(text string, m []int, n int) string {
	start, end := m[2*n], m[2*n+1]
	if start < 0 {
		return ""
	}
	return text[start:end]
}

// positionalNumbering reports whether the written numbers cannot be trusted:
// some headers carry a number and others don't, or a number repeats. Such
// documents are numbered by position instead.
func positionalNumbering(text string, matches [][]int) bool {
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		n := group(text, m, 1)
		if seen[n] {
			return true
		}
		seen[n] = true
	}
	return seen[""] && len(seen) > 1
}

// headers returns the header matches of text. A bare marker word such as
// "Нат" or "Int" also starts ordinary sentences, so a marker written without
// any dot only counts on an upper-case line.
func headers(text string) [][]int {
	all := headerPattern.FindAllStringSubmatchIndex(text, -1)
	out := all[:0]
	for _, m := range all {
		marker := group(text, m, 2)
		dotted := strings.ContainsAny(marker, "./") || text[m[5]] == '.'
		line := text[m[0]:m[1]]
		if dotted || line == strings.ToUpper(line) {
			out = append(out, m)
		}
	}
	return out
}

// location spans the marker and the free text, e.g. "ИНТ. КАБИНЕТ".
func location(text string, m []int) string {
	return strings.TrimRight(strings.TrimSpace(text[m[4]:m[7]]), " -–—")
}

func placement(marker string) string {
	return strings.ToUpper(strings.ReplaceAll(marker, ".", ""))
}

func unknownFor(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			return "Неизвестно"
		}
	}
	return "unknown"
}
