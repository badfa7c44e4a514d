package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxRemarkLen      = 64
	maxNicknameLen    = 64
	maxBioLen         = 255
	maxDescriptionLen = 255
)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeText puts user-entered text in NFC form, trims it and collapses
// inner whitespace, so visually equal strings are stored identically.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// NormalizeUsername is applied to usernames on insert, lookup and in lock
// keys; usernames never contain spaces, so only the Unicode form and
// surrounding blanks change.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// clipRunes cuts s to at most n runes.
func clipRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
