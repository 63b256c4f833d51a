package twitch

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// ErrInvalidLogin is returned for names Twitch could never have issued.
var ErrInvalidLogin = errors.New(`names may only contain 4-25 alpha-numeric characters (as well as "_") and may not begin with "_"`)

var loginPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_]{3,24}$`)

// NormalizeLogin strips whitespace so "Bob Ross" becomes "BobRoss", then
// checks the Twitch login rules.
func NormalizeLogin(name string) (string, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
	if !loginPattern.MatchString(compact) {
		return "", ErrInvalidLogin
	}
	return compact, nil
}
