//go:build go1.18

package models

import (
	"testing"
	"unicode/utf8"
)

// FuzzValidateUsername checks that validation never panics and that anything
// accepted obeys the length and alphabet rules.
func FuzzValidateUsername(f *testing.F) {
	f.Add("")
	f.Add("alpine_user_1")
	f.Add("has space")
	f.Add("ümlaut")
	f.Add("'; DROP TABLE identities;--")
	f.Add(string([]byte{0xff, 0xfe}))
	f.Add("abcdefghijklmnopqrstuvwxyz0123456")

	f.Fuzz(func(t *testing.T, input string) {
		got, err := ValidateUsername(input)
		if err != nil {
			return
		}
		if got != input {
			t.Errorf("accepted username was altered: %q -> %q", input, got)
		}
		if n := utf8.RuneCountInString(got); n == 0 || n > MaxUsernameLength {
			t.Errorf("accepted username with %d runes", n)
		}
		for _, r := range got {
			if !isUsernameRune(r) {
				t.Errorf("accepted rune %q", r)
			}
		}
	})
}
