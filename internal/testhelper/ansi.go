package testhelper

import "regexp"

const ansi = "[\u001B\u009B][[\\]()#;?]*(?:(?:(?:[a-zA-Z\\d]*(?:;[a-zA-Z\\d]*)*)?\u0007)|(?:(?:\\d{1,4}(?:;\\d{0,4})*)?[\\dA-PRZcf-ntqry=><~]))"

var ansiRe = regexp.MustCompile(ansi)

// StripANSI removes terminal escape sequences so styled output can be
// compared against snapshots.
func StripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}
