// Package shell builds remote command lines.
//
// Template text is trusted and written by the programmer; every value
// interpolated into it is quoted for a POSIX shell. Commands are values and
// never change once built.
package shell

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

var safeWord = regexp.MustCompile(`^[A-Za-z0-9_./:=@%+-]+$`)

// Command is a fully formatted instruction line.
type Command struct {
	text string
}

// New builds "name arg1 arg2 ..." with every argument quoted. The name itself
// is trusted.
func New(name string, args ...string) Command {
	words := make([]string, 0, len(args)+1)
	words = append(words, name)
	for _, a := range args {
		words = append(words, Quote(a))
	}
	return Command{text: strings.Join(words, " ")}
}

// Sprintf substitutes the quoted args into tpl. Only %s verbs are meaningful
// in tpl since every argument is turned into a quoted string first.
func Sprintf(tpl string, args ...string) Command {
	quoted := make([]interface{}, len(args))
	for i, a := range args {
		quoted[i] = Quote(a)
	}
	return Command{text: fmt.Sprintf(tpl, quoted...)}
}

// Raw wraps trusted text without any quoting.
func Raw(text string) Command {
	return Command{text: text}
}

// Quote returns s as a single shell word. Words made only of characters that
// no shell treats specially are left bare, everything else is single-quoted.
// Braces and commas are never left bare because of brace expansion.
func Quote(s string) string {
	if safeWord.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Split parses a shell-like word list such as "build-essential 'lib foo'"
// into its words.
func Split(line string) ([]string, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot split %q into words", line)
	}
	return words, nil
}

func (c Command) String() string {
	return c.text
}

func (c Command) IsZero() bool {
	return strings.TrimSpace(c.text) == ""
}
