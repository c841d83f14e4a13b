package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NormalizeArgs moves the command name in front of the positional arguments
// that precede it, so "<hostname> <username> setup" is parsed like
// "setup <hostname> <username>". Flags keep their place and their values
// stay attached to them. Everything after "--" is left alone.
func NormalizeArgs(root *cobra.Command, args []string) []string {
	var (
		before      []string
		positionals int
	)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return args
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			before = append(before, arg)
			if takesValue(root.PersistentFlags(), arg) && i+1 < len(args) {
				i++
				before = append(before, args[i])
			}
		case isCommand(root, arg):
			if positionals == 0 {
				return args
			}
			out := make([]string, 0, len(args))
			out = append(out, arg)
			out = append(out, before...)
			return append(out, args[i+1:]...)
		default:
			positionals++
			before = append(before, arg)
		}
	}
	return args
}

// takesValue reports whether arg is a flag whose value is the next word.
func takesValue(fs *pflag.FlagSet, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	var f *pflag.Flag
	if strings.HasPrefix(arg, "--") {
		f = fs.Lookup(strings.TrimPrefix(arg, "--"))
	} else if len(arg) == 2 {
		f = fs.ShorthandLookup(arg[1:])
	}
	return f != nil && f.NoOptDefVal == ""
}

func isCommand(root *cobra.Command, name string) bool {
	for _, c := range root.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	return false
}
