// Package flagx lets several components read their own flags from one
// command line without tripping over each other's.
package flagx

import (
	"flag"
	"io"
	"strings"
)

func isFlag(arg string) bool {
	return len(arg) > 1 && strings.HasPrefix(arg, "-")
}

// FilterArgs keeps only the allowed flags and their values, in order.
// Both "-c value" and "-c=value" forms are recognized; a value is only
// taken from the next argument when it does not itself look like a flag.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]bool, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = true
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && isFlag(arg) {
			if allowed[name] {
				filtered = append(filtered, arg)
			}
			continue
		}

		if !allowed[arg] {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !isFlag(args[i+1]) {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigFile returns the path given with -c or -config, or "" when absent.
// The last occurrence wins.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return path
}

// Command finds the first positional argument accepted by isCommand,
// skipping flags and the values that follow them, and returns it with the
// arguments after it. It returns "" and nil if there is none.
func Command(args []string, isCommand func(string) bool) (string, []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if isFlag(arg) {
			if !strings.Contains(arg, "=") && i+1 < len(args) && !isFlag(args[i+1]) {
				i++
			}
			continue
		}
		if isCommand(arg) {
			return arg, args[i+1:]
		}
	}
	return "", nil
}
