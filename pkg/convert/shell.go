package convert

import "strings"

// shells whose "-lc '<cmd>'" envelopes get unwrapped.
var shellNames = []string{"bash", "zsh", "sh"}

// StripShellWrapper removes an outer `bash -lc '...'` (or zsh/sh, -c or
// -lc, single- or double-quoted) envelope from a command string,
// returning the inner command. Commands without a recognized wrapper
// pass through unchanged.
func StripShellWrapper(command string) string {
	trimmed := strings.TrimSpace(command)

	for _, shell := range shellNames {
		rest, ok := strings.CutPrefix(trimmed, shell+" ")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		for _, flag := range []string{"-lc", "-c"} {
			inner, ok := strings.CutPrefix(rest, flag+" ")
			if !ok {
				continue
			}
			inner = strings.TrimSpace(inner)
			if unquoted, ok := unquote(inner); ok {
				return unquoted
			}
			return inner
		}
	}
	return command
}

// UnwrapShellArgv unwraps an argv-form invocation such as
// ["bash", "-lc", "make test"] down to the inner command; other argv
// shapes are joined with spaces.
func UnwrapShellArgv(argv []string) string {
	if len(argv) == 3 {
		for _, shell := range shellNames {
			if argv[0] == shell && (argv[1] == "-lc" || argv[1] == "-c") {
				return argv[2]
			}
		}
	}
	return strings.Join(argv, " ")
}

func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return s, false
	}
	first, last := s[0], s[len(s)-1]
	if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
		return s[1 : len(s)-1], true
	}
	return s, false
}
