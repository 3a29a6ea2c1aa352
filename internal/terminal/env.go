package terminal

import (
	"sort"
	"strings"
)

var inheritedEnvKeys = map[string]struct{}{
	"HOME":   {},
	"USER":   {},
	"SHELL":  {},
	"LANG":   {},
	"LC_ALL": {},
}

type envOptions struct {
	Path      string
	Dir       string
	Term      string
	ColorTerm string
	Overrides map[string]string
}

// buildEnv constructs the child environment from the allow-listed subset of
// base. Overrides are applied last and win over everything else.
func buildEnv(base []string, opts envOptions) []string {
	values := make(map[string]string)
	for _, entry := range base {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		if _, allowed := inheritedEnvKeys[key]; allowed || strings.HasPrefix(key, "XDG_") {
			values[key] = value
		}
	}
	if _, ok := values["LC_ALL"]; !ok {
		if lang, ok := values["LANG"]; ok && lang != "" {
			values["LC_ALL"] = lang
		}
	}
	if opts.Path != "" {
		values["PATH"] = opts.Path
	}
	if opts.Term != "" {
		values["TERM"] = opts.Term
	}
	if opts.ColorTerm != "" {
		values["COLORTERM"] = opts.ColorTerm
	}
	if opts.Dir != "" {
		values["PWD"] = opts.Dir
	}
	for key, value := range opts.Overrides {
		if key == "" || strings.Contains(key, "=") {
			continue
		}
		values[key] = value
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+values[key])
	}
	return env
}
