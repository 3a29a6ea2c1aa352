package version

import "strings"

// Version values are set at build time using -ldflags, for example
// -X deckhand/internal/version.Version=v0.3.0.
var (
	Version   = "dev"
	GitCommit = ""
	Built     = ""
)

type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	Built     string `json:"built,omitempty"`
}

func Get() Info {
	return Info{
		Version:   strings.TrimSpace(Version),
		GitCommit: strings.TrimSpace(GitCommit),
		Built:     strings.TrimSpace(Built),
	}
}

// String renders the info as "deckhand <version> (<commit>, built <date>)",
// leaving out whatever was not set at build time.
func (i Info) String() string {
	version := i.Version
	if version == "" {
		version = "dev"
	}
	var details []string
	if i.GitCommit != "" {
		commit := i.GitCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		details = append(details, commit)
	}
	if i.Built != "" {
		details = append(details, "built "+i.Built)
	}
	if len(details) == 0 {
		return "deckhand " + version
	}
	return "deckhand " + version + " (" + strings.Join(details, ", ") + ")"
}
