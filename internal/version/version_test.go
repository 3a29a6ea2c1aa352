package version

import "testing"

func TestInfoString(t *testing.T) {
	cases := []struct {
		name string
		info Info
		want string
	}{
		{name: "empty", info: Info{}, want: "deckhand dev"},
		{name: "version-only", info: Info{Version: "v0.3.0"}, want: "deckhand v0.3.0"},
		{
			name: "full",
			info: Info{Version: "v0.3.0", GitCommit: "0123456789abcdef0123", Built: "2026-01-02"},
			want: "deckhand v0.3.0 (0123456789ab, built 2026-01-02)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.info.String(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestGetTrimsBuildValues(t *testing.T) {
	previous := Version
	t.Cleanup(func() { Version = previous })
	Version = " v1.2.3\n"

	if got := Get().Version; got != "v1.2.3" {
		t.Fatalf("expected trimmed version, got %q", got)
	}
}
