package cli

import (
	"errors"
	"flag"
	"io"
)

type HelpVersionFlags struct {
	Help    bool
	Version bool
}

// AddHelpVersionFlags registers -h/-help and -v/-version on fs.
func AddHelpVersionFlags(fs *flag.FlagSet) *HelpVersionFlags {
	flags := &HelpVersionFlags{}
	if fs == nil {
		return flags
	}
	fs.BoolVar(&flags.Help, "help", false, "Show help")
	fs.BoolVar(&flags.Help, "h", false, "Show help")
	fs.BoolVar(&flags.Version, "version", false, "Print version and exit")
	fs.BoolVar(&flags.Version, "v", false, "Print version and exit")
	return flags
}

// Parse parses args into fs and returns the names of the flags that were set
// explicitly. When help was requested the usage is written to out and
// flag.ErrHelp is returned.
func Parse(fs *flag.FlagSet, helpVersion *HelpVersionFlags, args []string, out io.Writer) (map[string]bool, error) {
	fs.SetOutput(io.Discard)
	err := fs.Parse(args)
	if errors.Is(err, flag.ErrHelp) || (err == nil && helpVersion != nil && helpVersion.Help) {
		fs.SetOutput(out)
		fs.Usage()
		return nil, flag.ErrHelp
	}
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set, nil
}
