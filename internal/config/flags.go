package config

import (
	"flag"
	"os"

	"github.com/oaktrail/treetrack/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-u string   base URL of the backend API
//	-t string   bearer token
//	-b string   backend kind (protectearth|airtable)
//	-d string   local database path
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-t", "-b", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "u", cfg.APIBaseURL, "base URL of the backend API")
	fs.StringVar(&cfg.BearerToken, "t", cfg.BearerToken, "bearer token for API access")
	backend := fs.String("b", string(cfg.Backend), "backend kind (protectearth|airtable)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.Backend = Backend(*backend)
}
