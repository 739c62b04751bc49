package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"

	"healthnexus-portal/internal/config"
)

// Options configure the portal CLI.
type Options struct {
	APIURL    string
	StorePath string
	RedisURL  string
	Channel   string
	LogLevel  string
	LogFormat string
	Args      []string
}

// ParseFlags reads flags, falling back to the portal config loaded from the
// environment, and returns the remaining arguments as the command.
func ParseFlags(args []string, stderr io.Writer) (Options, error) {
	var opts Options
	cfg := config.LoadPortalConfig()

	fs := flag.NewFlagSet("portal", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.APIURL, "api", "", "Hospital API base URL")
	fs.StringVar(&opts.StorePath, "store", "", "Path of the local session store")
	fs.StringVar(&opts.RedisURL, "redis", "", "Redis URL of a shared store (overrides -store)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	if opts.APIURL == "" {
		opts.APIURL = cfg.APIBaseURL
	}
	if opts.RedisURL == "" {
		opts.RedisURL = cfg.Redis.URL
	}
	opts.Channel = cfg.Redis.Channel
	if opts.StorePath == "" {
		opts.StorePath = cfg.StorePath
	}
	if opts.StorePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Options{}, errors.New("no home directory, use -store or PORTAL_STORE")
		}
		opts.StorePath = filepath.Join(home, ".healthnexus", "portal.json")
	}
	if opts.LogLevel == "" {
		opts.LogLevel = cfg.Log.Level
	}
	opts.LogFormat = cfg.Log.Format

	opts.Args = fs.Args()
	if len(opts.Args) == 0 {
		return Options{}, errors.New("missing command")
	}
	return opts, nil
}
