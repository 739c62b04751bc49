package main

import (
	"io"
	"testing"
)

func TestParseFlags_EnvVars(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://api.test/api")
	t.Setenv("PORTAL_STORE", "/tmp/portal-test.json")
	t.Setenv("REDIS_URL", "redis://cache.test:6379/0")
	t.Setenv("REDIS_CHANNEL", "hn:test")

	opts, err := ParseFlags([]string{"whoami"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if opts.APIURL != "http://api.test/api" || opts.StorePath != "/tmp/portal-test.json" {
		t.Errorf("expected env values, got %+v", opts)
	}
	if opts.RedisURL != "redis://cache.test:6379/0" || opts.Channel != "hn:test" {
		t.Errorf("expected the redis config, got %+v", opts)
	}
	if len(opts.Args) != 1 || opts.Args[0] != "whoami" {
		t.Errorf("expected the command in Args, got %v", opts.Args)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://api.test/api")
	t.Setenv("REDIS_URL", "redis://cache.test:6379/0")

	opts, err := ParseFlags([]string{"-api", "http://other.test/api", "-redis", "redis://other.test:6379/1", "-store", "s.json", "ticker", "list"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if opts.APIURL != "http://other.test/api" {
		t.Errorf("CLI should override env: got %q", opts.APIURL)
	}
	if opts.RedisURL != "redis://other.test:6379/1" {
		t.Errorf("CLI should override env: got %q", opts.RedisURL)
	}
	if len(opts.Args) != 2 || opts.Args[1] != "list" {
		t.Errorf("expected [ticker list], got %v", opts.Args)
	}
}

func TestParseFlags_MissingCommand(t *testing.T) {
	if _, err := ParseFlags([]string{"-store", "s.json"}, io.Discard); err == nil {
		t.Error("expected an error without a command")
	}
}
