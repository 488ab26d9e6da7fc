package server

import (
	"testing"
	"time"

	"github.com/iwvelando/venture-calc/internal/config"
	"github.com/iwvelando/venture-calc/pkg/constants"
)

func TestNewOptionsDefaults(t *testing.T) {
	opts, err := NewOptions(config.ServerConfig{})
	if err != nil {
		t.Fatalf("NewOptions() error = %v", err)
	}

	if opts.Address != constants.DefaultServerAddress {
		t.Fatalf("expected default address, got %s", opts.Address)
	}
	if opts.MaxBodySize != constants.DefaultMaxBodySizeBytes {
		t.Fatalf("expected default max body size, got %d", opts.MaxBodySize)
	}
	if opts.RateLimitWindow != time.Minute {
		t.Fatalf("expected default window of 1m, got %s", opts.RateLimitWindow)
	}
}

func TestNewOptionsOverrides(t *testing.T) {
	opts, err := NewOptions(config.ServerConfig{
		Address:     "127.0.0.1:9000",
		MaxBodySize: "2M",
		RateLimit:   config.RateLimitConfig{Requests: 5, Window: "10s"},
		Version:     " 1.4.0 ",
	})
	if err != nil {
		t.Fatalf("NewOptions() error = %v", err)
	}

	if opts.Address != "127.0.0.1:9000" {
		t.Fatalf("expected address override, got %s", opts.Address)
	}
	if opts.MaxBodySize != 2*1024*1024 {
		t.Fatalf("expected max body override, got %d", opts.MaxBodySize)
	}
	if opts.RateLimitRequests != 5 || opts.RateLimitWindow != 10*time.Second {
		t.Fatalf("unexpected rate limit %d per %s", opts.RateLimitRequests, opts.RateLimitWindow)
	}
	if opts.Version != "1.4.0" {
		t.Fatalf("expected trimmed version, got %q", opts.Version)
	}
}

func TestNewOptionsInvalid(t *testing.T) {
	if _, err := NewOptions(config.ServerConfig{MaxBodySize: "invalid"}); err == nil {
		t.Fatal("expected error for invalid size but got nil")
	}
	if _, err := NewOptions(config.ServerConfig{RateLimit: config.RateLimitConfig{Window: "forever"}}); err == nil {
		t.Fatal("expected error for invalid window but got nil")
	}
	if _, err := NewOptions(config.ServerConfig{RateLimit: config.RateLimitConfig{Window: "-1s"}}); err == nil {
		t.Fatal("expected error for negative window but got nil")
	}
}

func TestParseSize(t *testing.T) {
	tests := map[string]int64{
		"":          constants.DefaultMaxBodySizeBytes,
		"1024":      1024,
		"512b":      512,
		"256K":      256 * 1024,
		"1m":        1024 * 1024,
		"3MB":       3 * 1024 * 1024,
		"2G":        2 * 1024 * 1024 * 1024,
		"  4096   ": 4096,
	}

	for input, expected := range tests {
		got, err := ParseSize(input)
		if err != nil {
			t.Fatalf("parseSize(%q) returned error: %v", input, err)
		}
		if got != expected {
			t.Fatalf("parseSize(%q) = %d, expected %d", input, got, expected)
		}
	}

	if _, err := ParseSize("1TB"); err == nil {
		t.Fatal("expected error for unsupported unit")
	}
	if _, err := ParseSize("abc"); err == nil {
		t.Fatal("expected error for invalid number")
	}
	if _, err := ParseSize("99999999999999G"); err == nil {
		t.Fatal("expected error for overflow")
	}
}
