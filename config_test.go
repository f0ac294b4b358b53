package main

import (
	"context"
	"net/netip"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		bind:       "0.0.0.0",
		height:     24,
		maxPeers:   256,
		movement:   "clamp",
		port:       9999,
		senderPort: 9998,
		side:       3,
		width:      80,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 70000 }, "invalid port"},
		{"same ports", func(c *Config) { c.senderPort = c.port }, "must differ"},
		{"any sender port", func(c *Config) { c.senderPort = 0 }, ""},
		{"too many peers", func(c *Config) { c.maxPeers = 5000 }, "max peers"},
		{"zero side", func(c *Config) { c.side = 0 }, "side"},
		{"bad bind", func(c *Config) { c.bind = "not-an-ip" }, "bind"},
		{"bad movement", func(c *Config) { c.movement = "teleport" }, "movement mode"},
		{"wrap unbounded", func(c *Config) { c.movement, c.width = "wrap", 0 }, "--width"},
		{"unbounded grid", func(c *Config) { c.movement, c.width, c.height = "unbounded", 0, 0 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseHostArg(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.0.0.5", "10.0.0.5:9999"},
		{"10.0.0.5:4000", "10.0.0.5:4000"},
		{"::1", "[::1]:9999"},
		{"[::1]", "[::1]:9999"},
		{"[2001:db8::2]:5000", "[2001:db8::2]:5000"},
		{" 192.168.0.2 ", "192.168.0.2:9999"},
	}
	for _, tt := range tests {
		got, err := parseHostArg(context.Background(), tt.in, 9999)
		if err != nil {
			t.Errorf("parseHostArg(%q) error: %v", tt.in, err)
			continue
		}
		if len(got) != 1 || got[0] != netip.MustParseAddrPort(tt.want) {
			t.Errorf("parseHostArg(%q) = %v, want [%s]", tt.in, got, tt.want)
		}
	}
}

func TestParseHostArgReturnsEveryResolvedAddress(t *testing.T) {
	got, err := parseHostArg(context.Background(), "localhost:4000", 9999)
	if err != nil {
		t.Skipf("localhost does not resolve here: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("parseHostArg(localhost) returned no targets")
	}
	for _, ap := range got {
		if !ap.Addr().IsLoopback() || ap.Port() != 4000 {
			t.Errorf("target %s, want a loopback address on port 4000", ap)
		}
		if ap.Addr().Is4In6() {
			t.Errorf("target %s left IPv4-mapped", ap)
		}
	}

	if _, err := parseHostArg(context.Background(), "localhost:99999", 9999); err == nil {
		t.Error("parseHostArg accepted an out of range port")
	}
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("GRIDPEER_MOVEMENT", "wrap")
	t.Setenv("GRIDPEER_MAX_PEERS", "12")

	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatal(err)
	}
	if cfg.movement != "wrap" || cfg.maxPeers != 12 {
		t.Errorf("config from env = movement %q, max peers %d; want wrap, 12", cfg.movement, cfg.maxPeers)
	}
	if cfg.port != 9999 || cfg.senderPort != 9998 {
		t.Errorf("default ports = %d/%d, want 9999/9998", cfg.port, cfg.senderPort)
	}
}
