package client

import (
	"flag"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cases := map[string]func(c *Config){
		"http scheme":      func(c *Config) { c.ServerURL = "http://127.0.0.1:8080/game" },
		"zero cooldown":    func(c *Config) { c.ShootCooldown = 0 },
		"zero send buffer": func(c *Config) { c.SendBuffer = 0 },
		"negative ping":    func(c *Config) { c.PingPeriod = -time.Second },
		"record+replay":    func(c *Config) { c.RecordPath, c.ReplayPath = "a", "b" },
	}
	for name, mutate := range cases {
		c := DefaultConfig()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	c := DefaultConfig()
	c.ServerURL = "not a url at all"
	c.ReplayPath = "session.journal"
	if err := c.Validate(); err != nil {
		t.Errorf("replay mode should not need a server url: %v", err)
	}
}

func TestConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("SYNC_WS_URL", "wss://game.example/game")
	t.Setenv("SYNC_SHOOT_COOLDOWN", "1500ms")

	c := DefaultConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse([]string{"-send-buffer", "8"}); err != nil {
		t.Fatal(err)
	}
	if c.ServerURL != "wss://game.example/game" {
		t.Errorf("url = %q", c.ServerURL)
	}
	if c.ShootCooldown != 1500*time.Millisecond {
		t.Errorf("cooldown = %v", c.ShootCooldown)
	}
	if c.SendBuffer != 8 {
		t.Errorf("send buffer = %d", c.SendBuffer)
	}
	if tc := c.TransportConfig(); tc.SendBuffer != 8 || tc.WriteWait != c.WriteWait {
		t.Errorf("transport config = %+v", tc)
	}
}
