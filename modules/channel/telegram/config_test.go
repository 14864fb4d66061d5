package telegram

import (
	"strings"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	c := Config{}
	c.defaults()

	if c.PollingTimeout != 30 {
		t.Errorf("PollingTimeout = %d, want 30", c.PollingTimeout)
	}
	if c.MaxMessageLength != 4096 {
		t.Errorf("MaxMessageLength = %d, want 4096", c.MaxMessageLength)
	}
	if c.MaxDocumentSize != 20<<20 {
		t.Errorf("MaxDocumentSize = %d", c.MaxDocumentSize)
	}
	if c.APIURL != "https://api.telegram.org" {
		t.Errorf("APIURL = %q", c.APIURL)
	}
	if len(c.AllowedUpdates) != 2 {
		t.Errorf("AllowedUpdates = %v", c.AllowedUpdates)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad token", func(c *Config) { c.Token = "not-a-token" }, "token format"},
		{"bad api url", func(c *Config) { c.APIURL = "ftp://example.com" }, "api_url"},
		{"timeout too large", func(c *Config) { c.PollingTimeout = 51 }, "polling_timeout"},
		{"message length too large", func(c *Config) { c.MaxMessageLength = 5000 }, "max_message_length"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Config{Token: "12345:AAbbCCdd_ee-ff"}
			c.defaults()
			tc.mutate(&c)

			err := c.validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}
