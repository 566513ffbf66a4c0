package gofetchcache

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestLastSegmentKey(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
		wantErr bool
	}{
		{name: "image path", locator: "https://x/img/42.png", want: "42.png"},
		{name: "query ignored", locator: "https://x/img/42.png?size=small", want: "42.png"},
		{name: "no extension", locator: "https://x/img/bad", want: "bad"},
		{name: "escaped segment", locator: "https://x/img/a%20b.jpg", want: "a b.jpg"},
		{name: "trailing slash", locator: "https://x/img/", wantErr: true},
		{name: "host only", locator: "https://x", wantErr: true},
		{name: "dot dot", locator: "https://x/img/..", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.locator)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}

			got, err := LastSegmentKey(u)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got key %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHashKey(t *testing.T) {
	a, _ := url.Parse("https://a/img/42.png")
	b, _ := url.Parse("https://b/img/42.png")

	ka, err := HashKey(a)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	kb, _ := HashKey(b)
	again, _ := HashKey(a)

	if ka == kb {
		t.Errorf("distinct locators should not share a key")
	}
	if ka != again {
		t.Errorf("key derivation must be stable, got %q and %q", ka, again)
	}
	if !strings.HasSuffix(ka, ".png") || len(ka) != 64+len(".png") {
		t.Errorf("unexpected key shape %q", ka)
	}
}

func TestParseLocator(t *testing.T) {
	for _, locator := range []string{"", "::not a url", "/relative/42.png", "https:///42.png"} {
		if _, err := parseLocator(locator); !errors.Is(err, ErrInvalidLocator) {
			t.Errorf("%q: expected ErrInvalidLocator, got %v", locator, err)
		}
	}

	if _, err := parseLocator("https://x/img/42.png"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfigFetchTimeout(t *testing.T) {
	c := Config{
		FetchTimeout: DefaultFetchTimeout,
		DomainOverrides: []DomainOverride{
			{URI: "slow.example.com/thumbs", Duration: 2 * DefaultFetchTimeout},
		},
	}

	slow, _ := url.Parse("https://slow.example.com/thumbs/1.png")
	fast, _ := url.Parse("https://slow.example.com/full/1.png")

	if got := c.fetchTimeout(slow); got != 2*DefaultFetchTimeout {
		t.Errorf("expected override, got %v", got)
	}
	if got := c.fetchTimeout(fast); got != DefaultFetchTimeout {
		t.Errorf("expected default, got %v", got)
	}
}
