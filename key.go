package gofetchcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"strings"
)

// KeyFunc derives the storage key for a parsed locator. It must be a pure
// function so keys stay stable across process restarts.
type KeyFunc func(u *url.URL) (string, error)

var errNoSegment = errors.New("locator has no usable path segment")

// LastSegmentKey uses the final path segment of the locator as the key, so
// "https://x/img/42.png" is stored as "42.png". Distinct locators sharing a
// file name map to the same key.
func LastSegmentKey(u *url.URL) (string, error) {
	seg := lastSegment(u)
	if seg == "" {
		return "", errNoSegment
	}
	return seg, nil
}

// HashKey uses the hex SHA-256 of the full locator, keeping the extension of
// the last path segment so stored files stay recognisable.
func HashKey(u *url.URL) (string, error) {
	sum := sha256.Sum256([]byte(u.String()))
	key := hex.EncodeToString(sum[:])
	if seg := lastSegment(u); seg != "" {
		key += path.Ext(seg)
	}
	return key, nil
}

func lastSegment(u *url.URL) string {
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	seg := path.Base(p)
	if seg == "." || seg == ".." || seg == "/" {
		return ""
	}
	return seg
}

// parseLocator checks that locator is an absolute URL with a host.
func parseLocator(locator string) (*url.URL, error) {
	if locator == "" {
		return nil, invalidLocator(locator, errors.New("empty locator"))
	}
	u, err := url.Parse(locator)
	if err != nil {
		return nil, invalidLocator(locator, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, invalidLocator(locator, errors.New("locator must be absolute"))
	}
	return u, nil
}
