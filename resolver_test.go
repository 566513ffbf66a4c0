package gofetchcache_test

import (
	"context"
	"errors"
	"testing"

	gofetchcache "github.com/dgduncan/go-fetch-cache"
	"github.com/dgduncan/go-fetch-cache/caches"
)

// scriptedStorage answers Exists and Read with fixed results.
type scriptedStorage struct {
	exists    bool
	existsErr error
	data      []byte
	readErr   error
	writes    int
}

func (s *scriptedStorage) Exists(context.Context, string) (bool, error) { return s.exists, s.existsErr }
func (s *scriptedStorage) Read(context.Context, string) ([]byte, error) { return s.data, s.readErr }
func (s *scriptedStorage) Remove(context.Context, string) error         { return nil }
func (s *scriptedStorage) WriteAtomic(context.Context, string, []byte) error {
	s.writes++
	return nil
}

func TestResolve(t *testing.T) {
	errDisk := errors.New("i/o error")

	tests := []struct {
		name        string
		storage     *scriptedStorage
		expectedHit bool
		checkErr    func(t *testing.T, err error)
	}{
		{
			name:        "hit",
			storage:     &scriptedStorage{exists: true, data: []byte("b")},
			expectedHit: true,
		},
		{
			name:    "miss",
			storage: &scriptedStorage{},
		},
		{
			name:    "entry vanished between exists and read",
			storage: &scriptedStorage{exists: true, readErr: caches.ErrNoCacheItem},
		},
		{
			name:    "unreadable entry",
			storage: &scriptedStorage{exists: true, readErr: errDisk},
			checkErr: func(t *testing.T, err error) {
				var decodeErr *gofetchcache.DecodeError
				if !errors.As(err, &decodeErr) {
					t.Fatalf("expected DecodeError, got %v", err)
				}
			},
		},
		{
			name:    "exists failure",
			storage: &scriptedStorage{existsErr: errDisk},
			checkErr: func(t *testing.T, err error) {
				var ioErr *gofetchcache.IOError
				if !errors.As(err, &ioErr) || ioErr.Op != "exists" {
					t.Fatalf("expected exists IOError, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gofetchcache.NewResolver(tt.storage, nil, nil)

			res, err := r.Resolve(context.Background(), "https://x/img/42.png")
			if tt.checkErr != nil {
				tt.checkErr(t, err)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Hit != tt.expectedHit {
				t.Errorf("expected hit=%v, got %v", tt.expectedHit, res.Hit)
			}
			if res.Key != "42.png" {
				t.Errorf("expected key 42.png, got %q", res.Key)
			}
			if tt.storage.writes != 0 {
				t.Errorf("resolve must not write")
			}
		})
	}
}

func TestResolverKeyFunc(t *testing.T) {
	r := gofetchcache.NewResolver(&scriptedStorage{}, gofetchcache.HashKey, nil)

	a, err := r.Key("https://a/img/42.png")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	b, _ := r.Key("https://b/img/42.png")
	if a == b {
		t.Errorf("hash keys should separate same-named files on different hosts")
	}
}
