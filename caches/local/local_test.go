//go:build !integration

package local

import (
	"context"
	"errors"
	"testing"

	"github.com/dgduncan/go-fetch-cache/caches"
)

func TestBasicCache(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		seed      map[string][]byte
		key       string
		wantFound bool
		wantData  string
		wantErr   error
	}{
		{
			name:      "stored item is returned",
			seed:      map[string][]byte{"42.png": []byte("png")},
			key:       "42.png",
			wantFound: true,
			wantData:  "png",
		},
		{
			name:    "missing item",
			seed:    map[string][]byte{"42.png": []byte("png")},
			key:     "43.png",
			wantErr: caches.ErrNoCacheItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := NewBasicCache()
			for k, v := range tt.seed {
				if err := bc.WriteAtomic(ctx, k, v); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}

			found, err := bc.Exists(ctx, tt.key)
			if err != nil {
				t.Fatalf("exists: %v", err)
			}
			if found != tt.wantFound {
				t.Errorf("expected found=%v, got %v", tt.wantFound, found)
			}

			data, err := bc.Read(ctx, tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if string(data) != tt.wantData {
				t.Errorf("expected %q, got %q", tt.wantData, data)
			}
		})
	}
}

func TestBasicCacheCopiesData(t *testing.T) {
	ctx := context.Background()
	bc := NewBasicCache()

	data := []byte("abc")
	if err := bc.WriteAtomic(ctx, "k", data); err != nil {
		t.Fatalf("write: %v", err)
	}
	data[0] = 'x'

	got, _ := bc.Read(ctx, "k")
	got[1] = 'y'

	again, _ := bc.Read(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value was mutated: %q", again)
	}
}

func TestBasicCacheRemove(t *testing.T) {
	ctx := context.Background()
	bc := NewBasicCache()

	_ = bc.WriteAtomic(ctx, "k", []byte("v"))
	if err := bc.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := bc.Remove(ctx, "k"); err != nil {
		t.Fatalf("removing a missing key should not fail: %v", err)
	}
	if bc.Len() != 0 {
		t.Errorf("expected empty cache, got %d items", bc.Len())
	}
}
