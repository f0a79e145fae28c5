package post_test

import (
	"errors"
	"testing"

	"github.com/voucheo/market-ledger/internal/post"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		wantPlatform string
		wantHandle   string
		wantPostID   string
		wantErr      bool
	}{
		{
			name:         "twitter status",
			url:          "https://twitter.com/vitalik/status/1234567890",
			wantPlatform: post.PlatformTwitter,
			wantHandle:   "vitalik",
			wantPostID:   "1234567890",
		},
		{
			name:         "x.com status",
			url:          "https://x.com/jack/status/20",
			wantPlatform: post.PlatformTwitter,
			wantHandle:   "jack",
			wantPostID:   "20",
		},
		{
			name:         "warpcast cast",
			url:          "https://warpcast.com/dwr/0x48b255f1",
			wantPlatform: post.PlatformBase,
			wantHandle:   "dwr",
			wantPostID:   "0x48b255f1",
		},
		{
			name:         "farcaster.xyz cast",
			url:          "https://farcaster.xyz/v/0xdeadbeef",
			wantPlatform: post.PlatformBase,
			wantHandle:   "v",
			wantPostID:   "0xdeadbeef",
		},
		{name: "empty", url: "", wantErr: true},
		{name: "not a post url", url: "https://example.com/foo", wantErr: true},
		{name: "twitter profile only", url: "https://twitter.com/vitalik", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := post.ParseURL(tt.url)
			if tt.wantErr {
				if !errors.Is(err, post.ErrInvalidURL) {
					t.Fatalf("expected ErrInvalidURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ref.Platform != tt.wantPlatform {
				t.Errorf("platform = %q, want %q", ref.Platform, tt.wantPlatform)
			}
			if ref.AuthorHandle != tt.wantHandle {
				t.Errorf("handle = %q, want %q", ref.AuthorHandle, tt.wantHandle)
			}
			if ref.PostID != tt.wantPostID {
				t.Errorf("post id = %q, want %q", ref.PostID, tt.wantPostID)
			}
		})
	}
}

func TestValidateCategory(t *testing.T) {
	got, err := post.ValidateCategory("Politics")
	if err != nil || got != "Politics" {
		t.Errorf("ValidateCategory(Politics) = %q, %v", got, err)
	}

	// Empty defaults to the catch-all bucket.
	got, err = post.ValidateCategory("")
	if err != nil || got != "Other" {
		t.Errorf("ValidateCategory(\"\") = %q, %v, want Other", got, err)
	}

	if _, err := post.ValidateCategory("Astrology"); !errors.Is(err, post.ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
}
