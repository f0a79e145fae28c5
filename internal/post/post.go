// Package post parses and validates the social-post references that markets
// are created from. A post URL yields the platform and author handle stored
// on the market record.
package post

import (
	"errors"
	"fmt"
	"regexp"
)

// Supported platforms.
const (
	PlatformBase    = "base"
	PlatformTwitter = "twitter"
)

// Supported market categories.
const (
	CategoryPolitics      = "Politics"
	CategoryFinance       = "Finance"
	CategorySports        = "Sports"
	CategoryTech          = "Tech"
	CategoryEntertainment = "Entertainment"
	CategoryScience       = "Science"
	CategoryWeather       = "Weather"
	CategoryOther         = "Other"
)

var validCategories = map[string]bool{
	CategoryPolitics:      true,
	CategoryFinance:       true,
	CategorySports:        true,
	CategoryTech:          true,
	CategoryEntertainment: true,
	CategoryScience:       true,
	CategoryWeather:       true,
	CategoryOther:         true,
}

// twitterRegex matches: https://(twitter|x).com/{handle}/status/{id}
var twitterRegex = regexp.MustCompile(
	`^https?://(?:www\.)?(?:twitter|x)\.com/([A-Za-z0-9_]{1,15})/status/(\d+)$`,
)

// baseRegex matches Farcaster cast URLs: https://(warpcast.com|farcaster.xyz)/{handle}/{castHash}
var baseRegex = regexp.MustCompile(
	`^https?://(?:www\.)?(?:warpcast\.com|farcaster\.xyz)/([A-Za-z0-9_.-]{1,32})/(0x[0-9a-fA-F]+)$`,
)

var (
	ErrInvalidURL      = errors.New("post: unrecognized post URL")
	ErrInvalidCategory = errors.New("post: unsupported category")
)

// Ref is a parsed social-post reference.
type Ref struct {
	URL          string `json:"url"`
	Platform     string `json:"platform"`
	AuthorHandle string `json:"author_handle"`
	PostID       string `json:"post_id"`
}

// ParseURL parses and validates a social post URL.
// Recognizes Twitter/X status URLs and Base (Farcaster) cast URLs.
func ParseURL(url string) (*Ref, error) {
	if m := twitterRegex.FindStringSubmatch(url); m != nil {
		return &Ref{
			URL:          url,
			Platform:     PlatformTwitter,
			AuthorHandle: m[1],
			PostID:       m[2],
		}, nil
	}

	if m := baseRegex.FindStringSubmatch(url); m != nil {
		return &Ref{
			URL:          url,
			Platform:     PlatformBase,
			AuthorHandle: m[1],
			PostID:       m[2],
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrInvalidURL, url)
}

// ValidateCategory checks a category string. Empty is allowed and
// normalized to "Other".
func ValidateCategory(category string) (string, error) {
	if category == "" {
		return CategoryOther, nil
	}
	if !validCategories[category] {
		return "", fmt.Errorf("%w: %s", ErrInvalidCategory, category)
	}
	return category, nil
}
