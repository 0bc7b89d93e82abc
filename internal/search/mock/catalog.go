package mock

import (
	"fmt"
	"net/url"
	"strings"
)

// Platform is one scripted resource platform served by the mock API.
type Platform struct {
	Name    string
	Color   string
	Website string
	Tags    []string
	// Error makes the platform report a failure instead of items.
	Error string
	// Patch marks platforms that only answer the patch endpoint.
	Patch bool
}

// DefaultPlatforms mirrors the mix of platform kinds the real aggregator
// returns: open sites, login-gated sites, invite-only sites and a broken one.
var DefaultPlatforms = []Platform{
	{Name: "Sakura Archive", Color: "lime", Website: "https://sakura-archive.example", Tags: []string{"no login required"}},
	{Name: "Hoshi Mirror", Color: "lime", Tags: []string{"no login required", "direct download"}},
	{Name: "Yume Forum", Color: "white", Website: "https://yume-forum.example", Tags: []string{"login required"}},
	{Name: "Ruri Drive", Color: "gold", Tags: []string{"invite only"}},
	{Name: "Kumo Index", Color: "red", Error: "upstream returned 502"},
	{Name: "Tsuki Patches", Color: "lime", Website: "https://tsuki-patches.example", Tags: []string{"chinese patch"}, Patch: true},
	{Name: "Hikari Translations", Color: "white", Tags: []string{"login required"}, Patch: true},
}

// PlatformsFor returns the platforms that answer the given endpoint.
func PlatformsFor(platforms []Platform, patch bool) []Platform {
	out := make([]Platform, 0, len(platforms))
	for _, p := range platforms {
		if p.Patch == patch {
			out = append(out, p)
		}
	}
	return out
}

// Items builds the scripted items a platform returns for a game.
func (p Platform) Items(game string) []map[string]string {
	if p.Error != "" {
		return []map[string]string{}
	}

	host := p.host()
	slug := url.PathEscape(strings.ToLower(strings.ReplaceAll(game, " ", "-")))
	return []map[string]string{
		{"name": game, "url": fmt.Sprintf("https://%s/%s", host, slug)},
		{"name": game + " (Complete Edition)", "url": fmt.Sprintf("https://%s/%s-complete", host, slug)},
	}
}

func (p Platform) host() string {
	if p.Website != "" {
		if u, err := url.Parse(p.Website); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return strings.ToLower(strings.ReplaceAll(p.Name, " ", "-")) + ".example"
}
