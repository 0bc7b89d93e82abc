package search

import (
	"net/url"
)

// normalizeResult maps a wire result into a PlatformResult.
func normalizeResult(raw resultPayload) PlatformResult {
	items := make([]Item, 0, len(raw.Items))
	for _, it := range raw.Items {
		items = append(items, Item{
			Platform: raw.Name,
			Title:    it.Name,
			URL:      it.URL,
			Tags:     copyTags(raw.Tags),
		})
	}

	return PlatformResult{
		Name:  raw.Name,
		Color: ParseColor(raw.Color),
		URL:   platformURL(raw),
		Items: items,
		Error: raw.Error,
	}
}

// platformURL resolves the platform home page: explicit url, then website,
// then scheme://host of the first item.
func platformURL(raw resultPayload) string {
	if raw.URL != "" {
		return raw.URL
	}
	if raw.Website != "" {
		return raw.Website
	}
	if len(raw.Items) == 0 {
		return ""
	}
	return originOf(raw.Items[0].URL)
}

// originOf returns scheme://host for an absolute URL and "" otherwise.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func copyTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
