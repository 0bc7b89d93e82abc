package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeResult_DerivesURLFromFirstItem(t *testing.T) {
	ev := Classify([]byte(`{"progress":{"completed":1,"total":1},"result":{"name":"X","items":[{"name":"A","url":"https://ex.com/a"}]}}`))

	result := ev.(ResultEvent).Result
	assert.Equal(t, "https://ex.com", result.URL)
}

func TestPlatformURL(t *testing.T) {
	items := []itemPayload{{Name: "A", URL: "https://first.example/path?q=1"}}

	tests := []struct {
		name string
		raw  resultPayload
		want string
	}{
		{"explicit url wins", resultPayload{URL: "https://u.example", Website: "https://w.example", Items: items}, "https://u.example"},
		{"website before derivation", resultPayload{Website: "https://w.example", Items: items}, "https://w.example"},
		{"derived from first item", resultPayload{Items: items}, "https://first.example"},
		{"keeps port", resultPayload{Items: []itemPayload{{URL: "http://host.example:8080/x"}}}, "http://host.example:8080"},
		{"relative item url", resultPayload{Items: []itemPayload{{URL: "/relative/path"}}}, ""},
		{"unparsable item url", resultPayload{Items: []itemPayload{{URL: "http://[::1"}}}, ""},
		{"no items", resultPayload{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, platformURL(tt.raw))
		})
	}
}

func TestNormalizeResult_Defaults(t *testing.T) {
	result := normalizeResult(resultPayload{
		Name:  "P",
		Color: "purple",
		Items: []itemPayload{{Name: "T", URL: "https://p.example/t"}},
	})

	assert.Equal(t, ColorWhite, result.Color)
	assert.Equal(t, "", result.Error)
	assert.Equal(t, []Item{{Platform: "P", Title: "T", URL: "https://p.example/t", Tags: []string{}}}, result.Items)
}

func TestNormalizeResult_AttachesPlatformAndTags(t *testing.T) {
	result := normalizeResult(resultPayload{
		Name:  "P",
		Color: "lime",
		Tags:  []string{"no login required"},
		Items: []itemPayload{
			{Name: "One", URL: "https://p.example/1"},
			{Name: "Two", URL: "https://p.example/2"},
		},
		Error: "partial results",
	})

	assert.Equal(t, ColorLime, result.Color)
	assert.Equal(t, "partial results", result.Error)
	for _, item := range result.Items {
		assert.Equal(t, "P", item.Platform)
		assert.Equal(t, []string{"no login required"}, item.Tags)
	}

	// Tags are copied per item.
	result.Items[0].Tags[0] = "changed"
	assert.Equal(t, "no login required", result.Items[1].Tags[0])
}

func TestNormalizeResult_EmptyItems(t *testing.T) {
	result := normalizeResult(resultPayload{Name: "P", Color: "red", Error: "timeout"})

	assert.NotNil(t, result.Items)
	assert.Empty(t, result.Items)
	assert.Equal(t, ColorRed, result.Color)
	assert.Equal(t, "", result.URL)
}

func TestParseColor(t *testing.T) {
	assert.Equal(t, ColorLime, ParseColor("lime"))
	assert.Equal(t, ColorWhite, ParseColor("white"))
	assert.Equal(t, ColorGold, ParseColor("gold"))
	assert.Equal(t, ColorRed, ParseColor("red"))
	assert.Equal(t, ColorWhite, ParseColor(""))
	assert.Equal(t, ColorWhite, ParseColor("LIME"))
}
