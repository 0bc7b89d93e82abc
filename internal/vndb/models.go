package vndb

// Metadata is the subset of a VNDB visual novel entry shown next to
// search results.
type Metadata struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	AltTitle    string   `json:"altTitle,omitempty" yaml:"alt_title,omitempty"`
	Released    string   `json:"released,omitempty" yaml:"released,omitempty"`
	Rating      float64  `json:"rating,omitempty" yaml:"rating,omitempty"`
	VoteCount   int      `json:"voteCount,omitempty" yaml:"vote_count,omitempty"`
	Length      int      `json:"length,omitempty" yaml:"length,omitempty"` // 1 (very short) to 5 (very long)
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty" yaml:"image_url,omitempty"`
	Developers  []string `json:"developers" yaml:"developers"`
	Aliases     []string `json:"aliases" yaml:"aliases"`
}

// URL returns the VNDB page of the entry.
func (m Metadata) URL() string {
	return "https://vndb.org/" + m.ID
}

// LengthLabel names the length bucket.
func (m Metadata) LengthLabel() string {
	switch m.Length {
	case 1:
		return "very short"
	case 2:
		return "short"
	case 3:
		return "medium"
	case 4:
		return "long"
	case 5:
		return "very long"
	default:
		return ""
	}
}

// queryRequest is the body of POST /vn.
type queryRequest struct {
	Filters []any  `json:"filters"`
	Fields  string `json:"fields"`
	Results int    `json:"results"`
	Sort    string `json:"sort,omitempty"`
}

type queryResponse struct {
	Results []vnResult `json:"results"`
	More    bool       `json:"more"`
}

type vnResult struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	AltTitle    *string  `json:"alttitle"`
	Released    *string  `json:"released"`
	Rating      *float64 `json:"rating"`
	VoteCount   int      `json:"votecount"`
	Length      *int     `json:"length"`
	Description *string  `json:"description"`
	Image       *struct {
		URL string `json:"url"`
	} `json:"image"`
	Developers []struct {
		Name string `json:"name"`
	} `json:"developers"`
	Aliases []string `json:"aliases"`
}

const queryFields = "title, alttitle, released, rating, votecount, length, description, image.url, developers.name, aliases"

func (r vnResult) toMetadata() Metadata {
	m := Metadata{
		ID:         r.ID,
		Title:      r.Title,
		VoteCount:  r.VoteCount,
		Developers: make([]string, 0, len(r.Developers)),
		Aliases:    make([]string, 0, len(r.Aliases)),
	}
	if r.AltTitle != nil {
		m.AltTitle = *r.AltTitle
	}
	if r.Released != nil {
		m.Released = *r.Released
	}
	if r.Rating != nil {
		m.Rating = *r.Rating
	}
	if r.Length != nil {
		m.Length = *r.Length
	}
	if r.Description != nil {
		m.Description = *r.Description
	}
	if r.Image != nil {
		m.ImageURL = r.Image.URL
	}
	for _, d := range r.Developers {
		m.Developers = append(m.Developers, d.Name)
	}
	m.Aliases = append(m.Aliases, r.Aliases...)
	return m
}
