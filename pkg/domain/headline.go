package domain

// Article is candidate article metadata as returned by a search source,
// before extraction and scoring
type Article struct {
	URL         string
	Title       string
	Author      string
	PublishedAt string
	ImageURL    string
	Description string
}

// Headline is a fully assembled, scored news entry. Immutable after
// construction, built once per candidate article.
type Headline struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	PublishedAt string   `json:"publishedAt"`
	ImageURL    string   `json:"image"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	TruthScore  string   `json:"truthScore"` // formatted percentage, e.g. "36.67%"
}
