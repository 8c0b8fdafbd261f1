package catalog

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// rawProduct is one record as the catalog API returns it. WordPress-flavored
// APIs are loose about shapes: titles may be plain strings or
// {"rendered": ...} objects, prices may be numbers or strings.
type rawProduct struct {
	ID                  flexString     `json:"id"`
	Title               renderedField  `json:"title"`
	Excerpt             renderedField  `json:"excerpt"`
	Link                string         `json:"link"`
	Price               flexString     `json:"price"`
	RegularPrice        flexString     `json:"regular_price"`
	FeaturedMedia       int64          `json:"featured_media"`
	FeaturedMediaURL    string         `json:"featured_media_url"`
	BetterFeaturedImage *featuredImage `json:"better_featured_image"`
	YoastHeadJSON       *yoastHead     `json:"yoast_head_json"`
}

type featuredImage struct {
	SourceURL string `json:"source_url"`
}

type yoastHead struct {
	OGImage []ogImage `json:"og_image"`
}

type ogImage struct {
	URL string `json:"url"`
}

// renderedField accepts both "text" and {"rendered": "text"}.
type renderedField struct {
	Value string
}

func (f *renderedField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Value = s
		return nil
	}
	var obj struct {
		Rendered string `json:"rendered"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.Value = obj.Rendered
	return nil
}

// flexString accepts a JSON string or number and stores it as a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// imageStrategy tries to locate an image URL on a raw record without any
// further network calls. Strategies are applied in order; the first non-empty
// URL wins. The media-by-id lookup is handled separately by the client
// because it needs a second request.
type imageStrategy func(*rawProduct) string

var imageStrategies = []imageStrategy{
	directImageURL,
	betterFeaturedImageURL,
	yoastOGImageURL,
}

func directImageURL(p *rawProduct) string {
	return p.FeaturedMediaURL
}

func betterFeaturedImageURL(p *rawProduct) string {
	if p.BetterFeaturedImage == nil {
		return ""
	}
	return p.BetterFeaturedImage.SourceURL
}

func yoastOGImageURL(p *rawProduct) string {
	if p.YoastHeadJSON == nil || len(p.YoastHeadJSON.OGImage) == 0 {
		return ""
	}
	return p.YoastHeadJSON.OGImage[0].URL
}

// extractImageURL runs the ordered strategy list.
func extractImageURL(p *rawProduct) string {
	for _, strategy := range imageStrategies {
		if url := strategy(p); url != "" {
			return url
		}
	}
	return ""
}

// stripMarkup removes HTML tags and entities from a text field and trims
// surrounding whitespace.
func stripMarkup(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
