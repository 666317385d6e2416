package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// reviewsSegment is the path marker the offset is injected after. The site
// encodes pagination in the path, not the query string:
//
//	.../Attraction_Review-g123-d456-Reviews-Name.html        (page 1)
//	.../Attraction_Review-g123-d456-Reviews-or20-Name.html   (page 3)
const reviewsSegment = "-Reviews"

// PageURL builds the URL for the given 1-based page of a review listing.
// Page 1 is always the unmodified base URL; later pages inject the offset
// marker directly after the reviews segment.
func PageURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	offset := (page - 1) * PageSize
	idx := strings.Index(base, reviewsSegment)
	if idx < 0 {
		return base
	}
	cut := idx + len(reviewsSegment)
	return fmt.Sprintf("%s-or%d%s", base[:cut], offset, base[cut:])
}

// LanguageURL forces the listing into the given language view by appending
// the filter query parameter. The base URL is returned unchanged when it
// does not parse.
func LanguageURL(base, lang string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("filterLang", lang)
	u.RawQuery = q.Encode()
	return u.String()
}

// SlugID derives a stable work-item ID from the listing URL, falling back to
// the whole URL when no recognizable slug is present.
func SlugID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	path := strings.TrimSuffix(u.Path, ".html")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return rawURL
	}
	return path
}
