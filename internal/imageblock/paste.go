package imageblock

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"inkwell/internal/editor/ports"
	"inkwell/internal/events"
)

// imageURLPattern recognizes direct image URLs in pasted text. Scheme, host
// and extension match case-insensitively; a trailing query must stay
// lowercase alphanumeric.
var imageURLPattern = regexp.MustCompile(`^(?i:https?://\S+\.(?:gif|jpe?g|tiff|png|svg|webp))(?:\?[a-z0-9]*)?$`)

// MatchesImageURL reports whether text looks like a direct image URL.
func MatchesImageURL(text string) bool {
	return imageURLPattern.MatchString(text)
}

// PasteConfig declares what the host should intercept for this tool:
// img elements, direct image URLs and image files.
func PasteConfig() ports.PasteConfig {
	return ports.PasteConfig{
		Tags:      []string{"img"},
		Patterns:  map[string]string{"image": imageURLPattern.String()},
		MimeTypes: []string{"image/*"},
	}
}

// Route says how a classified paste continues.
type Route string

const (
	// RouteNone drops the event
	RouteNone Route = "none"

	// RouteURL uploads by URL
	RouteURL Route = "url"

	// RouteBlobFetch materializes a session blob, then uploads its bytes
	RouteBlobFetch Route = "blob-fetch"

	// RouteFileUpload uploads the delivered bytes directly
	RouteFileUpload Route = "file"
)

// Classification is the outcome of classifying one paste event.
type Classification struct {
	Kind   ports.PasteKind
	Route  Route
	Source string
	Reason string
}

// Classify maps a paste event to its upload route. It is pure: no tool
// state, no side effects.
//
// Intercepted img elements contribute their src attribute; blob sources
// cannot be sent to a backend as URLs and are routed through a fetch.
// Pattern matches become URL uploads and binary deliveries become file
// uploads.
func Classify(ev ports.PasteEvent) Classification {
	c := Classification{Kind: ev.Kind}
	switch ev.Kind {
	case ports.PasteTag:
		src := tagImageSource(ev.HTML)
		if src == "" {
			c.Route = RouteNone
			c.Reason = "intercepted element has no image source"
			return c
		}
		c.Source = src
		if strings.HasPrefix(src, "blob:") {
			c.Route = RouteBlobFetch
			return c
		}
		c.Route = RouteURL
		return c

	case ports.PastePattern:
		if ev.Text == "" {
			c.Route = RouteNone
			c.Reason = "empty pattern match"
			return c
		}
		c.Source = ev.Text
		c.Route = RouteURL
		return c

	case ports.PasteFile:
		if ev.File == nil || len(ev.File.Data) == 0 {
			c.Route = RouteNone
			c.Reason = "file paste without payload"
			return c
		}
		c.Source = ev.File.Name
		c.Route = RouteFileUpload
		return c

	default:
		c.Route = RouteNone
		c.Reason = "unknown paste kind"
		return c
	}
}

// OnPaste classifies a substitution event and starts the matching upload.
// Unroutable events are logged and dropped; they never fail the block.
func (t *Tool) OnPaste(ev ports.PasteEvent) {
	c := Classify(ev)
	t.emit(events.TypePasteClassified, events.Fields{
		"kind":  string(c.Kind),
		"route": string(c.Route),
	})

	switch c.Route {
	case RouteURL:
		source := sourceTag
		if c.Kind == ports.PastePattern {
			source = sourcePattern
		}
		t.uploadURL(source, c.Source)
	case RouteBlobFetch:
		t.uploadBlob(c.Source)
	case RouteFileUpload:
		t.uploadFile(sourceFile, *ev.File)
	default:
		t.logger.Debug("ignoring paste: %s", c.Reason)
	}
}

// tagImageSource extracts the src attribute from intercepted markup. The
// host hands over raw HTML; parsing it properly beats scraping attributes
// with string operations.
func tagImageSource(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img").First().Attr("src")
	return strings.TrimSpace(src)
}
