package feeds

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hoanghai1803/feedwright/internal/models"
)

// SeeSourcePrefix introduces the source link in articles that had no usable
// body text.
const SeeSourcePrefix = "Mais detalhes na fonte original: "

var blankLinesPattern = regexp.MustCompile(`\n{3,}`)

// Normalize turns a raw feed entry into a plain-text article. Markup is
// reduced to paragraphs separated by newlines; an entry whose body is empty
// after cleaning gets its title and a pointer to the source instead. When the
// entry has no image, the first <img> in its markup is used.
func Normalize(item models.RawItem) models.Article {
	text, firstImage := htmlToText(item.ContentRaw)
	if text == "" {
		text = strings.TrimSpace(item.Title)
		if item.Link != "" {
			text = strings.TrimSpace(text + "\n\n" + SeeSourcePrefix + item.Link)
		}
	}

	image := item.ImageURL
	if image == "" && firstImage != "" {
		image = resolveReference(item.Link, firstImage)
	}

	return models.Article{
		FeedID:      item.FeedID,
		Title:       item.Title,
		ContentText: text,
		Link:        item.Link,
		ImageURL:    image,
		Tags:        item.Tags,
		PublishedAt: item.PublishedAt,
		GUID:        item.GUID,
	}
}

// htmlToText walks the markup with the HTML tokenizer. Script and style
// bodies are dropped, <br> and the end of p, div and li become newlines,
// other tags vanish and entities are decoded. It also returns the src of the
// first <img>.
func htmlToText(raw string) (string, string) {
	if strings.TrimSpace(raw) == "" {
		return "", ""
	}

	var (
		sb       strings.Builder
		firstImg string
		skip     int // depth inside script or style
	)

	z := html.NewTokenizer(strings.NewReader(raw))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		switch tt {
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					skip++
				}
			case atom.Br:
				if skip == 0 {
					sb.WriteByte('\n')
				}
			case atom.Img:
				if firstImg == "" && hasAttr {
					firstImg = attrValue(z, "src")
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				if skip > 0 {
					skip--
				}
			case atom.P, atom.Div, atom.Li:
				if skip == 0 {
					sb.WriteByte('\n')
				}
			}
		}
	}

	text := strings.ReplaceAll(sb.String(), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), strings.TrimSpace(firstImg)
}

// attrValue returns the value of the named attribute of the current tag.
func attrValue(z *html.Tokenizer, key string) string {
	for {
		k, v, more := z.TagAttr()
		if string(k) == key {
			return string(v)
		}
		if !more {
			return ""
		}
	}
}

// resolveReference makes ref absolute against base when ref is relative.
func resolveReference(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ref
	}
	return b.ResolveReference(r).String()
}
