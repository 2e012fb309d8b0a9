package publisher

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hoanghai1803/feedwright/internal/models"
)

// Limits for generated slugs and SEO fields.
const (
	MinLengthRatio    = 0.6
	maxSlugLength     = 70
	maxSEOTitleRunes  = 60
	maxFocusWordCount = 10
)

const sourceCreditFormat = `<p><em>Fonte original: <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a></em></p>`

var (
	tagPattern      = regexp.MustCompile("<[^>]*>")
	spacePattern    = regexp.MustCompile(`\s+`)
	nonSlugPattern  = regexp.MustCompile(`[^a-z0-9]+`)
	lineBreak       = regexp.MustCompile(`\r\n|\r|\n`)
	trailingWordCut = regexp.MustCompile(`\s+\S*$`)
)

var slugStopwords = map[string]bool{
	"de": true, "da": true, "do": true, "das": true, "dos": true,
	"para": true, "por": true, "e": true, "a": true, "o": true,
	"um": true, "uma": true, "no": true, "na": true, "nos": true, "nas": true,
}

// StripTags removes markup and surrounding whitespace.
func StripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// plainWords strips markup and splits on whitespace.
func plainWords(s string) []string {
	return strings.Fields(spacePattern.ReplaceAllString(StripTags(s), " "))
}

// isTooShort reports whether the rewrite keeps less than MinLengthRatio of
// the original word count. Either side being empty never counts as short.
func isTooShort(original, rewritten string) bool {
	orig := plainWords(original)
	rewr := plainWords(rewritten)
	if len(orig) == 0 || len(rewr) == 0 {
		return false
	}
	return float64(len(rewr))/float64(len(orig)) < MinLengthRatio
}

// buildBody returns the draft HTML: the rewritten content, or the original
// text as escaped paragraphs, followed by a credit line linking the source.
func buildBody(a models.Article, res models.AIResult) string {
	var body string
	switch {
	case res.Content != "":
		body = res.Content
	case a.ContentText != "":
		var parts []string
		for _, line := range lineBreak.Split(a.ContentText, -1) {
			if line = strings.TrimSpace(line); line != "" {
				parts = append(parts, "<p>"+html.EscapeString(line)+"</p>")
			}
		}
		body = strings.Join(parts, "\n\n")
	}

	if link := safeLink(a.Link); link != "" {
		body += "\n\n" + fmt.Sprintf(sourceCreditFormat, link)
	}
	return body
}

// safeLink returns the escaped link when it is an absolute http(s) URL.
func safeLink(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return html.EscapeString(u.String())
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug returns a lowercase ASCII slug for title. Slugs longer than 70
// characters lose Portuguese stopwords first, then get truncated.
func Slug(title string) string {
	plain, _, err := transform.String(stripMarks, title)
	if err != nil {
		plain = title
	}
	base := strings.Trim(nonSlugPattern.ReplaceAllString(strings.ToLower(plain), "-"), "-")
	if len(base) <= maxSlugLength {
		return base
	}

	var kept []string
	for _, part := range strings.Split(base, "-") {
		if !slugStopwords[part] {
			kept = append(kept, part)
		}
	}
	slug := strings.Join(kept, "-")
	if slug == "" {
		slug = base
	}
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// SEOTitle shortens title to at most 60 characters without cutting a word.
func SEOTitle(title string) string {
	title = StripTags(title)
	if utf8.RuneCountInString(title) <= maxSEOTitleRunes {
		return title
	}
	cut := string([]rune(title)[:maxSEOTitleRunes])
	return strings.TrimSpace(trailingWordCut.ReplaceAllString(cut, ""))
}

// FocusKeyphrase returns the first ten words of title.
func FocusKeyphrase(title string) string {
	words := strings.Fields(StripTags(title))
	if len(words) > maxFocusWordCount {
		words = words[:maxFocusWordCount]
	}
	return strings.Join(words, " ")
}
