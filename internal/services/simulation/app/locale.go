package server

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"github.com/urnalabs/apura/internal/platform/errors/i18n"
)

// langParam is the query parameter used to select a response language.
const langParam = "lang"

var supportedLocaleTags = []language.Tag{
	language.AmericanEnglish,
	language.MustParse("pt-BR"),
}

var localeMatcher = language.NewMatcher(supportedLocaleTags)
var supportedLocaleSet = make(map[string]language.Tag, len(supportedLocaleTags))

func init() {
	for _, tag := range supportedLocaleTags {
		supportedLocaleSet[tag.String()] = tag
	}
}

// resolveLocale determines the catalog locale for the request: explicit lang
// query parameter first, then Accept-Language negotiation, then the base
// locale.
func resolveLocale(r *http.Request) string {
	if r == nil {
		return i18n.BaseLocale
	}

	if langValue := strings.TrimSpace(r.URL.Query().Get(langParam)); langValue != "" {
		if tag, ok := parseLocaleTag(langValue); ok {
			return tag.String()
		}
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			// The matcher's returned tag can carry extensions the
			// catalog does not key on; index into the supported set
			// instead.
			_, index, confidence := localeMatcher.Match(tags...)
			if confidence > language.No {
				return supportedLocaleTags[index].String()
			}
		}
	}

	return i18n.BaseLocale
}

func parseLocaleTag(value string) (language.Tag, bool) {
	parsed, err := language.Parse(value)
	if err != nil {
		return language.Tag{}, false
	}
	if tag, ok := supportedLocaleSet[parsed.String()]; ok {
		return tag, true
	}
	return language.Tag{}, false
}
