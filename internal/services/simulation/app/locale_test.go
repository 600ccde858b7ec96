package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/urnalabs/apura/internal/platform/errors/i18n"
)

func TestResolveLocale(t *testing.T) {
	tests := []struct {
		name   string
		target string
		accept string
		want   string
	}{
		{name: "no preference", want: "en-US"},
		{name: "lang parameter", target: "/v1/elections?lang=pt-BR", want: "pt-BR"},
		{name: "lang parameter case insensitive", target: "/v1/elections?lang=PT-br", want: "pt-BR"},
		{name: "lang parameter unsupported", target: "/v1/elections?lang=fr", want: "en-US"},
		{name: "lang parameter beats header", target: "/v1/elections?lang=en-US", accept: "pt-BR", want: "en-US"},
		{name: "accept language region", accept: "pt-BR", want: "pt-BR"},
		{name: "accept language base form", accept: "pt", want: "pt-BR"},
		{name: "accept language english", accept: "en", want: "en-US"},
		{name: "accept language quality order", accept: "fr;q=0.9, pt;q=0.8", want: "pt-BR"},
		{name: "accept language unsupported", accept: "de-DE", want: "en-US"},
		{name: "accept language malformed", accept: ";;;", want: "en-US"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := tc.target
			if target == "" {
				target = "/v1/elections"
			}
			r := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.accept != "" {
				r.Header.Set("Accept-Language", tc.accept)
			}
			if got := resolveLocale(r); got != tc.want {
				t.Fatalf("resolveLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveLocaleNilRequest(t *testing.T) {
	if got := resolveLocale(nil); got != i18n.BaseLocale {
		t.Fatalf("resolveLocale(nil) = %q, want %q", got, i18n.BaseLocale)
	}
}
