package locale_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/notemail/pkg/locale"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want language.Tag
	}{
		{in: "en", want: language.English},
		{in: "en-GB", want: language.English},
		{in: "de-AT", want: language.German},
		{in: "fr-CA", want: language.French},
		{in: "es-MX", want: language.Spanish},
		{in: "pl", want: language.Polish},
		{in: "ja", want: language.English},
		{in: "not a tag!", want: language.English},
		{in: "", want: language.English},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, locale.Match(tt.in).Tag())
		})
	}
}

func TestFromAcceptLanguage(t *testing.T) {
	t.Parallel()

	fallback := locale.Match("de")
	assert.Equal(t, language.German, locale.FromAcceptLanguage("", fallback).Tag())
	assert.Equal(t, language.French, locale.FromAcceptLanguage("fr-CH, fr;q=0.9, en;q=0.8", fallback).Tag())
	assert.Equal(t, language.Polish, locale.FromAcceptLanguage("ja;q=0.9, pl;q=0.8", fallback).Tag())
	assert.Equal(t, language.German, locale.FromAcceptLanguage(";;;q=bad", fallback).Tag())
}

func TestFormatting(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		tag   string
		month string
		short string
	}{
		{tag: "en", month: "March", short: "Mar 5, 2025"},
		{tag: "de", month: "März", short: "5. März 2025"},
		{tag: "fr", month: "mars", short: "5 mars 2025"},
		{tag: "es", month: "marzo", short: "5 de marzo de 2025"},
		{tag: "pl", month: "marzec", short: "5 marca 2025"},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			t.Parallel()

			loc := locale.Match(tt.tag)
			assert.Equal(t, tt.month, loc.Month(day.Month()))
			assert.Equal(t, tt.short, loc.ShortDate(day))
		})
	}

	assert.Empty(t, locale.Default().Month(time.Month(13)))
}
