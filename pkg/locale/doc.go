// Package locale formats dates for template bindings in a handful of
// languages.
//
// Language selection goes through golang.org/x/text/language so that
// "en-GB", "de-AT" or an Accept-Language header resolve to the closest
// supported locale; unknown languages fall back to English.
//
//	loc := locale.Match("de-AT")
//	loc.Month(time.March)       // "März"
//	loc.ShortDate(t)            // "5. März 2025"
package locale
