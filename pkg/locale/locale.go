package locale

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Locale holds month names and a short date pattern for one language.
type Locale struct {
	tag    language.Tag
	months [12]string
	// inDate overrides months inside dates for languages that decline them.
	inDate *[12]string
	// short renders day, month name and year.
	short func(day int, month string, year int) string
}

var (
	english = Locale{
		tag: language.English,
		months: [12]string{"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December"},
		short: func(d int, m string, y int) string { return fmt.Sprintf("%s %d, %d", m[:3], d, y) },
	}
	german = Locale{
		tag: language.German,
		months: [12]string{"Januar", "Februar", "März", "April", "Mai", "Juni",
			"Juli", "August", "September", "Oktober", "November", "Dezember"},
		short: func(d int, m string, y int) string { return fmt.Sprintf("%d. %s %d", d, m, y) },
	}
	french = Locale{
		tag: language.French,
		months: [12]string{"janvier", "février", "mars", "avril", "mai", "juin",
			"juillet", "août", "septembre", "octobre", "novembre", "décembre"},
		short: func(d int, m string, y int) string { return fmt.Sprintf("%d %s %d", d, m, y) },
	}
	spanish = Locale{
		tag: language.Spanish,
		months: [12]string{"enero", "febrero", "marzo", "abril", "mayo", "junio",
			"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"},
		short: func(d int, m string, y int) string { return fmt.Sprintf("%d de %s de %d", d, m, y) },
	}
	polish = Locale{
		tag: language.Polish,
		months: [12]string{"styczeń", "luty", "marzec", "kwiecień", "maj", "czerwiec",
			"lipiec", "sierpień", "wrzesień", "październik", "listopad", "grudzień"},
		inDate: &[12]string{"stycznia", "lutego", "marca", "kwietnia", "maja", "czerwca",
			"lipca", "sierpnia", "września", "października", "listopada", "grudnia"},
		short: func(d int, m string, y int) string { return fmt.Sprintf("%d %s %d", d, m, y) },
	}
)

// supported lists locales in matcher order; the first is the fallback.
var supported = []Locale{english, german, french, spanish, polish}

var matcher = language.NewMatcher(tags())

func tags() []language.Tag {
	out := make([]language.Tag, len(supported))
	for i, l := range supported {
		out[i] = l.tag
	}
	return out
}

// Default is the fallback locale.
func Default() Locale { return supported[0] }

// Match returns the closest supported locale for a BCP 47 tag.
func Match(tag string) Locale {
	t, err := language.Parse(tag)
	if err != nil {
		return Default()
	}
	return pick(t)
}

// FromAcceptLanguage picks a locale from an Accept-Language header value,
// falling back to fallback when the header is empty or unparsable.
func FromAcceptLanguage(header string, fallback Locale) Locale {
	if header == "" {
		return fallback
	}
	prefs, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(prefs) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(prefs...)
	if conf == language.No {
		return fallback
	}
	return supported[idx]
}

func pick(t language.Tag) Locale {
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return Default()
	}
	return supported[idx]
}

// Tag returns the locale's language tag.
func (l Locale) Tag() language.Tag { return l.tag }

// Month returns the full month name.
func (l Locale) Month(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return l.months[m-1]
}

// ShortDate formats t as a short human-readable date.
func (l Locale) ShortDate(t time.Time) string {
	m := l.Month(t.Month())
	if l.inDate != nil {
		m = l.inDate[t.Month()-1]
	}
	return l.short(t.Day(), m, t.Year())
}
