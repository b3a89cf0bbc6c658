package decorators

import (
	"strings"

	"github.com/goodsign/monday"
)

var mondayLocales = map[string]monday.Locale{
	"en":    monday.LocaleEnUS,
	"en_us": monday.LocaleEnUS,
	"en_gb": monday.LocaleEnGB,
	"de":    monday.LocaleDeDE,
	"fr":    monday.LocaleFrFR,
	"fr_ca": monday.LocaleFrCA,
	"es":    monday.LocaleEsES,
	"it":    monday.LocaleItIT,
	"pt":    monday.LocalePtPT,
	"pt_br": monday.LocalePtBR,
	"nl":    monday.LocaleNlNL,
	"nl_be": monday.LocaleNlBE,
	"ru":    monday.LocaleRuRU,
	"pl":    monday.LocalePlPL,
	"cs":    monday.LocaleCsCZ,
	"da":    monday.LocaleDaDK,
	"fi":    monday.LocaleFiFI,
	"sv":    monday.LocaleSvSE,
	"nb":    monday.LocaleNbNO,
	"ja":    monday.LocaleJaJP,
	"zh":    monday.LocaleZhCN,
	"zh_tw": monday.LocaleZhTW,
	"ko":    monday.LocaleKoKR,
}

// mondayLocale maps a BCP 47 tag to a monday locale, trying the full tag,
// then its language, then en-US.
func mondayLocale(locale string) monday.Locale {
	locale = strings.ToLower(strings.ReplaceAll(locale, "-", "_"))
	if l, ok := mondayLocales[locale]; ok {
		return l
	}
	if lang, _, ok := strings.Cut(locale, "_"); ok {
		if l, ok := mondayLocales[lang]; ok {
			return l
		}
	}
	return monday.LocaleEnUS
}

func dayFirst(l monday.Locale) bool {
	switch l {
	case monday.LocaleEnUS, monday.LocaleJaJP, monday.LocaleZhCN, monday.LocaleZhTW, monday.LocaleKoKR:
		return false
	}
	return true
}

// dateLayout returns the Go layout of a named style. Anything else is
// taken to be a layout already.
func dateLayout(style string, l monday.Locale) string {
	asian := l == monday.LocaleJaJP || l == monday.LocaleZhCN || l == monday.LocaleZhTW
	switch style {
	case "short":
		switch {
		case l == monday.LocaleEnUS:
			return "1/2/06"
		case l == monday.LocaleDeDE:
			return "02.01.06"
		case asian:
			return "06/01/02"
		case l == monday.LocaleKoKR:
			return "06. 1. 2."
		}
		return "02/01/06"
	case "medium":
		switch {
		case l == monday.LocaleEnUS:
			return "Jan 2, 2006"
		case l == monday.LocaleDeDE:
			return "2. Jan. 2006"
		case asian:
			return "2006年1月2日"
		}
		return "2 Jan 2006"
	case "long":
		switch {
		case l == monday.LocaleEnUS:
			return "January 2, 2006"
		case l == monday.LocaleDeDE:
			return "2. January 2006"
		case asian:
			return "2006年1月2日"
		}
		return "2 January 2006"
	case "full":
		switch {
		case l == monday.LocaleEnUS:
			return "Monday, January 2, 2006"
		case l == monday.LocaleDeDE:
			return "Monday, 2. January 2006"
		case asian:
			return "2006年1月2日 Monday"
		}
		return "Monday 2 January 2006"
	case "iso":
		return "2006-01-02"
	}
	return style
}
