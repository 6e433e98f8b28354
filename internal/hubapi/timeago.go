package hubapi

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

var timeAgoMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Korean,
})

type timeAgoStrings struct {
	justNow string
	unit    func(n int, unit string) string
}

var unitNamesEN = map[string][2]string{
	"minute": {"minute", "minutes"},
	"hour":   {"hour", "hours"},
	"day":    {"day", "days"},
	"week":   {"week", "weeks"},
	"month":  {"month", "months"},
	"year":   {"year", "years"},
}

var unitNamesKO = map[string]string{
	"minute": "분",
	"hour":   "시간",
	"day":    "일",
	"week":   "주",
	"month":  "개월",
	"year":   "년",
}

var (
	timeAgoEN = timeAgoStrings{
		justNow: "just now",
		unit: func(n int, unit string) string {
			names := unitNamesEN[unit]
			if n == 1 {
				return fmt.Sprintf("1 %s ago", names[0])
			}
			return fmt.Sprintf("%d %s ago", n, names[1])
		},
	}
	timeAgoKO = timeAgoStrings{
		justNow: "방금 전",
		unit: func(n int, unit string) string {
			return fmt.Sprintf("%d%s 전", n, unitNamesKO[unit])
		},
	}
)

func stringsFor(lang string) timeAgoStrings {
	tag, _, _ := timeAgoMatcher.Match(language.Make(lang))
	if base, _ := tag.Base(); base.String() == "ko" {
		return timeAgoKO
	}
	return timeAgoEN
}

// RelativeTime describes how long before now t happened. Buckets are
// exclusive upper bounds: under a minute, 60 minutes, 24 hours, 7 days,
// 4 weeks, 12 months (of 30 days), then years (of 365 days). Future
// instants read as "just now".
func RelativeTime(t, now time.Time, lang string) string {
	s := stringsFor(lang)

	d := now.Sub(t)
	if d < time.Minute {
		return s.justNow
	}
	if d < time.Hour {
		return s.unit(int(d/time.Minute), "minute")
	}
	if d < 24*time.Hour {
		return s.unit(int(d/time.Hour), "hour")
	}

	days := int(d / (24 * time.Hour))
	switch {
	case days < 7:
		return s.unit(days, "day")
	case days < 28:
		return s.unit(days/7, "week")
	}

	months := max(days/30, 1)
	if months < 12 {
		return s.unit(months, "month")
	}
	return s.unit(max(days/365, 1), "year")
}
