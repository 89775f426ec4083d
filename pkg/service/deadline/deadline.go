// Package deadline converts human duration phrases found in protocol steps
// ("3 días hábiles", "24 horas", "inmediato") into concrete timestamps.
package deadline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	hourPattern  = regexp.MustCompile(`(\d+)\s*horas?`)
	dayPattern   = regexp.MustCompile(`(\d+)\s*d[ií]as?`)
	numberPhrase = regexp.MustCompile(`\b(un|una|uno|dos|tres|cuatro|cinco|seis|siete|ocho|nueve|diez)\b`)
)

var wordNumbers = map[string]int{
	"un": 1, "una": 1, "uno": 1,
	"dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
	"seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10,
}

// Calculate resolves a duration phrase against a base timestamp. It returns
// nil when the phrase carries no recognizable duration: an absent deadline
// means "undetermined", never "immediate". The function is pure; it never
// reads the clock and never fails.
func Calculate(phrase string, base time.Time) *time.Time {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return nil
	}

	if strings.Contains(p, "inmediat") {
		d := base
		return &d
	}

	if m := hourPattern.FindStringSubmatch(p); m != nil {
		n, _ := strconv.Atoi(m[1])
		d := base.Add(time.Duration(n) * time.Hour)
		return &d
	}

	days, ok := dayCount(p)
	if !ok {
		return nil
	}

	if strings.Contains(p, "hábil") || strings.Contains(p, "habil") {
		d := addBusinessDays(base, days)
		return &d
	}

	d := base.AddDate(0, 0, days)
	return &d
}

func dayCount(phrase string) (int, bool) {
	if m := dayPattern.FindStringSubmatch(phrase); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}

	// "un día hábil", "dos días" and friends come back from generation
	// with the count spelled out.
	if strings.Contains(phrase, "día") || strings.Contains(phrase, "dia") {
		if m := numberPhrase.FindStringSubmatch(phrase); m != nil {
			return wordNumbers[m[1]], true
		}
	}

	return 0, false
}

// addBusinessDays walks forward from base skipping weekends and national
// holidays. The walk is capped at 4x the requested count so a corrupt
// holiday table can never loop forever.
func addBusinessDays(base time.Time, days int) time.Time {
	holidays := holidaySet(base.Year(), base.Year()+1)

	current := base
	added := 0
	for i := 0; i < days*4 && added < days; i++ {
		current = current.AddDate(0, 0, 1)
		if isBusinessDay(current, holidays) {
			added++
		}
	}
	return current
}

func isBusinessDay(t time.Time, holidays map[string]struct{}) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := holidays[t.Format(time.DateOnly)]
	return !holiday
}
