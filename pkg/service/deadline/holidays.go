package deadline

import "time"

// fixedHolidays are Chilean national holidays that fall on the same date
// every year. Movable holidays (Viernes Santo, elections) are not modeled;
// a deadline landing on one is a day early, which is acceptable for
// reminder purposes.
var fixedHolidays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},    // Año Nuevo
	{time.May, 1},        // Día del Trabajo
	{time.May, 21},       // Glorias Navales
	{time.July, 16},      // Virgen del Carmen
	{time.August, 15},    // Asunción de la Virgen
	{time.September, 18}, // Fiestas Patrias
	{time.September, 19}, // Glorias del Ejército
	{time.November, 1},   // Todos los Santos
	{time.December, 8},   // Inmaculada Concepción
	{time.December, 25},  // Navidad
}

// holidaySet materializes the fixed holiday table for the given years,
// keyed by date in time.DateOnly format.
func holidaySet(years ...int) map[string]struct{} {
	set := make(map[string]struct{}, len(fixedHolidays)*len(years))
	for _, y := range years {
		for _, h := range fixedHolidays {
			d := time.Date(y, h.month, h.day, 0, 0, 0, 0, time.UTC)
			set[d.Format(time.DateOnly)] = struct{}{}
		}
	}
	return set
}
