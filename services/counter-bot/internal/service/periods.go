package service

import (
	"time"

	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
)

// WeekToDate covers Monday of yesterday's ISO week through yesterday.
func WeekToDate(yesterday time.Time) models.DateRange {
	yesterday = models.DateOf(yesterday)
	offset := (int(yesterday.Weekday()) + 6) % 7
	return models.DateRange{Start: models.AddDays(yesterday, -offset), End: yesterday}
}

// PrecedingWeekPeriod is the same window one week earlier.
func PrecedingWeekPeriod(period models.DateRange) models.DateRange {
	return period.Shift(-7)
}

func YearToDate(yesterday time.Time) models.DateRange {
	yesterday = models.DateOf(yesterday)
	return models.DateRange{Start: models.NewDate(yesterday.Year(), time.January, 1), End: yesterday}
}

// SameDayLastYear returns the same month and day one year earlier; Feb 29
// maps to Feb 28.
func SameDayLastYear(day time.Time) time.Time {
	day = models.DateOf(day)
	if day.Month() == time.February && day.Day() == 29 {
		return models.NewDate(day.Year()-1, time.February, 28)
	}
	return models.NewDate(day.Year()-1, day.Month(), day.Day())
}

func PreviousYearToDate(yesterday time.Time) models.DateRange {
	end := SameDayLastYear(yesterday)
	return models.DateRange{Start: models.NewDate(end.Year(), time.January, 1), End: end}
}

func FullYear(year int) models.DateRange {
	return models.DateRange{
		Start: models.NewDate(year, time.January, 1),
		End:   models.NewDate(year, time.December, 31),
	}
}

func IsCurrentWeek(day, today time.Time) bool {
	dayYear, dayWeek := models.DateOf(day).ISOWeek()
	todayYear, todayWeek := models.DateOf(today).ISOWeek()
	return dayYear == todayYear && dayWeek == todayWeek
}

func IsCurrentYear(day, today time.Time) bool {
	return models.DateOf(day).Year() == models.DateOf(today).Year()
}
