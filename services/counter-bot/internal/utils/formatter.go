package utils

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
)

const (
	EmojiBicycle       = "🚲"
	EmojiCheckeredFlag = "🏁"
	EmojiMedal1        = "🥇"
	EmojiMedal2        = "🥈"
	EmojiMedal3        = "🥉"
	EmojiCalendar      = "📅"
	EmojiChart         = "📈"
	EmojiUpRight       = "↗️"
	EmojiDownRight     = "↘️"
)

var weeklyTemplate = template.Must(template.New("weekly").Option("missingkey=error").Parse(
	`Yesterday’s ` + EmojiBicycle + ` counts ({{.yesterdays_date}}):

` + EmojiCheckeredFlag + ` Total: {{.count_total}}

` + EmojiMedal1 + ` {{.counter_name_1}}: {{.counter_count_1}}
` + EmojiMedal2 + ` {{.counter_name_2}}: {{.counter_count_2}}
` + EmojiMedal3 + ` {{.counter_name_3}}: {{.counter_count_3}}

{{.week_reference}} week’s total: {{.count_current_total}}
Same period of preceding week’s total: {{.count_reference_total}}
Percentage change: {{.percentage_change_emoji}} {{.percentage_change_number}}
`))

var yearlyTemplate = template.Must(template.New("yearly").Option("missingkey=error").Parse(
	EmojiBicycle + ` {{.year}} so far ({{.start_date}} to {{.yesterdays_date}}):

` + EmojiCheckeredFlag + ` Total: {{.count_current_total}}
` + EmojiCalendar + ` Same period {{.previous_year}}: {{.count_reference_total}}
Percentage change: {{.percentage_change_emoji}} {{.percentage_change_number}}
` + EmojiChart + ` Daily average: {{.daily_average}}
{{.previous_year}} full year: {{.count_previous_year_total}}

` + EmojiMedal1 + ` {{.counter_name_1}}: {{.counter_count_1}}
` + EmojiMedal2 + ` {{.counter_name_2}}: {{.counter_count_2}}
` + EmojiMedal3 + ` {{.counter_name_3}}: {{.counter_count_3}}
`))

type WeeklyReportParams struct {
	Yesterday   time.Time
	CurrentWeek bool
	Current     *models.CountHighlights
	Reference   *models.CountHighlights
}

type YearlyReportParams struct {
	Yesterday         time.Time
	Current           *models.CountHighlights
	Reference         *models.CountHighlights
	PreviousYearTotal int
	// Counters ranked by their year-to-date total.
	Ranking []models.RankedCount
}

type Formatter struct {
	printer *message.Printer
}

// NewFormatter returns a formatter printing numbers for the given BCP 47
// locale. Unknown locales fall back to English.
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// PercentageChange returns the change from reference to current in percent.
// ok is false when reference is zero.
func PercentageChange(current, reference int) (change float64, ok bool) {
	if reference == 0 {
		return 0, false
	}
	return float64(current-reference) / float64(reference) * 100, true
}

func ChangeEmoji(change float64) string {
	if change < 0 {
		return EmojiDownRight
	}
	return EmojiUpRight
}

func (f *Formatter) FormatNumber(n int) string {
	return f.printer.Sprintf("%d", n)
}

func (f *Formatter) FormatPercentage(change float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return f.printer.Sprintf("%.1f%%", change)
}

func (f *Formatter) FormatWeeklyReport(params WeeklyReportParams) (string, error) {
	if params.Current == nil || params.Reference == nil {
		return "", fmt.Errorf("%w: missing highlights", models.ErrTemplate)
	}

	values := map[string]interface{}{
		"yesterdays_date":       params.Yesterday.Format("02/01"),
		"count_total":           f.FormatNumber(params.Current.MostRecentTotal),
		"week_reference":        weekReference(params.CurrentWeek),
		"count_current_total":   f.FormatNumber(params.Current.PeriodTotal),
		"count_reference_total": f.FormatNumber(params.Reference.PeriodTotal),
	}
	f.addChange(values, params.Current.PeriodTotal, params.Reference.PeriodTotal)
	if err := f.addPodium(values, params.Current.RankedCounts); err != nil {
		return "", err
	}

	return render(weeklyTemplate, values)
}

func (f *Formatter) FormatYearlyReport(params YearlyReportParams) (string, error) {
	if params.Current == nil || params.Reference == nil {
		return "", fmt.Errorf("%w: missing highlights", models.ErrTemplate)
	}

	yesterday := models.DateOf(params.Yesterday)
	values := map[string]interface{}{
		"year":                      yesterday.Year(),
		"previous_year":             yesterday.Year() - 1,
		"start_date":                models.NewDate(yesterday.Year(), time.January, 1).Format("02/01"),
		"yesterdays_date":           yesterday.Format("02/01"),
		"count_current_total":       f.FormatNumber(params.Current.PeriodTotal),
		"count_reference_total":     f.FormatNumber(params.Reference.PeriodTotal),
		"daily_average":             f.printer.Sprintf("%.0f", stat.Mean(params.Current.FlattenedCounts.Counts(), nil)),
		"count_previous_year_total": f.FormatNumber(params.PreviousYearTotal),
	}
	f.addChange(values, params.Current.PeriodTotal, params.Reference.PeriodTotal)
	if err := f.addPodium(values, params.Ranking); err != nil {
		return "", err
	}

	return render(yearlyTemplate, values)
}

func (f *Formatter) addChange(values map[string]interface{}, current, reference int) {
	change, ok := PercentageChange(current, reference)
	values["percentage_change_emoji"] = ChangeEmoji(change)
	values["percentage_change_number"] = f.FormatPercentage(change, ok)
}

func (f *Formatter) addPodium(values map[string]interface{}, ranked []models.RankedCount) error {
	if len(ranked) < 3 {
		return fmt.Errorf("%w: need 3 ranked counters, got %d", models.ErrTemplate, len(ranked))
	}
	for i, r := range ranked[:3] {
		values[fmt.Sprintf("counter_name_%d", i+1)] = r.Counter.Name
		values[fmt.Sprintf("counter_count_%d", i+1)] = f.FormatNumber(r.Count)
	}
	return nil
}

func render(tmpl *template.Template, values map[string]interface{}) (string, error) {
	var builder strings.Builder
	if err := tmpl.Execute(&builder, values); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTemplate, err)
	}
	return builder.String(), nil
}

func weekReference(currentWeek bool) string {
	if currentWeek {
		return "This"
	}
	return "Last"
}
