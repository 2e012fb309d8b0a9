package settings

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/hoanghai1803/feedwright/internal/models"
)

// Weekdays lists the accepted day keys in display order.
var Weekdays = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// Defaults applied by the sanitizers.
const (
	DefaultFrequencyMinutes = 60
	DefaultItemsPerRun      = 3
	MaxItemsPerRun          = 20
	DefaultTimeOfDay        = "08:00"
	DefaultTemperature      = 0.3
)

var (
	tagPattern       = regexp.MustCompile("<[^>]*>")
	spacePattern     = regexp.MustCompile(`\s+`)
	idPattern        = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	timeOfDayPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// SanitizeFeed returns f with every field coerced into its valid range.
// A URL that is not absolute http(s) becomes empty, which callers treat as
// "drop this row". Applying SanitizeFeed twice yields the same value.
func SanitizeFeed(f models.FeedConfig) models.FeedConfig {
	f.ID = sanitizeID(f.ID)
	f.Name = sanitizeText(f.Name)
	f.URL = sanitizeURL(f.URL)
	if f.Category < 0 {
		f.Category = 0
	}
	f.Status = sanitizeStatus(f.Status)
	if f.FrequencyMinutes <= 0 {
		f.FrequencyMinutes = DefaultFrequencyMinutes
	}
	switch {
	case f.ItemsPerRun <= 0:
		f.ItemsPerRun = DefaultItemsPerRun
	case f.ItemsPerRun > MaxItemsPerRun:
		f.ItemsPerRun = MaxItemsPerRun
	}
	f.Mode = models.ModeDraft
	if f.LastRun != nil && f.LastRun.IsZero() {
		f.LastRun = nil
	}
	return f
}

// SanitizeSchedule returns s with a valid HH:MM time, a non-empty ordered
// day set and a known status.
func SanitizeSchedule(s models.Schedule) models.Schedule {
	s.ID = sanitizeID(s.ID)
	s.FeedID = sanitizeID(s.FeedID)
	s.TimeOfDay = sanitizeTimeOfDay(s.TimeOfDay)
	s.DaysOfWeek = sanitizeDays(s.DaysOfWeek)
	s.Status = sanitizeStatus(s.Status)
	if s.LastRun != nil && s.LastRun.IsZero() {
		s.LastRun = nil
	}
	return s
}

// SanitizeAI trims the AI settings and clamps the temperature to [0, 1].
// Unknown providers are cleared so the configured default applies.
func SanitizeAI(a models.AISettings) models.AISettings {
	a.Provider = strings.ToLower(strings.TrimSpace(a.Provider))
	if !lo.Contains(Providers, a.Provider) {
		a.Provider = ""
	}
	a.APIKey = strings.TrimSpace(a.APIKey)
	a.Model = strings.TrimSpace(a.Model)
	a.BaseURL = strings.TrimSpace(a.BaseURL)
	a.BasePrompt = strings.TrimSpace(a.BasePrompt)
	switch {
	case math.IsNaN(a.Temperature):
		a.Temperature = DefaultTemperature
	case a.Temperature < 0:
		a.Temperature = 0
	case a.Temperature > 1:
		a.Temperature = 1
	}
	return a
}

// SanitizeGeneral clamps the general settings.
func SanitizeGeneral(g models.GeneralSettings) models.GeneralSettings {
	if g.DefaultAuthorID < 0 {
		g.DefaultAuthorID = 0
	}
	return g
}

// Providers lists the AI providers the rewriter factory understands.
var Providers = []string{"gemini", "openai", "anthropic", "ollama"}

func sanitizeID(s string) string {
	return idPattern.ReplaceAllString(strings.TrimSpace(s), "")
}

// sanitizeText strips markup and collapses whitespace.
func sanitizeText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func sanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return raw
}

func sanitizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return models.StatusActive
	case models.StatusActive:
		return models.StatusActive
	default:
		return models.StatusInactive
	}
}

func sanitizeTimeOfDay(s string) string {
	m := timeOfDayPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return DefaultTimeOfDay
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if h > 23 || minute > 59 {
		return DefaultTimeOfDay
	}
	return fmt.Sprintf("%02d:%02d", h, minute)
}

// sanitizeDays keeps known day keys (full English names are shortened),
// removes duplicates and orders them Monday first. No valid day means every
// day.
func sanitizeDays(days []string) []string {
	keys := lo.Map(days, func(d string, _ int) string {
		d = strings.ToLower(strings.TrimSpace(d))
		if len(d) > 3 {
			d = d[:3]
		}
		return d
	})
	out := lo.Filter(Weekdays, func(day string, _ int) bool {
		return lo.Contains(keys, day)
	})
	if len(out) == 0 {
		return append([]string(nil), Weekdays...)
	}
	return out
}
