package settings

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hoanghai1803/feedwright/internal/models"
)

// decodeFeeds decodes a stored feed list one element at a time. Elements
// with the wrong field types are rebuilt from the fields that do parse; only
// elements that are not JSON objects at all are skipped.
func decodeFeeds(raw json.RawMessage) []models.FeedConfig {
	elems, ok := decodeArray(raw, "feeds")
	if !ok {
		return nil
	}

	feeds := make([]models.FeedConfig, 0, len(elems))
	for i, el := range elems {
		var f models.FeedConfig
		if err := json.Unmarshal(el, &f); err != nil {
			obj, ok := decodeLoose(el)
			if !ok {
				slog.Warn("skipping malformed feed entry", "index", i, "error", err)
				continue
			}
			f = models.FeedConfig{
				ID:               obj.str("id"),
				Name:             obj.str("name"),
				URL:              obj.str("url"),
				Category:         obj.int("category"),
				Status:           obj.str("status"),
				FrequencyMinutes: int(obj.int("frequency_minutes")),
				ItemsPerRun:      int(obj.int("items_per_run")),
				Mode:             obj.str("mode"),
				LastRun:          obj.time("last_run"),
			}
		}
		feeds = append(feeds, SanitizeFeed(f))
	}
	return feeds
}

// decodeSchedules is decodeFeeds for schedules.
func decodeSchedules(raw json.RawMessage) []models.Schedule {
	elems, ok := decodeArray(raw, "schedules")
	if !ok {
		return nil
	}

	schedules := make([]models.Schedule, 0, len(elems))
	for i, el := range elems {
		var s models.Schedule
		if err := json.Unmarshal(el, &s); err != nil {
			obj, ok := decodeLoose(el)
			if !ok {
				slog.Warn("skipping malformed schedule entry", "index", i, "error", err)
				continue
			}
			s = models.Schedule{
				ID:         obj.str("id"),
				FeedID:     obj.str("feed_id"),
				TimeOfDay:  obj.str("time_of_day"),
				DaysOfWeek: obj.strs("days_of_week"),
				Status:     obj.str("status"),
				LastRun:    obj.time("last_run"),
			}
		}
		schedules = append(schedules, SanitizeSchedule(s))
	}
	return schedules
}

// decodeAI decodes stored AI settings on top of the defaults, so absent
// fields keep their default value.
func decodeAI(raw json.RawMessage) models.AISettings {
	a := models.AISettings{Temperature: DefaultTemperature}
	if err := json.Unmarshal(raw, &a); err != nil {
		obj, ok := decodeLoose(raw)
		if !ok {
			slog.Warn("ignoring malformed AI settings", "error", err)
			return a
		}
		a = models.AISettings{
			Provider:    obj.str("provider"),
			APIKey:      obj.str("api_key"),
			Model:       obj.str("model"),
			Temperature: obj.float("temperature", DefaultTemperature),
			BasePrompt:  obj.str("base_prompt"),
			BaseURL:     obj.str("base_url"),
		}
	}
	return SanitizeAI(a)
}

func decodeGeneral(raw json.RawMessage) models.GeneralSettings {
	g := models.GeneralSettings{SEOMetadata: true}
	if err := json.Unmarshal(raw, &g); err != nil {
		obj, ok := decodeLoose(raw)
		if !ok {
			slog.Warn("ignoring malformed general settings", "error", err)
			return g
		}
		g.DefaultAuthorID = obj.int("default_author_id")
		if v, ok := obj["seo_metadata"].(bool); ok {
			g.SEOMetadata = v
		}
	}
	return SanitizeGeneral(g)
}

func decodeArray(raw json.RawMessage, what string) ([]json.RawMessage, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		slog.Warn("stored settings list is not an array, ignoring", "key", what, "error", err)
		return nil, false
	}
	return elems, true
}

// looseObject is a JSON object read without a schema. Its accessors convert
// between strings and numbers where the intent is unambiguous.
type looseObject map[string]any

func decodeLoose(raw json.RawMessage) (looseObject, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return looseObject(obj), true
}

func (o looseObject) str(key string) string {
	switch v := o[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}

func (o looseObject) int(key string) int64 {
	switch v := o[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

func (o looseObject) float(key string, def float64) float64 {
	switch v := o[key].(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// strs accepts either a JSON array of strings or a comma separated string.
func (o looseObject) strs(key string) []string {
	switch v := o[key].(type) {
	case []any:
		var out []string
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Split(v, ",")
	}
	return nil
}

// time accepts an RFC 3339 string or Unix seconds.
func (o looseObject) time(key string) *time.Time {
	switch v := o[key].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
			return &t
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			t := time.Unix(n, 0).UTC()
			return &t
		}
	}
	return nil
}
