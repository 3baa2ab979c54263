package extract

import (
	"math"
	"strconv"
)

// Video is the most recent video of a channel.
type Video struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	LengthSeconds int    `json:"lengthSeconds"`
	ThumbnailURL  string `json:"thumbnailURL"`
	URL           string `json:"url"`
	PublishedAt   string `json:"publishedAt"`
}

// Clip is the top clip of a channel.
type Clip struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"durationSeconds"`
	ThumbnailURL    string `json:"thumbnailURL"`
	URL             string `json:"url"`
	CreatedAt       string `json:"createdAt"`
}

// Schedule is the next scheduled broadcast of a channel.
type Schedule struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	Category       string `json:"category"`
	CancelledUntil string `json:"cancelledUntil"`
}

// ParseVideo normalizes a /videos item.
func ParseVideo(raw map[string]any) *Video {
	if len(raw) == 0 {
		return nil
	}

	length := 0
	if d, ok := raw["duration"].(string); ok {
		length = ParseDuration(d)
	}

	return &Video{
		ID:            firstString(raw, "id"),
		Title:         firstString(raw, "title"),
		LengthSeconds: length,
		ThumbnailURL:  firstString(raw, "thumbnail_url"),
		URL:           firstString(raw, "url"),
		PublishedAt:   firstString(raw, "created_at", "published_at"),
	}
}

// ParseDuration converts a Helix video duration such as "3h5m10s" into
// seconds. Digits followed by an unknown unit, and trailing digits without a
// unit, are ignored. Unparseable or overflowing input yields 0.
func ParseDuration(s string) int {
	total := 0
	start := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start < 0 {
			continue
		}
		digits := s[start:i]
		start = -1

		var unit int
		switch c {
		case 'h':
			unit = 3600
		case 'm':
			unit = 60
		case 's':
			unit = 1
		default:
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil || n > (math.MaxInt-total)/unit {
			return 0
		}
		total += n * unit
	}
	return total
}

// ParseClip normalizes a /clips item. Fractional durations are truncated.
func ParseClip(raw map[string]any) *Clip {
	if len(raw) == 0 {
		return nil
	}

	duration := 0
	if v, ok := raw["duration"]; ok && v != nil {
		if f, ok := toFloat(v); ok {
			duration = int(f)
		}
	}

	return &Clip{
		ID:              firstString(raw, "id"),
		Title:           firstString(raw, "title"),
		DurationSeconds: duration,
		ThumbnailURL:    firstString(raw, "thumbnail_url"),
		URL:             firstString(raw, "url"),
		CreatedAt:       firstString(raw, "created_at"),
	}
}

// ParseSchedule picks the first segment of a /schedule object. Both
// {"segments": [...]} and {"data": {"segments": [...]}} are accepted.
func ParseSchedule(raw map[string]any) *Schedule {
	if len(raw) == 0 {
		return nil
	}

	var segments any
	if v, ok := raw["segments"]; ok {
		segments = v
	} else if data, ok := raw["data"].(map[string]any); ok {
		segments = data["segments"]
	}

	list, ok := segments.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	segment, ok := list[0].(map[string]any)
	if !ok {
		return nil
	}

	category := ""
	if c, ok := segment["category"].(map[string]any); ok {
		category = stringify(c["name"])
	}

	return &Schedule{
		ID:             firstString(segment, "id"),
		Title:          firstString(segment, "title"),
		StartTime:      firstString(segment, "start_time"),
		EndTime:        firstString(segment, "end_time"),
		Category:       category,
		CancelledUntil: firstString(segment, "canceled_until"),
	}
}
