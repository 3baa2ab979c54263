package extract

// Stream describes a channel that is currently live.
type Stream struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	GameName     string   `json:"gameName"`
	ViewerCount  int      `json:"viewerCount"`
	StartedAt    string   `json:"startedAt"`
	Language     string   `json:"language"`
	Tags         []string `json:"tags"`
	ThumbnailURL string   `json:"thumbnailURL"`
}

// ParseStream normalizes a /streams item. It returns nil for an empty item or
// an unreadable viewer count.
func ParseStream(raw map[string]any) *Stream {
	if len(raw) == 0 {
		return nil
	}

	viewers := 0
	if v, ok := first(raw, "viewer_count"); ok {
		n, ok := toInt(v)
		if !ok {
			return nil
		}
		viewers = n
	}

	return &Stream{
		ID:           firstString(raw, "id"),
		Title:        firstString(raw, "title"),
		GameName:     firstString(raw, "game_name", "game"),
		ViewerCount:  viewers,
		StartedAt:    firstString(raw, "started_at"),
		Language:     firstString(raw, "language"),
		Tags:         tags(raw),
		ThumbnailURL: firstString(raw, "thumbnail_url"),
	}
}

func tags(raw map[string]any) []string {
	out := []string{}
	v, ok := first(raw, "tag_ids", "tags")
	if !ok {
		return out
	}
	list, ok := v.([]any)
	if !ok {
		return out
	}
	for _, t := range list {
		out = append(out, stringify(t))
	}
	return out
}
