// Package extract normalizes raw Helix objects into crawler records.
//
// Every parser is best-effort: missing or malformed fields fall back to zero
// values and a parser returns nil only when there is nothing to describe.
package extract

import "strings"

// ChannelRecord is one enriched channel as handed to a sink.
type ChannelRecord struct {
	ChannelID       string    `json:"channelId"`
	DisplayName     string    `json:"displayName"`
	Login           string    `json:"login"`
	Description     string    `json:"description"`
	ProfileImageURL string    `json:"profileImageURL"`
	FollowersCount  int       `json:"followersCount"`
	IsPartner       bool      `json:"isPartner"`
	Stream          *Stream   `json:"stream"`
	LatestVideo     *Video    `json:"latestVideo"`
	TopClip         *Clip     `json:"topClip"`
	NextSchedule    *Schedule `json:"nextSchedule"`
	Keyword         string    `json:"keyword"`
}

// ChannelID returns the identifier of a raw channel, or "" when it has none.
func ChannelID(raw map[string]any) string {
	return firstString(raw, "id", "channelId", "broadcaster_id", "_id")
}

func displayName(raw map[string]any) string {
	return firstString(raw, "display_name", "displayName", "broadcaster_name", "user_name", "login")
}

func login(raw map[string]any) string {
	if v := firstString(raw, "broadcaster_login", "login", "name"); v != "" {
		return v
	}
	return strings.ToLower(displayName(raw))
}

func followersCount(raw map[string]any) int {
	v, ok := first(raw, "followersCount", "followers", "follower_count")
	if !ok {
		return 0
	}
	n, _ := toInt(v)
	return n
}

func isPartner(raw map[string]any) bool {
	if v, ok := raw["isPartner"]; ok {
		return truthy(v)
	}
	if v, ok := raw["broadcaster_type"]; ok {
		return v == "partner"
	}
	_, ok := first(raw, "partner", "is_partner")
	return ok
}

// BuildChannelRecord combines a raw search result with its enrichment.
func BuildChannelRecord(raw map[string]any, stream *Stream, video *Video, clip *Clip, schedule *Schedule, keyword string) ChannelRecord {
	return ChannelRecord{
		ChannelID:       ChannelID(raw),
		DisplayName:     displayName(raw),
		Login:           login(raw),
		Description:     firstString(raw, "description", "bio"),
		ProfileImageURL: firstString(raw, "profile_image_url", "profileImageURL", "thumbnail_url"),
		FollowersCount:  followersCount(raw),
		IsPartner:       isPartner(raw),
		Stream:          stream,
		LatestVideo:     video,
		TopClip:         clip,
		NextSchedule:    schedule,
		Keyword:         keyword,
	}
}
