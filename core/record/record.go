// Package record defines the canonical lens record, the field-level merge that
// reconciles partial sources, and the builders that shape upstream payloads
// into records.
package record

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lensvault/lensvault/internal/jsontree"
)

// StatusLive marks records assembled from a live upstream page.
const StatusLive = "Live"

var (
	uuidPattern         = regexp.MustCompile(`^[0-9a-f]{32}$`)
	deeplinkUUIDPattern = regexp.MustCompile(`(?i)uuid=([0-9a-fA-F]{32})`)
)

// LensRecord is the canonical output unit of a resolution. String, slice, and
// map fields are empty when zero-length; LastUpdated uses a pointer so a
// present zero is distinguishable from absence.
type LensRecord struct {
	UnlockableID            string         `json:"unlockable_id"`
	UUID                    string         `json:"uuid"`
	Deeplink                string         `json:"deeplink"`
	SnapcodeURL             string         `json:"snapcode_url"`
	LensName                string         `json:"lens_name"`
	LensStatus              string         `json:"lens_status"`
	CreatorSearchTags       []string       `json:"lens_creator_search_tags"`
	ImageSequence           map[string]any `json:"image_sequence"`
	UserDisplayName         string         `json:"user_display_name"`
	UserName                string         `json:"user_name"`
	UserProfileURL          string         `json:"user_profile_url"`
	UserID                  string         `json:"user_id"`
	UserProfileID           string         `json:"user_profile_id"`
	ObfuscatedUserSlug      string         `json:"obfuscated_user_slug"`
	IconURL                 string         `json:"icon_url"`
	ThumbnailMediaURL       string         `json:"thumbnail_media_url"`
	ThumbnailMediaPosterURL string         `json:"thumbnail_media_poster_url"`
	StandardMediaURL        string         `json:"standard_media_url"`
	LensID                  string         `json:"lens_id"`
	LensURL                 string         `json:"lens_url"`
	Signature               string         `json:"signature"`
	SHA256                  string         `json:"sha256"`
	LastUpdated             *int64         `json:"last_updated,omitempty"`
}

// Empty reports whether every field of the record is empty.
func (r LensRecord) Empty() bool {
	return r.UnlockableID == "" && r.UUID == "" && r.Deeplink == "" && r.SnapcodeURL == "" &&
		r.LensName == "" && r.LensStatus == "" && len(r.CreatorSearchTags) == 0 &&
		len(r.ImageSequence) == 0 && r.UserDisplayName == "" && r.UserName == "" &&
		r.UserProfileURL == "" && r.UserID == "" && r.UserProfileID == "" &&
		r.ObfuscatedUserSlug == "" && r.IconURL == "" && r.ThumbnailMediaURL == "" &&
		r.ThumbnailMediaPosterURL == "" && r.StandardMediaURL == "" && r.LensID == "" &&
		r.LensURL == "" && r.Signature == "" && r.SHA256 == "" && r.LastUpdated == nil
}

// Merge overlays every non-empty field of primary onto secondary, field-wise.
// Fields empty in primary are back-filled from secondary. Callers chaining
// more than two sources must merge in a single fixed precedence order.
func Merge(primary, secondary LensRecord) LensRecord {
	out := secondary
	out.UnlockableID = pickString(primary.UnlockableID, secondary.UnlockableID)
	out.UUID = pickString(primary.UUID, secondary.UUID)
	out.Deeplink = pickString(primary.Deeplink, secondary.Deeplink)
	out.SnapcodeURL = pickString(primary.SnapcodeURL, secondary.SnapcodeURL)
	out.LensName = pickString(primary.LensName, secondary.LensName)
	out.LensStatus = pickString(primary.LensStatus, secondary.LensStatus)
	out.CreatorSearchTags = pickStrings(primary.CreatorSearchTags, secondary.CreatorSearchTags)
	out.ImageSequence = pickMap(primary.ImageSequence, secondary.ImageSequence)
	out.UserDisplayName = pickString(primary.UserDisplayName, secondary.UserDisplayName)
	out.UserName = pickString(primary.UserName, secondary.UserName)
	out.UserProfileURL = pickString(primary.UserProfileURL, secondary.UserProfileURL)
	out.UserID = pickString(primary.UserID, secondary.UserID)
	out.UserProfileID = pickString(primary.UserProfileID, secondary.UserProfileID)
	out.ObfuscatedUserSlug = pickString(primary.ObfuscatedUserSlug, secondary.ObfuscatedUserSlug)
	out.IconURL = pickString(primary.IconURL, secondary.IconURL)
	out.ThumbnailMediaURL = pickString(primary.ThumbnailMediaURL, secondary.ThumbnailMediaURL)
	out.ThumbnailMediaPosterURL = pickString(primary.ThumbnailMediaPosterURL, secondary.ThumbnailMediaPosterURL)
	out.StandardMediaURL = pickString(primary.StandardMediaURL, secondary.StandardMediaURL)
	out.LensID = pickString(primary.LensID, secondary.LensID)
	out.LensURL = pickString(primary.LensURL, secondary.LensURL)
	out.Signature = pickString(primary.Signature, secondary.Signature)
	out.SHA256 = pickString(primary.SHA256, secondary.SHA256)
	out.LastUpdated = pickInt64(primary.LastUpdated, secondary.LastUpdated)
	return out
}

// pickString prefers the primary value unless empty. A present zero or false
// would win here too; only zero-length values count as empty.
func pickString(primary, secondary string) string {
	if primary != "" {
		return primary
	}
	return secondary
}

func pickStrings(primary, secondary []string) []string {
	if len(primary) > 0 {
		return primary
	}
	return secondary
}

func pickMap(primary, secondary map[string]any) map[string]any {
	if len(primary) > 0 {
		return primary
	}
	return secondary
}

func pickInt64(primary, secondary *int64) *int64 {
	if primary != nil {
		return primary
	}
	return secondary
}

// TransformStrings returns a copy of the record with fn applied to every
// string field, including slice elements and string map values.
func (r LensRecord) TransformStrings(fn func(string) string) LensRecord {
	out := r
	out.UnlockableID = fn(r.UnlockableID)
	out.UUID = fn(r.UUID)
	out.Deeplink = fn(r.Deeplink)
	out.SnapcodeURL = fn(r.SnapcodeURL)
	out.LensName = fn(r.LensName)
	out.LensStatus = fn(r.LensStatus)
	if len(r.CreatorSearchTags) > 0 {
		out.CreatorSearchTags = make([]string, len(r.CreatorSearchTags))
		for i, tag := range r.CreatorSearchTags {
			out.CreatorSearchTags[i] = fn(tag)
		}
	}
	if len(r.ImageSequence) > 0 {
		out.ImageSequence = make(map[string]any, len(r.ImageSequence))
		for key, value := range r.ImageSequence {
			if s, ok := value.(string); ok {
				out.ImageSequence[key] = fn(s)
				continue
			}
			out.ImageSequence[key] = value
		}
	}
	out.UserDisplayName = fn(r.UserDisplayName)
	out.UserName = fn(r.UserName)
	out.UserProfileURL = fn(r.UserProfileURL)
	out.UserID = fn(r.UserID)
	out.UserProfileID = fn(r.UserProfileID)
	out.ObfuscatedUserSlug = fn(r.ObfuscatedUserSlug)
	out.IconURL = fn(r.IconURL)
	out.ThumbnailMediaURL = fn(r.ThumbnailMediaURL)
	out.ThumbnailMediaPosterURL = fn(r.ThumbnailMediaPosterURL)
	out.StandardMediaURL = fn(r.StandardMediaURL)
	out.LensID = fn(r.LensID)
	out.LensURL = fn(r.LensURL)
	out.Signature = fn(r.Signature)
	out.SHA256 = fn(r.SHA256)
	return out
}

// UUIDFromDeeplink extracts the 32-hex lens identifier from a well-formed
// deeplink URL, lowercased, or "" when absent.
func UUIDFromDeeplink(deeplink string) string {
	match := deeplinkUUIDPattern.FindStringSubmatch(deeplink)
	if len(match) != 2 {
		return ""
	}
	return strings.ToLower(match[1])
}

// ValidUUID reports whether s is a 32-char lowercase hex identifier.
func ValidUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

// FromItem shapes a live-page or listing item into a LensRecord. The uuid is
// derived with fixed precedence: explicit identifier, then deeplink, then the
// caller-supplied fallback hash.
func FromItem(item *jsontree.Value, fallbackHash string) LensRecord {
	deeplink := firstString(item, "deeplinkUrl", "unlockUrl", "deeplink")

	uuid := strings.ToLower(firstString(item, "scannableUuid", "uuid"))
	if uuid == "" {
		uuid = UUIDFromDeeplink(deeplink)
	}
	if uuid == "" {
		uuid = strings.ToLower(strings.TrimSpace(fallbackHash))
	}

	rec := LensRecord{
		UnlockableID:            firstString(item, "lensId", "unlockableId", "id"),
		UUID:                    uuid,
		Deeplink:                deeplink,
		SnapcodeURL:             firstString(item, "snapcodeUrl"),
		LensName:                firstString(item, "lensName", "name"),
		LensStatus:              StatusLive,
		CreatorSearchTags:       stringList(item.Field("lensCreatorSearchTags")),
		ImageSequence:           imageSequence(item.Field("lensPreviewSequence")),
		UserDisplayName:         firstString(item, "lensCreatorDisplayName", "creatorName", "displayName"),
		UserName:                firstString(item, "lensCreatorUsername", "userName"),
		UserProfileURL:          firstString(item, "lensCreatorProfileUrl", "profileUrl"),
		UserID:                  firstString(item, "creatorUserId", "userId"),
		UserProfileID:           firstString(item, "creatorProfileId", "profileId"),
		ObfuscatedUserSlug:      firstString(item, "obfuscatedUserSlug", "obfuscatedSlug"),
		IconURL:                 firstString(item, "iconUrl", "lensPreviewImageUrl"),
		ThumbnailMediaURL:       firstString(item, "previewVideoUrl", "thumbnailMediaUrl"),
		ThumbnailMediaPosterURL: firstString(item, "previewImageUrl", "thumbnailMediaPosterUrl"),
		StandardMediaURL:        firstString(item, "standardMediaUrl"),
		LensID:                  "",
		LensURL:                 "",
		Signature:               "",
		SHA256:                  "",
		LastUpdated:             nil,
	}
	return rec
}

// UnlockFromItem shapes an unlock-source item into the artifact fields of a
// LensRecord. last_updated is normalized to millisecond epoch.
func UnlockFromItem(item *jsontree.Value) LensRecord {
	rec := LensRecord{} //nolint:exhaustruct
	rec.LensID = firstString(item, "lensId", "id")
	rec.LensURL = firstString(item, "lensUrl", "url")
	rec.Signature = firstString(item, "signature", "sig")
	rec.SHA256 = firstString(item, "sha256", "hash")
	rec.LastUpdated = epochMillis(item.Field("lastUpdated"))
	return rec
}

// firstString returns the first non-empty string field among keys. Numeric
// identifiers are rendered as their decimal form.
func firstString(item *jsontree.Value, keys ...string) string {
	for _, key := range keys {
		field := item.Field(key)
		switch field.Kind() {
		case jsontree.String:
			if s := strings.TrimSpace(field.Str()); s != "" {
				return s
			}
		case jsontree.Number:
			return field.NumberString()
		default:
		}
	}
	return ""
}

func stringList(v *jsontree.Value) []string {
	if v.Len() == 0 {
		return nil
	}
	out := make([]string, 0, v.Len())
	for _, item := range v.Items() {
		if s := strings.TrimSpace(item.Str()); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func imageSequence(v *jsontree.Value) map[string]any {
	pattern := firstString(v, "url", "webpUrl", "urlPattern")
	if pattern == "" {
		return nil
	}
	seq := map[string]any{"url_pattern": pattern}
	if size := v.Field("numFrames"); size.Kind() == jsontree.Number {
		seq["size"] = size.Int64()
	}
	if interval := v.Field("animationIntervalMs"); interval.Kind() == jsontree.Number {
		seq["frame_interval_ms"] = interval.Int64()
	}
	return seq
}

// epochMillis accepts a seconds or milliseconds epoch, numeric or string, and
// normalizes to milliseconds.
func epochMillis(v *jsontree.Value) *int64 {
	var raw int64
	switch v.Kind() {
	case jsontree.Number:
		raw = v.Int64()
	case jsontree.String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v.Str()), 10, 64)
		if err != nil {
			return nil
		}
		raw = parsed
	default:
		return nil
	}
	if raw > 0 && raw < 1_000_000_000_000 {
		raw *= 1000
	}
	return &raw
}
