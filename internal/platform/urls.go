// Package platform centralizes per-platform URL parsing (the
// "Regex duplication for platform URLs" redesign flag, spec.md §9: one
// table, callers route by platform tag) and wraps the yt-dlp-style
// downloader binary used to materialize local files from platform
// URLs (spec.md §4.6 YouTube mode, §4.7 platform segment download).
package platform

import (
	"regexp"

	"spiralmem/internal/errs"
	"spiralmem/internal/store"
)

// pattern is one platform's URL matcher plus its video-id extractor.
type pattern struct {
	platform store.Platform
	urlRe    *regexp.Regexp
	idRe     *regexp.Regexp
}

// table lists detectors in priority order: the first matching pattern
// wins (spec.md §4.1).
var table = []pattern{
	{
		platform: store.PlatformYouTube,
		urlRe:    regexp.MustCompile(`(?i)(youtube\.com|youtu\.be)`),
		idRe:     regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|embed/|v/|shorts/)|youtu\.be/)([A-Za-z0-9_-]{11})`),
	},
	{
		platform: store.PlatformSpotify,
		urlRe:    regexp.MustCompile(`(?i)spotify\.com`),
		idRe:     regexp.MustCompile(`spotify\.com/(?:episode|track)/([A-Za-z0-9]+)`),
	},
	{
		platform: store.PlatformZoom,
		urlRe:    regexp.MustCompile(`(?i)zoom\.us`),
		idRe:     regexp.MustCompile(`zoom\.us/rec/(?:play|share)/([A-Za-z0-9_\-.]+)`),
	},
	{
		platform: store.PlatformTeams,
		urlRe:    regexp.MustCompile(`(?i)teams\.microsoft\.com`),
		idRe:     regexp.MustCompile(`teams\.microsoft\.com/.*?/([A-Za-z0-9%_\-]{20,})`),
	},
	{
		platform: store.PlatformVimeo,
		urlRe:    regexp.MustCompile(`(?i)vimeo\.com`),
		idRe:     regexp.MustCompile(`vimeo\.com/(?:video/)?(\d+)`),
	},
	{
		platform: store.PlatformRumble,
		urlRe:    regexp.MustCompile(`(?i)rumble\.com`),
		idRe:     regexp.MustCompile(`rumble\.com/([a-zA-Z0-9]+)-`),
	},
}

// Detect returns the first matching platform for url, following
// table's priority order. Unknown URLs fail with UnsupportedPlatform
// (spec.md §4.1).
func Detect(url string) (store.Platform, error) {
	for _, p := range table {
		if p.urlRe.MatchString(url) {
			return p.platform, nil
		}
	}
	return "", &errs.PlatformError{
		Code:     errs.PlatformErrorUnsupported,
		Platform: "unknown",
		Reason:   "no known platform pattern matches " + url,
	}
}

// ExtractVideoID extracts the platform-specific video id from url
// using its platform's fixed regex (YouTube 11-char id, Vimeo
// numeric, etc; spec.md §4.1). Extraction failure is InvalidUrl.
func ExtractVideoID(platformName store.Platform, url string) (string, error) {
	for _, p := range table {
		if p.platform != platformName {
			continue
		}
		m := p.idRe.FindStringSubmatch(url)
		if m == nil {
			return "", &errs.PlatformError{
				Code:     errs.PlatformErrorInvalidURL,
				Platform: string(platformName),
				Reason:   "could not extract video id from " + url,
			}
		}
		return m[1], nil
	}
	return "", &errs.PlatformError{
		Code:     errs.PlatformErrorUnsupported,
		Platform: string(platformName),
		Reason:   "no pattern registered for platform",
	}
}

// ExtractYouTubeVideoID is the spec.md §8 testable property's named
// entry point: extractYouTubeVideoId("https://www.youtube.com/watch?v=XXXXXXXXXXX").
func ExtractYouTubeVideoID(url string) (string, error) {
	return ExtractVideoID(store.PlatformYouTube, url)
}
