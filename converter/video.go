package converter

import (
	"fmt"
	"regexp"
)

// videoPatterns capture the video id of the accepted video-sharing URL forms.
var videoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?youtube\.com/watch\?(?:[^#]*&)?v=([\w-]+)`),
	regexp.MustCompile(`^(?:https?://)?youtu\.be/([\w-]+)`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?youtube\.com/(?:embed|v|shorts)/([\w-]+)`),
}

// VideoID returns the id of a video-sharing URL.
func VideoID(url string) (string, bool) {
	for _, re := range videoPatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// IsVideoURL reports whether url names a video on a video-sharing site.
func IsVideoURL(url string) bool {
	_, ok := VideoID(url)
	return ok
}

// RenderVideo describes a video URL without fetching any media.
func RenderVideo(url string) (string, error) {
	id, ok := VideoID(url)
	if !ok {
		return "", fmt.Errorf("not a video URL: %s", url)
	}
	return fmt.Sprintf(`# YouTube Video

## Video Link
[Watch on YouTube](%[1]s)

## Embedded Video
[![YouTube Video](https://img.youtube.com/vi/%[2]s/maxresdefault.jpg)](%[1]s)

## Video ID
`+"`%[2]s`"+`

## Notes
- Original URL: %[1]s
- Transcripts are not fetched; use the platform's captions or a transcription service.
`, url, id), nil
}
