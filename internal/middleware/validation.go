package middleware

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// maxContentLength bounds stored message content (~100KB).
const maxContentLength = 100000

var validate = validator.New()

// Validate checks v's validate tags and returns a readable error listing
// the failing fields.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) > maxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}

// IsYouTubeURL reports whether url points at a YouTube video.
func IsYouTubeURL(url string) bool {
	u := strings.ToLower(strings.TrimSpace(url))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	u = strings.TrimPrefix(u, "m.")
	switch {
	case strings.HasPrefix(u, "youtube.com/watch?") && strings.Contains(u, "v="):
		return true
	case strings.HasPrefix(u, "youtu.be/") && len(u) > len("youtu.be/"):
		return true
	case strings.HasPrefix(u, "youtube.com/shorts/") && len(u) > len("youtube.com/shorts/"):
		return true
	}
	return false
}
