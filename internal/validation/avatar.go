package validation

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// MaxAvatarSize is the largest accepted avatar upload
const MaxAvatarSize = 2 << 20

var (
	ErrAvatarEmpty    = errors.New("avatar is empty")
	ErrAvatarTooLarge = errors.New("avatar exceeds 2 MiB")
	ErrAvatarType     = errors.New("avatar must be a PNG, JPEG, GIF or WebP image")
)

var avatarTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Avatar checks an uploaded avatar by size and sniffed content type, and
// returns the detected MIME type
func Avatar(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrAvatarEmpty
	}
	if len(data) > MaxAvatarSize {
		return "", ErrAvatarTooLarge
	}

	mtype := mimetype.Detect(data)
	for _, allowed := range avatarTypes {
		if mtype.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: got %s", ErrAvatarType, mtype.String())
}
