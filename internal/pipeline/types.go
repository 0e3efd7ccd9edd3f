package pipeline

import (
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

var (
	ErrFormat                = errors.New("unacceptable mime type")
	ErrDecode                = errors.New("unsupported or corrupt image")
	ErrInvalidDimensions     = errors.New("image dimensions out of range")
	ErrUnknownTransformation = errors.New("unknown transformation")
)

// IsClientError reports whether err was caused by the uploaded input rather
// than by the server. Such errors are never worth retrying.
func IsClientError(err error) bool {
	return errors.Is(err, ErrFormat) || errors.Is(err, ErrDecode)
}

// MaxDimension is the largest width or height the decoder accepts.
const MaxDimension = 12000

// Fixed resize policy.
const (
	ThumbnailWidth  = 500
	ThumbnailHeight = 375

	AvatarWidth  = 500
	AvatarHeight = 500

	MaxSubmissionWidth  = 2048
	MaxSubmissionHeight = 2048
)

// ImageFormat is an encoded image format. The set is closed.
type ImageFormat int

const (
	JPEG ImageFormat = iota + 1
	PNG
	GIF
)

// ThumbnailFormat and AvatarFormat are always JPEG regardless of the input.
const (
	ThumbnailFormat = JPEG
	AvatarFormat    = JPEG
)

// MimeType returns the canonical MIME string for f.
func (f ImageFormat) MimeType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case PNG:
		return "image/png"
	case GIF:
		return "image/gif"
	}
	return ""
}

// Extension returns the file extension (without dot) used when storing f.
func (f ImageFormat) Extension() string {
	switch f {
	case JPEG:
		return "jpg"
	case PNG:
		return "png"
	case GIF:
		return "gif"
	}
	return ""
}

func (f ImageFormat) String() string {
	if ext := f.Extension(); ext != "" {
		return ext
	}
	return fmt.Sprintf("ImageFormat(%d)", int(f))
}

func (f ImageFormat) valid() bool {
	return f >= JPEG && f <= GIF
}

func (f ImageFormat) imaging() imaging.Format {
	switch f {
	case PNG:
		return imaging.PNG
	case GIF:
		return imaging.GIF
	}
	return imaging.JPEG
}

// ParseMimeType maps a canonical MIME string back to its ImageFormat. Unlike
// ValidateMime it also accepts image/gif, which is only ever produced by this
// package, never accepted as an upload.
func ParseMimeType(mime string) (ImageFormat, error) {
	switch mime {
	case "image/jpeg":
		return JPEG, nil
	case "image/png":
		return PNG, nil
	case "image/gif":
		return GIF, nil
	}
	return 0, fmt.Errorf("%w: cannot determine image format for %q", ErrFormat, mime)
}
