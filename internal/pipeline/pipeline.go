package pipeline

// CreateThumbnail renders the thumbnail stored next to submissions and
// example works: JPEG, fitted (and enlarged if needed) into 500x375.
func CreateThumbnail(src *Raster) ([]byte, error) {
	return Resize(src, ThumbnailWidth, ThumbnailHeight, true, ThumbnailFormat)
}

// CreateAvatar renders a user avatar: JPEG, fitted into 500x500.
func CreateAvatar(src *Raster) ([]byte, error) {
	return Resize(src, AvatarWidth, AvatarHeight, true, AvatarFormat)
}

// CapSubmission limits an uploaded image to 2048x2048 without enlarging it.
// format is the format the upload was declared as.
func CapSubmission(src *Raster, format ImageFormat) ([]byte, error) {
	return Resize(src, MaxSubmissionWidth, MaxSubmissionHeight, false, format)
}
