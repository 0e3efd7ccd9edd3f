package pipeline

import "fmt"

// ValidateMime checks the declared content type of an upload. Only PNG and
// JPEG are accepted; image/jpg is an alias some browsers send. Nothing is
// sniffed here, corrupt content is caught later by Decode.
func ValidateMime(declared string) (ImageFormat, error) {
	switch declared {
	case "image/png":
		return PNG, nil
	case "image/jpeg", "image/jpg":
		return JPEG, nil
	case "":
		return 0, ErrFormat
	}
	return 0, fmt.Errorf("%w: %s", ErrFormat, declared)
}
