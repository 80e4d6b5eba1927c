//go:build !windows

package audio

// OpenEnumerator returns ErrUnsupportedPlatform; render endpoint metering needs Windows Core Audio.
func OpenEnumerator() (Enumerator, error) {
	return nil, ErrUnsupportedPlatform
}
