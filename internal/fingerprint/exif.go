package fingerprint

import (
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifExtensions lists formats goexif can carry a capture timestamp for.
// Video containers and most RAW formats are skipped rather than probed.
var exifExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".tiff": {},
	".tif":  {},
	".heic": {},
	".heif": {},
	".cr2":  {},
	".nef":  {},
	".dng":  {},
}

// CaptureTime extracts the EXIF capture timestamp from a file, or nil when
// the format carries none, the metadata is absent, or it cannot be parsed.
// Missing or broken EXIF is not an error; the file simply has no capture
// time and original selection falls back to filesystem metadata.
func CaptureTime(path string) *time.Time {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return nil
	}
	if _, ok := exifExtensions[strings.ToLower(path[idx:])]; !ok {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil
	}
	taken, err := x.DateTime()
	if err != nil {
		return nil
	}
	taken = taken.UTC()
	return &taken
}
