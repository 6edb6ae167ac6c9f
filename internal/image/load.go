// Package image provides image loading, thumbnails and contact sheets for
// calibration frames.
package image

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"camera-calibration/pkg/geometry"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Frame is a decoded image together with where it came from.
type Frame struct {
	Path  string      // Original file path, empty for captured frames
	Image image.Image // Decoded pixels, EXIF orientation applied
}

// Size returns the frame dimensions.
func (f *Frame) Size() geometry.SizeInt {
	if f.Image == nil {
		return geometry.SizeInt{}
	}
	b := f.Image.Bounds()
	return geometry.SizeInt{Width: b.Dx(), Height: b.Dy()}
}

// Name returns the file name without its directory.
func (f *Frame) Name() string {
	return filepath.Base(f.Path)
}

// Load decodes the image at path, rotating it upright according to its
// EXIF orientation tag.
func Load(path string) (*Frame, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load image %s", path)
	}
	return &Frame{Path: path, Image: img}, nil
}

// LoadDir loads every supported image directly inside dir, sorted by name.
// Files that fail to decode are returned in skipped rather than aborting.
func LoadDir(dir string) (frames []*Frame, skipped []string, err error) {
	paths, err := ListDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		f, err := Load(p)
		if err != nil {
			skipped = append(skipped, p)
			continue
		}
		frames = append(frames, f)
	}
	return frames, skipped, nil
}

// ListDir returns the paths of supported images directly inside dir.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsSupportedFormat(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Save encodes img to path; the format follows the extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "failed to save image %s", path)
	}
	return nil
}

// Thumbnail scales img to width pixels wide, preserving aspect ratio. Images
// already narrower than width are returned unscaled.
func Thumbnail(img image.Image, width int) image.Image {
	if width <= 0 || img.Bounds().Dx() <= width {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".tif"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
