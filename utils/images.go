package utils

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ErrUnsupportedImage is returned for uploads that cannot be decoded as an image.
var ErrUnsupportedImage = errors.New("unsupported image format")

// ImageSpec describes how an uploaded image is normalised before being stored.
type ImageSpec struct {
	Dir       string // sub directory under the media root
	MaxWidth  int
	MaxHeight int
	Square    bool // crop to a centred square thumbnail
}

var (
	ProfileImageSpec = ImageSpec{Dir: "profile_images", MaxWidth: 400, MaxHeight: 400, Square: true}
	IDProofSpec      = ImageSpec{Dir: "id_proofs", MaxWidth: 1600, MaxHeight: 1600}
)

// SaveImage decodes r, resizes it per spec and writes a JPEG under mediaRoot.
// It returns the path relative to mediaRoot using forward slashes.
func SaveImage(r io.Reader, mediaRoot string, spec ImageSpec) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	img = fitImage(img, spec)

	dir := filepath.Join(mediaRoot, spec.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ".jpg"
	if err := imaging.Save(img, filepath.Join(dir, name), imaging.JPEGQuality(85)); err != nil {
		return "", err
	}
	return spec.Dir + "/" + name, nil
}

// RemoveMedia deletes a previously stored media file, ignoring missing files.
func RemoveMedia(mediaRoot, rel string) {
	if rel == "" || strings.Contains(rel, "..") {
		return
	}
	_ = os.Remove(filepath.Join(mediaRoot, filepath.FromSlash(rel)))
}

func fitImage(img image.Image, spec ImageSpec) image.Image {
	if spec.Square {
		side := spec.MaxWidth
		if spec.MaxHeight < side {
			side = spec.MaxHeight
		}
		return imaging.Fill(img, side, side, imaging.Center, imaging.Lanczos)
	}
	b := img.Bounds()
	if b.Dx() <= spec.MaxWidth && b.Dy() <= spec.MaxHeight {
		return img
	}
	return imaging.Fit(img, spec.MaxWidth, spec.MaxHeight, imaging.Lanczos)
}
