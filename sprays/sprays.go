// Package sprays handles the local side of spray assets: enumerating the
// player's image files, loading them with the protocol capacity gate, and
// decoding received payloads into drawable images.
package sprays

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	// Registers the webp decoder; png/jpeg/bmp/gif/tiff come with imaging.
	_ "golang.org/x/image/webp"

	"github.com/automoto/spraytag-mp/shared/netconfig"
)

// ErrTooLarge means the file exceeds the maximum transferable asset size.
// Reported locally, before any packet exists.
var ErrTooLarge = errors.New("sprays: image exceeds maximum transfer size")

var extFormats = map[string]netconfig.AssetFormat{
	".png":  netconfig.FormatPNG,
	".jpg":  netconfig.FormatJPEG,
	".jpeg": netconfig.FormatJPEG,
	".bmp":  netconfig.FormatBMP,
	".webp": netconfig.FormatWebP,
}

// ListFiles returns up to netconfig.MaxSprayFiles supported image files in
// dir, sorted by name.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read spray dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := extFormats[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
		if len(files) == netconfig.MaxSprayFiles {
			break
		}
	}
	sort.Strings(files)
	return files, nil
}

// FormatForPath maps a file extension to its wire format tag.
func FormatForPath(path string) netconfig.AssetFormat {
	if f, ok := extFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return netconfig.FormatRaw
}

// Load reads a spray file and enforces the transfer ceiling. Oversized files
// are rejected here so the upload path never sees them.
func Load(path string) ([]byte, netconfig.AssetFormat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, netconfig.FormatRaw, fmt.Errorf("read spray: %w", err)
	}
	if len(data) > netconfig.MaxAssetBytes {
		return nil, netconfig.FormatRaw, fmt.Errorf("%w: %s is %d bytes, limit %d",
			ErrTooLarge, filepath.Base(path), len(data), netconfig.MaxAssetBytes)
	}
	return data, FormatForPath(path), nil
}

// Decode turns a received payload into a drawable image fitted to the
// maximum spray dimensions. A zero-length payload yields the placeholder,
// not an error, since an empty transfer is a legal way to clear a spray.
func Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return Placeholder(), nil
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode spray: %w", err)
	}
	b := img.Bounds()
	if b.Dx() > netconfig.MaxSprayDim || b.Dy() > netconfig.MaxSprayDim {
		img = imaging.Fit(img, netconfig.MaxSprayDim, netconfig.MaxSprayDim, imaging.Lanczos)
	}
	return img, nil
}

// Placeholder is the image used until a participant's real spray arrives.
func Placeholder() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 1, 1))
}
