package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/prompt-enhancer/internal/enhance"
	"github.com/fpang/prompt-enhancer/internal/filehandler"
)

// ErrPickCanceled is returned when the user closes the file dialog.
var ErrPickCanceled = errors.New("image selection canceled")

// PickImage opens a native file dialog filtered to supported image types and
// returns the selected path.
func PickImage() (string, error) {
	selected, err := zenity.SelectFile(
		zenity.Title("Select a reference image"),
		zenity.FileFilters{
			{
				Name:     "Images",
				Patterns: []string{"*.jpg", "*.jpeg", "*.png", "*.webp", "*.gif"},
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrPickCanceled
		}
		return "", fmt.Errorf("file picker failed: %w", err)
	}
	log.Debug().Str("path", selected).Msg("Image picked via native dialog")
	return selected, nil
}

// LoadImage reads and validates the image at path.
func LoadImage(path string, maxBytes int64) (*enhance.Image, error) {
	path, err := ValidateAndResolveFile(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := filehandler.ReadImage(f, "", maxBytes)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("path", path).
		Str("mime", img.MIMEType).
		Str("size", filehandler.FormatSize(int64(len(img.Data)))).
		Msg("Image loaded")
	return img, nil
}
