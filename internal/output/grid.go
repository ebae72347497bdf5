package output

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// MaxGridImages is the largest number of images PostProcess can compose
const MaxGridImages = 9

// GridShape returns the rows and columns used for n images
func GridShape(n int) (rows, cols int, err error) {
	switch {
	case n <= 0:
		return 0, 0, ErrNoImages
	case n == 1:
		return 1, 1, nil
	case n == 2:
		return 1, 2, nil
	case n <= 4:
		return 2, 2, nil
	case n <= 6:
		return 2, 3, nil
	case n <= MaxGridImages:
		return 3, 3, nil
	default:
		return 0, 0, fmt.Errorf("%w: got %d, maximum supported images: %d", ErrTooManyImages, n, MaxGridImages)
	}
}

// PostProcess reduces a slot to one representative image. A single image is
// returned unchanged; more are laid out on a grid.
func PostProcess(images []image.Image) (image.Image, error) {
	rows, cols, err := GridShape(len(images))
	if err != nil {
		return nil, err
	}
	if len(images) == 1 {
		return images[0], nil
	}
	return Grid(images, rows, cols)
}

// Grid pastes images row-major into equal cells sized after the first image
func Grid(images []image.Image, rows, cols int) (image.Image, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if len(images) > rows*cols {
		return nil, fmt.Errorf("%w: %d images do not fit a %dx%d grid", ErrTooManyImages, len(images), rows, cols)
	}

	w, h := images[0].Bounds().Dx(), images[0].Bounds().Dy()
	for i, img := range images[1:] {
		if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
			return nil, fmt.Errorf("%w: image %d is %dx%d, expected %dx%d",
				ErrMismatchedSizes, i+1, img.Bounds().Dx(), img.Bounds().Dy(), w, h)
		}
	}

	canvas := imaging.New(cols*w, rows*h, color.Black)
	for i, img := range images {
		row, col := i/cols, i%cols
		canvas = imaging.Paste(canvas, img, image.Pt(col*w, row*h))
	}
	return canvas, nil
}
