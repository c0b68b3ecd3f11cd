package nowplaying

import (
	"image"
	"image/color"
	"math"
	"sync"
)

const placeholderSize = 300

var (
	placeholderOnce sync.Once
	placeholder     *image.RGBA
)

// DefaultArtwork returns the bundled placeholder: concentric broadcast rings on a dark field.
func DefaultArtwork() image.Image {
	placeholderOnce.Do(func() {
		placeholder = drawPlaceholder(placeholderSize)
	})
	return placeholder
}

func drawPlaceholder(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	bg := color.RGBA{R: 0x1a, G: 0x1b, B: 0x25, A: 0xff}
	ring := color.RGBA{R: 0xff, G: 0x9d, B: 0x65, A: 0xff}

	c := float64(size) / 2
	band := float64(size) / 14
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)-c, float64(y)-c)
			switch {
			case d < band:
				img.SetRGBA(x, y, ring)
			case d < c-band/2 && int(d/band)%2 == 0:
				img.SetRGBA(x, y, ring)
			default:
				img.SetRGBA(x, y, bg)
			}
		}
	}
	return img
}
