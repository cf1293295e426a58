// Package background holds the pool of background photos and cuts random
// square crops out of them.
package background

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/cardsynth/internal/utils"
	"github.com/menta2k/cardsynth/pkg/imagefile"
)

// ErrEmptyPool is returned when no usable background was found.
var ErrEmptyPool = errors.New("no valid backgrounds found")

// Rand is the random source used to pick backgrounds and crop positions.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// Pool is a set of opaque background images, each at least CropSize on both sides.
type Pool struct {
	cropSize int
	images   []*image.NRGBA
	names    []string
}

// NewPool creates an empty pool that produces cropSize x cropSize crops.
func NewPool(cropSize int) *Pool {
	return &Pool{cropSize: cropSize}
}

// LoadDir loads every jpg, png and webp file in dir. Files that fail to
// decode or are smaller than the crop size are skipped and reported in skipped.
func LoadDir(dir string, cropSize int) (pool *Pool, skipped []string, err error) {
	pool = NewPool(cropSize)

	paths, err := utils.ListImageFiles(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list backgrounds: %w", err)
	}

	for _, p := range paths {
		img, err := imagefile.Load(p)
		if err != nil {
			skipped = append(skipped, p)
			continue
		}
		if err := pool.Add(filepath.Base(p), img); err != nil {
			skipped = append(skipped, p)
		}
	}

	if pool.Len() == 0 {
		return nil, skipped, fmt.Errorf("%w in %s", ErrEmptyPool, dir)
	}
	return pool, skipped, nil
}

// Add validates img and adds an opaque copy of it to the pool.
func (p *Pool) Add(name string, img image.Image) error {
	if err := imagefile.ValidateSize(img, p.cropSize, p.cropSize); err != nil {
		return fmt.Errorf("background %s: %w", name, err)
	}
	p.images = append(p.images, imagefile.Opaque(img))
	p.names = append(p.names, strings.TrimSpace(name))
	return nil
}

// Len returns the number of backgrounds in the pool.
func (p *Pool) Len() int {
	return len(p.images)
}

// CropSize returns the side length of produced crops.
func (p *Pool) CropSize() int {
	return p.cropSize
}

// Names returns the names of the pooled backgrounds in load order.
func (p *Pool) Names() []string {
	return append([]string(nil), p.names...)
}

// RandomCrop picks a background and cuts a square crop at a random position.
// The returned image is an independent copy.
func (p *Pool) RandomCrop(rng Rand) (*image.NRGBA, error) {
	if len(p.images) == 0 {
		return nil, ErrEmptyPool
	}
	return Crop(rng, p.images[rng.IntN(len(p.images))], p.cropSize), nil
}

// Crop cuts a size x size square from img at a random position. The offset
// is drawn uniformly from [0, w-size] x [0, h-size].
func Crop(rng Rand, img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	x := b.Min.X + rng.IntN(b.Dx()-size+1)
	y := b.Min.Y + rng.IntN(b.Dy()-size+1)
	return imaging.Crop(img, image.Rect(x, y, x+size, y+size))
}
