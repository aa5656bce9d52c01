// Package shingle compares screenshots by splitting them into fixed-size
// tiles and hashing each tile's pixels.
//
// Two comparisons are offered. ComputeDifference treats the tile hashes as
// an unordered multiset. CompareWithControl and CompareWithControls align
// the hash sequences by tile position and ignore positions where the
// untreated sessions already disagree.
package shingle

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/use-agent/cookiediff/models"
)

// DefaultChunkSize is the tile side length in pixels.
const DefaultChunkSize = 40

// Shingle is the 128-bit digest of one tile's RGBA bytes.
type Shingle [md5.Size]byte

func (s Shingle) String() string {
	return hex.EncodeToString(s[:])
}

// Set is the ordered shingle sequence of one screenshot. It is immutable
// once built.
type Set struct {
	chunkSize int
	width     int
	height    int
	shingles  []Shingle
	counts    map[Shingle]int
}

// New tiles img into chunkSize×chunkSize squares (with partial tiles along
// the right and bottom edges) and hashes every tile.
func New(img image.Image, chunkSize int) (*Set, error) {
	if chunkSize <= 0 {
		return nil, models.NewAnalysisError(
			models.ErrCodeInvalidInput,
			fmt.Sprintf("chunk size must be positive, got %d", chunkSize),
			nil,
		)
	}

	rgba := toNRGBA(img)
	width, height := rgba.Rect.Dx(), rgba.Rect.Dy()

	rects := Tiles(width, height, chunkSize)
	shingles := make([]Shingle, 0, len(rects))
	counts := make(map[Shingle]int)
	for _, r := range rects {
		s := hashTile(rgba, r)
		shingles = append(shingles, s)
		counts[s]++
	}

	return &Set{
		chunkSize: chunkSize,
		width:     width,
		height:    height,
		shingles:  shingles,
		counts:    counts,
	}, nil
}

// Load decodes the image at path (PNG, JPEG, GIF, WebP or BMP) and builds
// its shingle set.
func Load(path string, chunkSize int) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewAnalysisError(models.ErrCodeMissingArtifact, "open screenshot "+path, err)
	}
	defer f.Close()
	return Read(f, path, chunkSize)
}

// Read decodes an image from r and builds its shingle set. name labels
// decode errors.
func Read(r io.Reader, name string, chunkSize int) (*Set, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, models.NewAnalysisError(models.ErrCodeCorruptArtifact, "decode screenshot "+name, err)
	}
	return New(img, chunkSize)
}

// ChunkSize returns the tile side length the set was built with.
func (s *Set) ChunkSize() int { return s.chunkSize }

// Bounds returns the source image width and height.
func (s *Set) Bounds() (width, height int) { return s.width, s.height }

// Len returns the number of tiles.
func (s *Set) Len() int { return len(s.shingles) }

// Shingles returns a copy of the ordered shingle sequence.
func (s *Set) Shingles() []Shingle {
	out := make([]Shingle, len(s.shingles))
	copy(out, s.shingles)
	return out
}

// Counts returns a copy of the shingle → occurrence mapping.
func (s *Set) Counts() map[Shingle]int {
	out := make(map[Shingle]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// toNRGBA returns img as 8-bit non-premultiplied RGBA with its origin at
// (0, 0).
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}

// hashTile digests the raw RGBA bytes of r, row by row.
func hashTile(img *image.NRGBA, r image.Rectangle) Shingle {
	h := md5.New()
	rowBytes := r.Dx() * 4
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		h.Write(img.Pix[off : off+rowBytes])
	}
	var s Shingle
	copy(s[:], h.Sum(nil))
	return s
}
