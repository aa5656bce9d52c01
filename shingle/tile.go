package shingle

import "image"

// Tiles returns the tile rectangles of a width×height image in scan order:
//
//  1. full chunk×chunk tiles, left to right then top to bottom;
//  2. the right-edge remainder of each full tile row;
//  3. the bottom-edge remainder of each full tile column;
//  4. the bottom-right corner remainder.
//
// Positional comparison relies on this order, so two images tiled by this
// function are aligned tile for tile.
func Tiles(width, height, chunk int) []image.Rectangle {
	if width <= 0 || height <= 0 || chunk <= 0 {
		return nil
	}

	nx, ny := width/chunk, height/chunk
	rx, ry := width%chunk != 0, height%chunk != 0

	total := ((width + chunk - 1) / chunk) * ((height + chunk - 1) / chunk)
	rects := make([]image.Rectangle, 0, total)

	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			rects = append(rects, image.Rect(x*chunk, y*chunk, (x+1)*chunk, (y+1)*chunk))
		}
	}

	if rx {
		for y := 0; y < ny; y++ {
			rects = append(rects, image.Rect(nx*chunk, y*chunk, width, (y+1)*chunk))
		}
	}

	if ry {
		for x := 0; x < nx; x++ {
			rects = append(rects, image.Rect(x*chunk, ny*chunk, (x+1)*chunk, height))
		}
	}

	if rx && ry {
		rects = append(rects, image.Rect(nx*chunk, ny*chunk, width, height))
	}

	return rects
}
