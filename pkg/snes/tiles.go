package snes

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/hansbonini/issdtools/pkg/common"
)

// TileDim is the width and height of an SNES character tile in pixels.
const TileDim = 8

// SNESColor is a 15-bit BGR555 CGRAM color.
type SNESColor uint16

// ToRGBA expands the color to 8 bits per channel.
func (c SNESColor) ToRGBA() color.RGBA {
	return color.RGBA{
		R: uint8(c&0x1F) << 3,
		G: uint8((c>>5)&0x1F) << 3,
		B: uint8((c>>10)&0x1F) << 3,
		A: 0xFF,
	}
}

// SNESColorFromRGBA packs 8-bit channels into BGR555.
func SNESColorFromRGBA(r, g, b uint8) SNESColor {
	return SNESColor(uint16(r>>3) | uint16(g>>3)<<5 | uint16(b>>3)<<10)
}

// DecodePalette reads consecutive little-endian BGR555 words.
func DecodePalette(data []byte) color.Palette {
	p := make(color.Palette, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		p = append(p, SNESColor(binary.LittleEndian.Uint16(data[i:])).ToRGBA())
	}
	return p
}

// GrayscalePalette returns an evenly spaced ramp with one entry per color index.
func GrayscalePalette(bpp int) color.Palette {
	n := 1 << bpp
	p := make(color.Palette, n)
	for i := range p {
		v := common.SafeUint32ToUint8(uint32(i * 255 / (n - 1)))
		p[i] = color.RGBA{v, v, v, 0xFF}
	}
	return p
}

// TileBytes returns the size of one planar tile at the given depth.
func TileBytes(bpp int) (int, error) {
	switch bpp {
	case 2, 4, 8:
		return bpp * TileDim, nil
	}
	return 0, fmt.Errorf("unsupported tile depth %d bpp", bpp)
}

// DecodeTile converts one planar tile into 64 color indices, row-major.
// Bitplanes are stored in interleaved pairs: rows of planes 0/1, then 2/3, ...
func DecodeTile(data []byte, bpp int) ([TileDim * TileDim]uint8, error) {
	var pixels [TileDim * TileDim]uint8

	size, err := TileBytes(bpp)
	if err != nil {
		return pixels, err
	}
	if len(data) < size {
		return pixels, fmt.Errorf("tile needs %d bytes, got %d", size, len(data))
	}

	for plane := 0; plane < bpp; plane++ {
		base := (plane/2)*16 + plane%2
		for y := 0; y < TileDim; y++ {
			row := data[base+y*2]
			for x := 0; x < TileDim; x++ {
				if row&(0x80>>x) != 0 {
					pixels[y*TileDim+x] |= 1 << plane
				}
			}
		}
	}
	return pixels, nil
}

// RenderTiles lays decoded tiles out in a sheet widthTiles tiles wide. A
// trailing partial tile is ignored. When palette is nil a grayscale ramp is used.
func RenderTiles(data []byte, bpp, widthTiles int, palette color.Palette) (*image.Paletted, error) {
	size, err := TileBytes(bpp)
	if err != nil {
		return nil, err
	}
	if widthTiles <= 0 {
		widthTiles = 16
	}

	count := len(data) / size
	if count == 0 {
		return nil, fmt.Errorf("no complete %dbpp tile in %d bytes", bpp, len(data))
	}
	if palette == nil || len(palette) < 1<<bpp {
		palette = GrayscalePalette(bpp)
	}

	heightTiles := (count + widthTiles - 1) / widthTiles
	img := image.NewPaletted(image.Rect(0, 0, widthTiles*TileDim, heightTiles*TileDim), palette)

	for n := 0; n < count; n++ {
		pixels, err := DecodeTile(data[n*size:], bpp)
		if err != nil {
			return nil, err
		}
		ox := (n % widthTiles) * TileDim
		oy := (n / widthTiles) * TileDim
		for y := 0; y < TileDim; y++ {
			for x := 0; x < TileDim; x++ {
				img.SetColorIndex(ox+x, oy+y, pixels[y*TileDim+x])
			}
		}
	}
	return img, nil
}

// ScaleImage enlarges src by an integer factor with nearest-neighbour sampling.
func ScaleImage(src image.Image, factor int) image.Image {
	if factor <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
