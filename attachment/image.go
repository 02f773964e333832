////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package attachment normalises user-picked images before upload: the format
// is sniffed, oversized images are scaled down and everything is re-encoded
// as JPEG.
package attachment

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const ContentType = "image/jpeg"

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image is too large")
)

var supported = []string{"image/jpeg", "image/png", "image/gif"}

// Params bounds the prepared image.
type Params struct {
	// MaxDimension caps the longer side in pixels.
	MaxDimension uint

	// MaxBytes caps the input size.
	MaxBytes int64

	JPEGQuality int
}

func GetDefaultParams() Params {
	return Params{
		MaxDimension: 1600,
		MaxBytes:     20 << 20,
		JPEGQuality:  85,
	}
}

// Image is an upload-ready JPEG.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

// PrepareImage reads an image from r, scales it to fit within
// p.MaxDimension on both sides keeping its aspect ratio, and re-encodes it
// as JPEG. Transparent areas become white.
func PrepareImage(r io.Reader, p Params) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.MaxBytes+1))
	if err != nil {
		return Image{}, errors.Wrap(err, "failed to read image")
	}
	if int64(len(data)) > p.MaxBytes {
		return Image{}, errors.Wrapf(ErrTooLarge, "limit is %d bytes",
			p.MaxBytes)
	}

	mime := mimetype.Detect(data)
	if !mimetype.EqualsAny(mime.String(), supported...) {
		return Image{}, errors.Wrapf(ErrUnsupportedFormat, "%s", mime)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, errors.Wrapf(ErrUnsupportedFormat,
			"failed to decode %s: %v", mime, err)
	}

	scaled := src
	if p.MaxDimension > 0 {
		scaled = resize.Thumbnail(p.MaxDimension, p.MaxDimension, src,
			resize.Lanczos3)
	}

	bounds := scaled.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{C: color.White},
		image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), scaled, bounds.Min, draw.Over)

	var out bytes.Buffer
	quality := p.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	if err = jpeg.Encode(&out, flat, &jpeg.Options{Quality: quality}); err != nil {
		return Image{}, errors.Wrap(err, "failed to encode image")
	}

	jww.DEBUG.Printf("[ATTACHMENT] %s %dx%d -> jpeg %dx%d (%d bytes)",
		mime, src.Bounds().Dx(), src.Bounds().Dy(), bounds.Dx(), bounds.Dy(),
		out.Len())
	return Image{
		Data:   out.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
