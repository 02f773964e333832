////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/pkg/errors"
)

// ImageUpload is where an uploaded image ended up.
type ImageUpload struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// UploadImage posts an image as a multipart form under the field "image".
func (c *Client) UploadImage(ctx context.Context, filename string,
	image io.Reader) (ImageUpload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return ImageUpload{}, errors.Wrap(err, "failed to build upload form")
	}
	if _, err = io.Copy(part, image); err != nil {
		return ImageUpload{}, errors.Wrap(err, "failed to read image")
	}
	if err = w.Close(); err != nil {
		return ImageUpload{}, errors.Wrap(err, "failed to build upload form")
	}

	var up ImageUpload
	err = c.do(ctx, http.MethodPost, "/uploads/images", nil, &buf,
		w.FormDataContentType(), &up)
	return up, err
}
