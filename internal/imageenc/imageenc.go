// Package imageenc turns uploaded image files into data-URI strings that can
// be embedded directly in catalog JSON payloads, and drives the live preview
// shown next to the entity forms.
//
// Reading happens off the request goroutine so a slow upload body never
// outlives the caller's context.
package imageenc

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	// Register the webp decoder with image.Decode.
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
)

// ErrNoFile is returned when Encode is called without a file.
var ErrNoFile = apperror.NewValidation("No se ha seleccionado ningún archivo")

// allowedMimeTypes are the sniffed content types accepted as images.
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Upload is a user-selected file. Open is called at most once per encode.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Empty reports whether no file was selected. Browsers submit an empty part
// with size 0 when the file input is left blank.
func (u *Upload) Empty() bool {
	return u == nil || u.Open == nil || u.Size == 0
}

// FromFileHeader adapts a multipart file header. A nil header yields nil.
func FromFileHeader(fh *multipart.FileHeader) *Upload {
	if fh == nil {
		return nil
	}
	return &Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Encoder validates uploads and encodes them as data URIs.
type Encoder struct {
	maxSize      int64
	maxDimension int
}

// New creates an encoder. maxSize bounds the accepted file size in bytes;
// maxDimension > 0 downsizes larger images before encoding.
func New(maxSize int64, maxDimension int) *Encoder {
	return &Encoder{maxSize: maxSize, maxDimension: maxDimension}
}

// Encode reads the upload and returns "data:<mime>;base64,<payload>".
// Returns ErrNoFile when nothing was selected.
func (e *Encoder) Encode(ctx context.Context, u *Upload) (string, error) {
	if u.Empty() {
		return "", ErrNoFile
	}
	if u.Size > e.maxSize {
		return "", apperror.NewValidation(fmt.Sprintf(
			"La imagen supera el tamaño máximo de %d MB", e.maxSize/(1024*1024)))
	}

	data, err := e.read(ctx, u)
	if err != nil {
		return "", err
	}
	return e.encodeBytes(data)
}

// Preview encodes the upload for display only. No file clears the preview,
// so it returns "" without error in that case.
func (e *Encoder) Preview(ctx context.Context, u *Upload) (string, error) {
	if u.Empty() {
		return "", nil
	}
	return e.Encode(ctx, u)
}

// read loads the whole upload in a separate goroutine and waits for it or
// for ctx, whichever finishes first.
func (e *Encoder) read(ctx context.Context, u *Upload) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)

	go func() {
		f, err := u.Open()
		if err != nil {
			done <- result{err: err}
			return
		}
		defer f.Close()

		// One byte past the limit tells us the declared size lied.
		data, err := io.ReadAll(io.LimitReader(f, e.maxSize+1))
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, &apperror.AppError{
				Code:     http.StatusBadRequest,
				Type:     "bad_request",
				Message:  "No se pudo leer la imagen",
				Internal: fmt.Errorf("reading upload %q: %w", u.Filename, r.err),
			}
		}
		if int64(len(r.data)) > e.maxSize {
			return nil, apperror.NewValidation(fmt.Sprintf(
				"La imagen supera el tamaño máximo de %d MB", e.maxSize/(1024*1024)))
		}
		return r.data, nil
	}
}

// encodeBytes validates the content is a decodable image, downsizes it if
// configured, and builds the data URI.
func (e *Encoder) encodeBytes(data []byte) (string, error) {
	mime := http.DetectContentType(data)
	if !allowedMimeTypes[mime] {
		return "", apperror.NewValidation("El archivo no es una imagen válida")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", apperror.NewValidation("El archivo no es una imagen válida")
	}

	if e.maxDimension > 0 && (cfg.Width > e.maxDimension || cfg.Height > e.maxDimension) && mime != "image/gif" {
		resized, resizedMime, err := downscale(data, mime, e.maxDimension)
		if err != nil {
			// Keep the original bytes, the API accepts them as-is.
			slog.Warn("image downscale failed", slog.String("mime", mime), slog.Any("error", err))
		} else {
			data, mime = resized, resizedMime
		}
	}

	return DataURI(mime, data), nil
}

// DataURI builds a base64 data URI for the given content type and bytes.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// downscale resizes the image so its longest side equals maxDim, keeping
// the aspect ratio. JPEG stays JPEG; everything else becomes PNG since
// there is no webp encoder.
func downscale(data []byte, mime string, maxDim int) ([]byte, string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch mime {
	case "image/jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	default:
		mime = "image/png"
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encoding resized image: %w", err)
	}
	return buf.Bytes(), mime, nil
}
