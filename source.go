package digitnorm

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sunshineplan/imgconv"
	pdf2 "github.com/sunshineplan/pdf"
)

const mimePDF = "application/pdf"

// NormalizeFile decodes the image at path and normalizes it.
func (n *Normalizer) NormalizeFile(path string) (*Result, error) {
	img, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return n.Normalize(img)
}

// NormalizeReader decodes an image from r and normalizes it.
func (n *Normalizer) NormalizeReader(r io.Reader) (*Result, error) {
	img, err := DecodeReader(r)
	if err != nil {
		return nil, err
	}
	return n.Normalize(img)
}

// NormalizeBytes decodes an encoded image and normalizes it.
func (n *Normalizer) NormalizeBytes(data []byte) (*Result, error) {
	img, err := DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return n.Normalize(img)
}

// DecodeFile reads and decodes the image at path.
func DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return decode(path, data)
}

// DecodeReader reads r to the end and decodes it.
func DecodeReader(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return decode("", data)
}

// DecodeBytes decodes an encoded image. PNG, JPEG, GIF, BMP, TIFF, WebP
// and PDF are understood.
func DecodeBytes(data []byte) (image.Image, error) {
	return decode("", data)
}

// DetectMIME sniffs the content type of an encoded image.
func DetectMIME(head []byte) string {
	if len(head) == 0 {
		return "application/octet-stream"
	}
	mt := http.DetectContentType(head)
	if mt != "application/octet-stream" && !strings.HasPrefix(mt, "text/plain") {
		return mt
	}
	return mimetype.Detect(head).String()
}

// IsSupportedMIME reports whether the content type can be decoded.
func IsSupportedMIME(mt string) bool {
	mt, _, _ = strings.Cut(mt, ";")
	return strings.HasPrefix(mt, "image/") || mt == mimePDF
}

func decode(source string, data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, decodeError(source, errors.New("empty input"))
	}

	mt := DetectMIME(data)
	if !IsSupportedMIME(mt) {
		return nil, decodeError(source, fmt.Errorf("unsupported content type %s", mt))
	}
	if strings.HasPrefix(mt, mimePDF) {
		return decodePDF(source, data)
	}

	img, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(source, err)
	}
	return img, nil
}

// decodePDF returns the largest image embedded in the document, falling back
// to a rendering of the first page.
func decodePDF(source string, data []byte) (img image.Image, err error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, decodeError(source, fmt.Errorf("invalid PDF: %w", err))
	}
	if ctx.PageCount == 0 {
		return nil, decodeError(source, errors.New("PDF has no pages"))
	}

	images, err := extractPDFImages(data)
	if err == nil && len(images) > 0 {
		return largestImage(images), nil
	}

	img, err = imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(source, err)
	}
	return img, nil
}

func extractPDFImages(data []byte) (images []image.Image, err error) {
	// The PDF decoders panic on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while extracting PDF images: %v", r)
			images = nil
		}
	}()

	images, err = pdf2.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PDF images: %w", err)
	}
	return images, nil
}

func largestImage(images []image.Image) image.Image {
	var best image.Image
	bestArea := -1
	for _, img := range images {
		if img == nil {
			continue
		}
		b := img.Bounds()
		if area := b.Dx() * b.Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}
	return best
}
