package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// MaxFiles is the most photos one listing may carry.
	MaxFiles = 8
	// MaxFileBytes caps each photo at 3 MiB.
	MaxFileBytes = 3 << 20

	filePrefix = "l_"
	sniffLen   = 512
)

// Sniffed content type -> stored extension. Client file names and declared
// types are never consulted.
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Client errors reject the batch with a 4xx.
var (
	ErrTooManyFiles    = fmt.Errorf("Too many images (max %d)", MaxFiles)
	ErrFileSize        = errors.New("Each image must be <= 3MB")
	ErrUnsupportedType = errors.New("Unsupported image type. Use JPG, PNG, or WEBP.")
)

// Server errors are configuration or I/O failures.
var (
	ErrUploadDirMissing = errors.New("Upload folder missing on server")
	ErrStoreFailed      = errors.New("Failed to store uploaded image")
)

// IsClientError reports whether err was caused by the submitted files.
func IsClientError(err error) bool {
	return errors.Is(err, ErrTooManyFiles) || errors.Is(err, ErrFileSize) || errors.Is(err, ErrUnsupportedType)
}

// Intake validates uploaded listing photos and hands them to a Store. Files
// are stored before the listing transaction opens and are not removed if it
// later fails unless the caller invokes Discard.
type Intake struct {
	Store        Store
	PublicPrefix string // prefix for returned paths: uploads/listings, or a bucket URL

	Now  func() time.Time
	Rand io.Reader
}

// CheckCount rejects batches larger than MaxFiles. It runs before anything else
// in the submission so an oversized batch touches neither disk nor validation.
func (in *Intake) CheckCount(n int) error {
	if n > MaxFiles {
		return ErrTooManyFiles
	}
	return nil
}

type acceptedFile struct {
	header      *multipart.FileHeader
	contentType string
	ext         string
}

// Stage checks every file, then writes them all, returning public-relative
// paths in submission order. No file is written unless the whole batch passes
// the checks. If a write fails midway, the paths already written are returned
// together with the error so the caller can decide whether to Discard them.
func (in *Intake) Stage(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	if err := in.CheckCount(len(files)); err != nil {
		return nil, err
	}
	if err := in.Store.Ready(ctx); err != nil {
		return nil, err
	}

	accepted := make([]acceptedFile, 0, len(files))
	for _, fh := range files {
		if fh.Size <= 0 || fh.Size > MaxFileBytes {
			return nil, ErrFileSize
		}
		contentType, err := sniff(fh)
		if err != nil {
			return nil, err
		}
		accepted = append(accepted, acceptedFile{header: fh, contentType: contentType, ext: allowedTypes[contentType]})
	}

	paths := make([]string, 0, len(accepted))
	for _, af := range accepted {
		name, err := in.fileName(af.ext)
		if err != nil {
			return paths, fmt.Errorf("%w: %v", ErrStoreFailed, err)
		}
		if err := in.put(ctx, af, name); err != nil {
			return paths, fmt.Errorf("%w: %v", ErrStoreFailed, err)
		}
		paths = append(paths, in.publicPath(name))
	}
	return paths, nil
}

// Discard best-effort removes previously staged files given their public paths.
func (in *Intake) Discard(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := in.Store.Remove(ctx, path.Base(p)); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("media: discard staged file failed")
		}
	}
}

func (in *Intake) publicPath(name string) string {
	prefix := strings.TrimRight(in.PublicPrefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (in *Intake) fileName(ext string) (string, error) {
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}
	r := in.Rand
	if r == nil {
		r = rand.Reader
	}
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", err
	}
	return filePrefix + now().Format("20060102_150405") + "_" + hex.EncodeToString(b[:]) + "." + ext, nil
}

func (in *Intake) put(ctx context.Context, af acceptedFile, name string) error {
	src, err := af.header.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	return in.Store.Put(ctx, name, af.contentType, src, af.header.Size)
}

// sniff returns the detected content type if it is an accepted image type.
func sniff(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", ErrUnsupportedType
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", ErrUnsupportedType
	}
	contentType := http.DetectContentType(buf[:n])
	if _, ok := allowedTypes[contentType]; !ok {
		return "", ErrUnsupportedType
	}
	return contentType, nil
}
