package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

// File is an uploaded document read into memory. Services take Files rather
// than multipart headers so they can be driven from fixtures as well as
// requests.
type File struct {
	Name string
	Data []byte
}

// ReadUpload reads a multipart file fully, enforcing maxSize. A nil header
// yields a nil File.
func ReadUpload(fh *multipart.FileHeader, maxSize int64) (*File, error) {
	if fh == nil {
		return nil, nil
	}
	if maxSize > 0 && fh.Size > maxSize {
		return nil, ErrFileTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	limit := maxSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	data, err := readLimited(src, limit)
	if err != nil {
		return nil, err
	}
	return &File{Name: fh.Filename, Data: data}, nil
}

// SaveFile validates and stores an uploaded file. The content type is sniffed
// from the data; the client-declared type is ignored.
func SaveFile(ctx context.Context, store BlobStore, f *File, meta BlobMetadata) (*BlobMetadata, error) {
	if f == nil {
		return nil, fmt.Errorf("no file provided")
	}
	contentType := http.DetectContentType(f.Data)
	if !AllowedContentTypes[contentType] {
		return nil, ErrInvalidContentType
	}

	meta.FileName = f.Name
	meta.ContentType = contentType
	return store.Upload(ctx, meta, bytes.NewReader(f.Data))
}

// SaveUpload reads a multipart file and stores it.
func SaveUpload(ctx context.Context, store BlobStore, fh *multipart.FileHeader, meta BlobMetadata, maxSize int64) (*BlobMetadata, error) {
	if fh == nil {
		return nil, fmt.Errorf("no file provided")
	}
	f, err := ReadUpload(fh, maxSize)
	if err != nil {
		return nil, err
	}
	return SaveFile(ctx, store, f, meta)
}

// SaveBytes stores generated content such as a rendered health card.
func SaveBytes(ctx context.Context, store BlobStore, data []byte, meta BlobMetadata) (*BlobMetadata, error) {
	if meta.ContentType == "" {
		meta.ContentType = http.DetectContentType(data)
	}
	return store.Upload(ctx, meta, bytes.NewReader(data))
}

// DeleteQuietly removes blobs, ignoring failures. Used when undoing a
// partially completed operation.
func DeleteQuietly(ctx context.Context, store BlobStore, ids ...string) {
	for _, id := range ids {
		if id != "" {
			_ = store.Delete(ctx, id)
		}
	}
}

// IDFromURL extracts the blob id from a URL produced by URL.
func IDFromURL(u string) string {
	id, ok := strings.CutPrefix(u, "/api/files/")
	if !ok {
		return ""
	}
	return id
}

