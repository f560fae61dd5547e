package blobstore

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
)

// IsMultipart reports whether the request body is multipart form data.
func IsMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// FormFile reads the named multipart file. It returns nil when the request
// is not multipart or the field is absent.
func FormFile(c echo.Context, field string, maxSize int64) (*File, error) {
	if !IsMultipart(c) {
		return nil, nil
	}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Validation("invalid upload in field %s", field)
	}
	f, err := ReadUpload(fh, maxSize)
	if err != nil {
		return nil, ClassifyError(err)
	}
	return f, nil
}

// FormFiles reads every file uploaded under field, in order.
func FormFiles(c echo.Context, field string, maxSize int64) ([]*File, error) {
	if !IsMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperr.Validation("invalid multipart form")
	}
	var out []*File
	for _, fh := range form.File[field] {
		f, err := ReadUpload(fh, maxSize)
		if err != nil {
			return nil, ClassifyError(err)
		}
		out = append(out, f)
	}
	return out, nil
}

// ClassifyError maps upload validation failures to API errors and passes
// anything else through.
func ClassifyError(err error) error {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return apperr.Wrap(apperr.KindTooLarge, "File too large", err)
	case errors.Is(err, ErrInvalidContentType):
		return apperr.Wrap(apperr.KindValidation, "Only PDF, PNG and JPEG files are allowed", err)
	case errors.Is(err, ErrMissingFileName):
		return apperr.Wrap(apperr.KindValidation, "File name is required", err)
	}
	return err
}
