package util

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

var (
	ErrFileTooLarge = errors.New("file exceeds the upload size limit")
	ErrMissingFile  = errors.New("missing file")
)

type MultipartValues map[string]string

type MultipartFile struct {
	Field  string
	File   multipart.File
	Header *multipart.FileHeader
}

type ParsedMultipart struct {
	Values MultipartValues
	Files  []MultipartFile
}

func (pm *ParsedMultipart) CloseFiles() {
	for _, mf := range pm.Files {
		if mf.File != nil {
			mf.File.Close()
		}
	}
}

func (pm *ParsedMultipart) FileByKey(key string) *MultipartFile {
	for _, mf := range pm.Files {
		if mf.Field == key {
			return &mf
		}
	}

	return nil
}

// ReadFile loads the named part fully into memory. A part larger than
// maxFileSize yields ErrFileTooLarge; zero disables the check.
func (pm *ParsedMultipart) ReadFile(key string, maxFileSize int64) (*MultipartFile, []byte, error) {
	mf := pm.FileByKey(key)
	if mf == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingFile, key)
	}

	var r io.Reader = mf.File
	if maxFileSize > 0 {
		r = io.LimitReader(mf.File, maxFileSize+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read %q: %w", key, err)
	}
	if maxFileSize > 0 && int64(len(data)) > maxFileSize {
		return nil, nil, ErrFileTooLarge
	}

	return mf, data, nil
}

// ParseMultipart parses a multipart body. The body is capped at
// maxFileSize+maxMemory so an oversized upload fails without being buffered.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxMemory, maxFileSize int64) (*ParsedMultipart, error) {
	if maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+maxMemory)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, ErrFileTooLarge
		}
		return nil, err
	}

	files, err := extractFiles(r, maxFileSize)
	if err != nil {
		return nil, err
	}

	return &ParsedMultipart{
		Values: extractValues(r),
		Files:  files,
	}, nil
}

func extractValues(r *http.Request) MultipartValues {
	values := make(MultipartValues)

	if r.MultipartForm != nil {
		for key, arr := range r.MultipartForm.Value {
			if len(arr) == 0 {
				continue
			}
			values[key] = strings.TrimSpace(arr[0])
		}
	}

	return values
}

func extractFiles(r *http.Request, maxFileSize int64) ([]MultipartFile, error) {
	var filesOut []MultipartFile
	closeAll := func() {
		for _, mf := range filesOut {
			mf.File.Close()
		}
	}

	for key, fhs := range r.MultipartForm.File {
		for _, fh := range fhs {
			if maxFileSize > 0 && fh.Size > maxFileSize {
				closeAll()
				return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, fh.Filename, fh.Size)
			}

			f, err := fh.Open()
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
			}

			filesOut = append(filesOut, MultipartFile{Field: key, File: f, Header: fh})
		}
	}

	return filesOut, nil
}
