package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNoFile       = errors.New("no file uploaded")
	ErrFileTooLarge = errors.New("file size exceeds limit")
	ErrEmptyFile    = errors.New("uploaded file is empty")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateUploadFile(file *multipart.FileHeader) error
	ReadUploadFile(file *multipart.FileHeader) ([]byte, error)
	FileExtension(fileName string) string
	SHA256Hex(data []byte) string
}

type utils struct {
	maxFileSize int64
}

func New(maxFileSize int64) IUtils {
	if maxFileSize <= 0 {
		maxFileSize = 50 * 1024 * 1024
	}
	return &utils{
		maxFileSize: maxFileSize,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// ValidateUploadFile only checks presence and size. Radiographs arrive as
// application/octet-stream often enough that the content type is useless;
// the extension check lives in the scan service.
func (u *utils) ValidateUploadFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if file.Size > u.maxFileSize {
		return ErrFileTooLarge
	}

	if file.Size == 0 {
		return ErrEmptyFile
	}

	return nil
}

func (u *utils) ReadUploadFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return io.ReadAll(io.LimitReader(src, u.maxFileSize+1))
}

// FileExtension returns the lower-cased extension without the dot.
func (u *utils) FileExtension(fileName string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
}

func (u *utils) SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
