package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AttachmentField is the multipart field name accepted by the file handler.
const AttachmentField = "attachment"

// memoryFieldLimit caps how much of a single non-file field is buffered.
const memoryFieldLimit = 1 << 20

// maxRenameAttempts bounds sequential conflict-avoidance suffixes before the
// storage falls back to a random name.
const maxRenameAttempts = 25

// ErrInvalidFilename is returned for names that escape the storage directory.
var ErrInvalidFilename = errors.New("invalid attachment filename")

// ErrFieldTooLarge is returned when a buffered form field exceeds the
// per-field limit.
var ErrFieldTooLarge = errors.New("form field exceeds size limit")

// Part is one multipart form field offered to the handler chain.
type Part struct {
	FieldName   string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Handler inspects a part and either claims it, producing the field's value,
// or declines it so the next handler in the chain is tried.
type Handler func(p *Part) (value string, handled bool, err error)

// ParseForm reads a multipart request body, offering each part to the
// handlers in order. The first handler to claim a part supplies its value;
// parts nobody claims are drained and dropped.
func ParseForm(r *http.Request, handlers ...Handler) (url.Values, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("multipart reader: %w", err)
	}

	values := url.Values{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}
		if err := handlePart(part, values, handlers); err != nil {
			part.Close()
			return nil, err
		}
		part.Close()
	}
	return values, nil
}

func handlePart(part *multipart.Part, values url.Values, handlers []Handler) error {
	p := &Part{
		FieldName:   part.FormName(),
		FileName:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Body:        part,
	}
	if p.FieldName == "" {
		_, err := io.Copy(io.Discard, part)
		return err
	}
	for _, h := range handlers {
		value, handled, err := h(p)
		if err != nil {
			return err
		}
		if handled {
			values.Add(p.FieldName, value)
			return nil
		}
	}
	_, err := io.Copy(io.Discard, part)
	return err
}

// MemoryHandler buffers any part into its field value. It is the fallback at
// the end of a handler chain. A field larger than the buffer limit is an
// error, never a silent truncation.
func MemoryHandler() Handler {
	return func(p *Part) (string, bool, error) {
		data, err := io.ReadAll(io.LimitReader(p.Body, memoryFieldLimit+1))
		if err != nil {
			return "", false, fmt.Errorf("read field %s: %w", p.FieldName, err)
		}
		if len(data) > memoryFieldLimit {
			return "", false, fmt.Errorf("field %s: %w", p.FieldName, ErrFieldTooLarge)
		}
		return string(data), true, nil
	}
}

// Storage persists attachment files under a subdirectory per owner, never
// overwriting an existing file. An owner can only ever read or remove files
// inside its own subdirectory.
type Storage struct {
	dir string
}

// NewStorage creates the attachments directory if needed.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Handler returns the upload handler storing files for the given owner. It
// claims only parts named AttachmentField that carry a filename; everything
// else falls through.
func (s *Storage) Handler(owner string) Handler {
	return func(p *Part) (string, bool, error) {
		if p.FieldName != AttachmentField || p.FileName == "" {
			return "", false, nil
		}
		name, err := s.Save(owner, p.FileName, p.Body)
		if err != nil {
			return "", false, err
		}
		return name, true, nil
	}
}

// Save writes the reader's content under the given name inside the owner's
// directory and returns the name actually stored. On a name collision the
// file is saved under a suffixed name instead; creation uses O_EXCL so
// concurrent uploads of the same name cannot clobber each other.
func (s *Storage) Save(owner, name string, r io.Reader) (string, error) {
	ownerDir, err := s.ownerDir(owner)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return "", fmt.Errorf("create owner dir: %w", err)
	}
	base, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := base
	for attempt := 1; ; attempt++ {
		f, err := os.OpenFile(filepath.Join(ownerDir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if _, err := io.Copy(f, r); err != nil {
				f.Close()
				os.Remove(f.Name())
				return "", fmt.Errorf("write attachment: %w", err)
			}
			if err := f.Close(); err != nil {
				return "", fmt.Errorf("close attachment: %w", err)
			}
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create attachment: %w", err)
		}
		if attempt > maxRenameAttempts {
			candidate = fmt.Sprintf("%s-%s%s", stem, uuid.New().String()[:8], ext)
			continue
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, attempt, ext)
	}
}

// Path resolves a stored filename to its on-disk path inside the owner's
// directory.
func (s *Storage) Path(owner, name string) (string, error) {
	ownerDir, err := s.ownerDir(owner)
	if err != nil {
		return "", err
	}
	base, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(ownerDir, base), nil
}

// Remove deletes one of the owner's stored files. A missing file is not an
// error.
func (s *Storage) Remove(owner, name string) error {
	path, err := s.Path(owner, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Storage) ownerDir(owner string) (string, error) {
	base, err := sanitizeName(owner)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, base), nil
}

func sanitizeName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "" || base == "." || base == ".." || strings.ContainsRune(base, os.PathSeparator) {
		return "", ErrInvalidFilename
	}
	return base, nil
}
