package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxImageBytes is the upload limit applied when none is configured.
const DefaultMaxImageBytes int64 = 5 << 20

const (
	localPrefix  = "/uploads/"
	productsDir  = "products"
	productsPath = localPrefix + productsDir + "/"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
)

var allowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Upload is an image file received from the owner.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// Ext returns the lower-cased file extension including the dot.
func (u *Upload) Ext() string {
	return strings.ToLower(filepath.Ext(u.Filename))
}

// ValidateImage checks extension and size without reading the content.
func ValidateImage(u *Upload, maxBytes int64) error {
	if !allowedImageExt[u.Ext()] {
		return ErrUnsupportedImage
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if u.Size > maxBytes {
		return ErrImageTooLarge
	}
	return nil
}

type ImageStore interface {
	// Save writes the image and returns the URL it is served under.
	Save(ctx context.Context, r io.Reader, ext string) (string, error)
	// Delete removes a previously saved image. URLs this store does not manage are ignored.
	Delete(ctx context.Context, url string) error
}

// DiskImageStore keeps product images under <root>/products, served at /uploads/products/.
type DiskImageStore struct {
	root string
}

func NewDiskImageStore(root string) *DiskImageStore {
	return &DiskImageStore{root: root}
}

func (d *DiskImageStore) Save(_ context.Context, r io.Reader, ext string) (string, error) {
	dir := filepath.Join(d.root, productsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return productsPath + name, nil
}

func (d *DiskImageStore) Delete(_ context.Context, url string) error {
	p, ok := d.localPath(url)
	if !ok {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// localPath maps a /uploads/ URL to a file under root. Anything escaping root is rejected.
func (d *DiskImageStore) localPath(url string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(url), localPrefix) {
		return "", false
	}
	rel := path.Clean("/" + url[len(localPrefix):])
	if rel == "/" {
		return "", false
	}
	return filepath.Join(d.root, filepath.FromSlash(rel)), true
}
