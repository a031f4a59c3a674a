// Package pages uploads brochure page images to Cloud Storage.
package pages

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/catalog-importer/internal/credential"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

var ErrNoImages = errors.New("no page images found")

var imageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// ObjectPath is where a page image lives in the bucket.
func ObjectPath(market, language, catalogID, file string) string {
	return path.Join("catalogs", market, language, catalogID, file)
}

// GSPath is the gs:// URI stored in brochure records.
func GSPath(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ListImages returns the image files directly under dir, sorted by name so
// page order follows file naming (page_01.png, page_02.png, ...).
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read page directory")
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.Wrap(ErrNoImages, dir)
	}
	sort.Strings(files)
	return files, nil
}

// Uploader writes page images to one bucket.
type Uploader struct {
	bucket string
	client *storage.Client
	log    *log.Logger

	// open returns a writer for object; it is swapped out in tests.
	open func(ctx context.Context, object, contentType string) io.WriteCloser
}

// NewUploader creates a Cloud Storage client from the service account key.
func NewUploader(ctx context.Context, sa *credential.ServiceAccount, bucket string, logger *log.Logger) (*Uploader, error) {
	client, err := storage.NewClient(ctx, option.WithAuthCredentialsFile(option.ServiceAccount, sa.Path))
	if err != nil {
		return nil, errors.Wrap(err, "create storage client")
	}
	u := &Uploader{bucket: bucket, client: client, log: logger}
	u.open = func(ctx context.Context, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}
	return u, nil
}

func (u *Uploader) Close() error {
	if u.client == nil {
		return nil
	}
	return u.client.Close()
}

// Upload copies files under catalogs/<market>/<language>/<catalogID>/ and
// returns their gs:// paths in input order. Every file is attempted; if any
// failed the returned error says how many, and the paths of failed files
// are empty strings.
func (u *Uploader) Upload(ctx context.Context, market, language, catalogID string, files []string) ([]string, error) {
	paths := make([]string, len(files))
	failed := 0
	for i, f := range files {
		object := ObjectPath(market, language, catalogID, filepath.Base(f))
		if err := u.put(ctx, f, object); err != nil {
			u.log.Error("Error uploading page "+filepath.Base(f), "err", err)
			failed++
			continue
		}
		paths[i] = GSPath(u.bucket, object)
		u.log.Infof("Uploaded %s to %s", filepath.Base(f), object)
	}
	if failed > 0 {
		return paths, errors.Errorf("%d of %d pages failed to upload", failed, len(files))
	}
	return paths, nil
}

func (u *Uploader) put(ctx context.Context, file, object string) error {
	src, err := os.Open(file)
	if err != nil {
		return err
	}
	defer src.Close()

	w := u.open(ctx, object, imageExts[strings.ToLower(filepath.Ext(file))])
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return errors.Wrap(err, "write object")
	}
	return errors.Wrap(w.Close(), "finalize object")
}
