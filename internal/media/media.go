// Package media downloads inbound attachments and stores them durably in
// Google Cloud Storage.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/carpenike/repcoach/internal/logger"
)

// MaxBytes caps the size of one ingested attachment. WhatsApp media tops out
// at 16 MB for video.
const MaxBytes = 32 << 20

// ErrTooLarge is returned when an attachment exceeds MaxBytes.
var ErrTooLarge = errors.New("media: attachment too large")

// Reference identifies one stored blob.
type Reference struct {
	ID          string // object key, <kind>/<uuid><ext>
	URL         string // fetchable https URL
	URI         string // gs://bucket/key, used by Video Intelligence
	ContentType string
}

// Ingestor stores inbound attachments.
type Ingestor interface {
	Ingest(ctx context.Context, url, contentType string) (Reference, error)
	IngestBytes(ctx context.Context, data []byte, contentType string) (Reference, error)
	Bytes(ctx context.Context, ref Reference) ([]byte, error)
}

// blobStore is the object storage the ingestor writes to.
type blobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// GCSIngestor implements Ingestor on a GCS bucket.
type GCSIngestor struct {
	bucket        string
	publicBaseURL string
	blobs         blobStore
	http          *http.Client
	basicUser     string
	basicPass     string
	log           *logger.Logger
	newID         func() string
}

// Options configures a GCSIngestor.
type Options struct {
	Bucket          string
	PublicBaseURL   string // defaults to https://storage.googleapis.com
	CredentialsFile string
	// Twilio media URLs require the account credentials.
	BasicAuthUser string
	BasicAuthPass string
}

// NewGCSIngestor opens a storage client for opts.Bucket.
func NewGCSIngestor(ctx context.Context, opts Options, log *logger.Logger) (*GCSIngestor, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("media: bucket is required")
	}
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	clientOpts = append(clientOpts, option.WithScopes(storage.ScopeReadWrite))

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("media: storage client: %w", err)
	}
	return newIngestor(opts, &gcsBlobs{bucket: client.Bucket(opts.Bucket)}, log), nil
}

func newIngestor(opts Options, blobs blobStore, log *logger.Logger) *GCSIngestor {
	base := strings.TrimRight(opts.PublicBaseURL, "/")
	if base == "" {
		base = "https://storage.googleapis.com"
	}
	return &GCSIngestor{
		bucket:        opts.Bucket,
		publicBaseURL: base,
		blobs:         blobs,
		http:          &http.Client{Timeout: 2 * time.Minute},
		basicUser:     opts.BasicAuthUser,
		basicPass:     opts.BasicAuthPass,
		log:           log.With("component", "media"),
		newID:         uuid.NewString,
	}
}

// Ingest downloads url and stores it. The transport-declared content type
// wins over the one the media host reports.
func (g *GCSIngestor) Ingest(ctx context.Context, url, contentType string) (Reference, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Reference{}, fmt.Errorf("media: build request: %w", err)
	}
	if g.basicUser != "" {
		req.SetBasicAuth(g.basicUser, g.basicPass)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return Reference{}, fmt.Errorf("media: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reference{}, fmt.Errorf("media: download: status %d", resp.StatusCode)
	}
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBytes+1))
	if err != nil {
		return Reference{}, fmt.Errorf("media: read body: %w", err)
	}
	return g.IngestBytes(ctx, data, contentType)
}

// IngestBytes stores an attachment that was already downloaded.
func (g *GCSIngestor) IngestBytes(ctx context.Context, data []byte, contentType string) (Reference, error) {
	if len(data) > MaxBytes {
		return Reference{}, ErrTooLarge
	}
	contentType = baseType(contentType)
	key := fmt.Sprintf("%s/%s%s", Kind(contentType), g.newID(), extension(contentType))

	if err := g.blobs.Put(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		return Reference{}, fmt.Errorf("media: store %s: %w", key, err)
	}
	ref := g.reference(key, contentType)
	g.log.Debug("media stored", "key", key, "content_type", contentType, "bytes", len(data))
	return ref, nil
}

// Bytes reads a stored blob back.
func (g *GCSIngestor) Bytes(ctx context.Context, ref Reference) ([]byte, error) {
	key := ref.ID
	if key == "" {
		key = g.keyFromURI(ref.URI)
	}
	if key == "" {
		return nil, fmt.Errorf("media: reference has no object key")
	}
	rc, err := g.blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("media: open %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("media: read %s: %w", key, err)
	}
	return data, nil
}

// FromURI rebuilds a reference from a persisted gs:// URI.
func (g *GCSIngestor) FromURI(uri, contentType string) Reference {
	return g.reference(g.keyFromURI(uri), contentType)
}

func (g *GCSIngestor) reference(key, contentType string) Reference {
	return Reference{
		ID:          key,
		URL:         g.publicBaseURL + "/" + g.bucket + "/" + key,
		URI:         "gs://" + g.bucket + "/" + key,
		ContentType: contentType,
	}
}

func (g *GCSIngestor) keyFromURI(uri string) string {
	prefix := "gs://" + g.bucket + "/"
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	return strings.TrimPrefix(uri, prefix)
}

// Kind classifies a content type as audio, video or image. Anything that is
// neither audio nor video is treated as an image.
func Kind(contentType string) string {
	ct := baseType(contentType)
	switch {
	case strings.HasPrefix(ct, "audio/"):
		return "audio"
	case strings.HasPrefix(ct, "video/"):
		return "video"
	default:
		return "image"
	}
}

func baseType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

var extensions = map[string]string{
	"audio/ogg":       ".ogg",
	"audio/mpeg":      ".mp3",
	"audio/mp4":       ".m4a",
	"audio/amr":       ".amr",
	"audio/aac":       ".aac",
	"video/mp4":       ".mp4",
	"video/3gpp":      ".3gp",
	"video/quicktime": ".mov",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
}

func extension(contentType string) string {
	return extensions[contentType]
}

// Filename returns a name for ref suitable for multipart uploads.
func Filename(ref Reference) string {
	if i := strings.LastIndex(ref.ID, "/"); i >= 0 {
		return ref.ID[i+1:]
	}
	if ref.ID != "" {
		return ref.ID
	}
	return Kind(ref.ContentType) + extension(baseType(ref.ContentType))
}

type gcsBlobs struct {
	bucket *storage.BucketHandle
}

func (b *gcsBlobs) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	w := b.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBlobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.bucket.Object(key).NewReader(ctx)
}
