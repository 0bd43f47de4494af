package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/miyf-books/pkg/config"
	"github.com/angelmondragon/miyf-books/pkg/googleauth"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	fileFields  = "id, name, mimeType, size, createdTime, parents"
	listFields  = "nextPageToken, files(" + fileFields + ")"
	pingTimeout = 5 * time.Second

	permissionAnyone = "anyone"
	permissionReader = "reader"
)

// ErrNotFound is returned when Drive reports the file does not exist.
var ErrNotFound = errors.New("drive: file not found")

// File is the subset of Drive file metadata the service exposes.
type File struct {
	ID          string    `json:"fileId"`
	Name        string    `json:"fileName"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	CreatedTime time.Time `json:"createdTime"`
	ViewURL     string    `json:"viewUrl"`
	DownloadURL string    `json:"downloadUrl"`
}

// ViewURL is the browser link for an anyone-with-link file.
func ViewURL(fileID string) string {
	return "https://drive.google.com/file/d/" + fileID + "/view"
}

// DownloadURL is the direct download link for an anyone-with-link file.
func DownloadURL(fileID string) string {
	return "https://drive.google.com/uc?export=download&id=" + fileID
}

type Client struct {
	svc      *gdrive.Service
	folderID string
	logg     *logger.Logger
}

func NewClient(ctx context.Context, cfg config.DriveConfig, logg *logger.Logger, opts ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.FolderID) == "" {
		return nil, errors.New("drive folder id is required")
	}
	clientOpts := googleauth.Endpoint(cfg.Endpoint)
	if clientOpts == nil {
		auth, err := googleauth.ServiceAccount(ctx, cfg.ServiceEmail, cfg.PrivateKey, gdrive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("drive credentials: %w", err)
		}
		clientOpts = append(clientOpts, auth)
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gdrive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "drive client initialized")
	}
	return &Client{svc: svc, folderID: cfg.FolderID, logg: logg}, nil
}

func (c *Client) FolderID() string {
	if c == nil {
		return ""
	}
	return c.folderID
}

// Upload stores body in the configured folder under name.
func (c *Client) Upload(ctx context.Context, name, mimeType string, body io.Reader) (File, error) {
	meta := &gdrive.File{Name: name, Parents: []string{c.folderID}, MimeType: mimeType}
	created, err := c.svc.Files.Create(meta).
		Media(body, googleapi.ContentType(mimeType)).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, translate(err)
	}
	return toFile(created), nil
}

// Share grants anyone with the link read access.
func (c *Client) Share(ctx context.Context, fileID string) error {
	_, err := c.svc.Permissions.Create(fileID, &gdrive.Permission{
		Type: permissionAnyone,
		Role: permissionReader,
	}).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return translate(err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, fileID string) (File, error) {
	f, err := c.svc.Files.Get(fileID).Fields(fileFields).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return File{}, translate(err)
	}
	return toFile(f), nil
}

// List returns the folder's live files, newest first.
func (c *Client) List(ctx context.Context) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(c.folderID))
	var out []File
	err := c.svc.Files.List().
		Q(query).
		Fields(listFields).
		OrderBy("createdTime desc").
		PageSize(100).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Pages(ctx, func(page *gdrive.FileList) error {
			for _, f := range page.Files {
				out = append(out, toFile(f))
			}
			return nil
		})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (c *Client) Rename(ctx context.Context, fileID, name string) (File, error) {
	f, err := c.svc.Files.Update(fileID, &gdrive.File{Name: name}).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, translate(err)
	}
	return toFile(f), nil
}

func (c *Client) Delete(ctx context.Context, fileID string) error {
	if err := c.svc.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return translate(err)
	}
	return nil
}

// Ping checks the configured folder is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errors.New("drive client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.svc.Files.Get(c.folderID).Fields("id").SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return fmt.Errorf("drive folder check failed: %w", translate(err))
	}
	return nil
}

func toFile(f *gdrive.File) File {
	out := File{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		Size:        f.Size,
		ViewURL:     ViewURL(f.Id),
		DownloadURL: DownloadURL(f.Id),
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		out.CreatedTime = t.UTC()
	}
	return out
}

func escapeQuery(v string) string {
	return strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), "'", `\'`)
}

func translate(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("drive: %w", err)
}
