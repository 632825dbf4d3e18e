package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// DriveConfig configures the Google Drive upload sink.
type DriveConfig struct {
	FolderID        string
	CredentialsFile string
	TokenFile       string
	PublicLink      bool   // grant "anyone with the link" read access
	UploadBase      string // default "https://www.googleapis.com/upload/drive/v3"
	APIBase         string // default "https://www.googleapis.com/drive/v3"
	Timeout         time.Duration
	Client          *http.Client // optional; overrides Timeout
	// OAuth overrides the config read from CredentialsFile.
	OAuth  *oauth2.Config
	Logger *slog.Logger
}

// Drive uploads files into a pre-provisioned Drive folder. It never runs an
// interactive authorization: without a usable cached token it fails closed.
type Drive struct {
	folderID        string
	credentialsFile string
	tokenFile       string
	publicLink      bool
	uploadBase      string
	apiBase         string
	client          *http.Client
	oauth           *oauth2.Config
	logger          *slog.Logger

	// mu serializes token refresh and persistence.
	mu sync.Mutex
}

func NewDrive(cfg DriveConfig) *Drive {
	if cfg.UploadBase == "" {
		cfg.UploadBase = "https://www.googleapis.com/upload/drive/v3"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://www.googleapis.com/drive/v3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Drive{
		folderID:        cfg.FolderID,
		credentialsFile: cfg.CredentialsFile,
		tokenFile:       cfg.TokenFile,
		publicLink:      cfg.PublicLink,
		uploadBase:      strings.TrimRight(cfg.UploadBase, "/"),
		apiBase:         strings.TrimRight(cfg.APIBase, "/"),
		client:          cfg.Client,
		oauth:           cfg.OAuth,
		logger:          cfg.Logger,
	}
}

type driveFile struct {
	ID          string `json:"id"`
	WebViewLink string `json:"webViewLink"`
}

// Upload stores the file at path under name and returns its web link.
func (d *Drive) Upload(ctx context.Context, path, name, mimeType string) (string, error) {
	if d.folderID == "" {
		d.logger.Error("drive folder id not configured")
		return "", ErrNotConfigured
	}

	tok, err := d.token(ctx)
	if err != nil {
		d.logger.Error("drive token unavailable", "error", err)
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload file: %w", err)
	}
	defer f.Close()

	body, contentType, err := multipartBody(name, d.folderID, mimeType, f)
	if err != nil {
		return "", err
	}

	endpoint := d.uploadBase + "/files?uploadType=multipart&fields=" + url.QueryEscape("id,webViewLink")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	tok.SetAuthHeader(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("drive upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("drive upload %d: %s", resp.StatusCode, string(respBody))
	}

	var file driveFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return "", fmt.Errorf("decode drive file: %w", err)
	}
	if file.ID == "" {
		return "", errors.New("drive upload: empty file id")
	}

	if d.publicLink {
		if err := d.shareAnyone(ctx, tok, file.ID); err != nil {
			d.logger.Warn("drive share failed", "file_id", file.ID, "error", err)
		}
	}

	link := file.WebViewLink
	if link == "" {
		link = fmt.Sprintf("https://drive.google.com/file/d/%s/view", file.ID)
	}
	d.logger.Info("file uploaded", "file_id", file.ID, "name", name)
	return link, nil
}

func multipartBody(name, folderID, mimeType string, content io.Reader) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	meta, err := json.Marshal(map[string]any{
		"name":    name,
		"parents": []string{folderID},
	})
	if err != nil {
		return nil, "", fmt.Errorf("marshal metadata: %w", err)
	}

	mh := textproto.MIMEHeader{}
	mh.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := w.CreatePart(mh)
	if err != nil {
		return nil, "", fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := part.Write(meta); err != nil {
		return nil, "", fmt.Errorf("write metadata: %w", err)
	}

	fh := textproto.MIMEHeader{}
	fh.Set("Content-Type", mimeType)
	part, err = w.CreatePart(fh)
	if err != nil {
		return nil, "", fmt.Errorf("create media part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, "", fmt.Errorf("copy media: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, "multipart/related; boundary=" + w.Boundary(), nil
}

func (d *Drive) shareAnyone(ctx context.Context, tok *oauth2.Token, fileID string) error {
	body := strings.NewReader(`{"role":"reader","type":"anyone"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiBase+"/files/"+url.PathEscape(fileID)+"/permissions", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("permissions %d", resp.StatusCode)
	}
	return nil
}

// token returns a valid access token. An expired token carrying a refresh
// token is refreshed once and re-persisted; anything else fails closed.
func (d *Drive) token(ctx context.Context) (*oauth2.Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tok, err := LoadToken(d.tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoToken, err)
	}
	if tok.Valid() {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token expired without refresh token", ErrNoToken)
	}

	oc := d.oauth
	if oc == nil {
		oc, err = LoadOAuthConfig(d.credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoToken, err)
		}
	}

	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, d.client)
	fresh, err := oc.TokenSource(refreshCtx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: refresh: %v", ErrNoToken, err)
	}

	if err := SaveToken(d.tokenFile, fresh); err != nil {
		d.logger.Warn("persist refreshed token failed", "error", err)
	}
	d.logger.Info("drive token refreshed", "expiry", fresh.Expiry)
	return fresh, nil
}
