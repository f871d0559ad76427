package gemini

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"loom/internal/transcribe"
)

const (
	defaultRegion  = "us-central1"
	defaultTimeout = 10 * time.Minute
	inlineScheme   = "file://"
)

// Config captures the settings required to reach the service.
type Config struct {
	APIKey        string
	Project       string
	UseVertex     bool
	Model         string
	BaseURL       string
	DefaultRegion string
	Timeout       time.Duration
}

// Factory builds and caches clients per region.
type Factory struct {
	cfg Config

	// build creates an uncached client; tests replace it.
	build func(ctx context.Context, cfg Config, region string) (*Client, error)

	mu      sync.Mutex
	clients map[string]*Client
}

// NewFactory returns a factory for the supplied configuration.
func NewFactory(cfg Config) *Factory {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Project = strings.TrimSpace(cfg.Project)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if strings.TrimSpace(cfg.DefaultRegion) == "" {
		cfg.DefaultRegion = defaultRegion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Factory{cfg: cfg, build: newClient, clients: make(map[string]*Client)}
}

// Backend implements transcribe.BackendFactory.
func (f *Factory) Backend(ctx context.Context, region string) (transcribe.Backend, error) {
	client, err := f.Client(ctx, region)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Client returns the cached client for region, creating it on first use.
// The region is ignored outside Vertex mode.
func (f *Factory) Client(ctx context.Context, region string) (*Client, error) {
	key := ""
	if f.cfg.UseVertex {
		key = strings.TrimSpace(region)
		if key == "" {
			key = f.cfg.DefaultRegion
		}
	}
	if client, ok := f.cached(key); ok {
		return client, nil
	}

	// Credential discovery can be slow, so the client is built unlocked and
	// the first one stored for a region wins.
	client, err := f.build(ctx, f.cfg, key)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.clients[key]; ok {
		return existing, nil
	}
	f.clients[key] = client
	return client, nil
}

func (f *Factory) cached(key string) (*Client, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	client, ok := f.clients[key]
	return client, ok
}

// HealthCheck verifies credentials against the default region.
func (f *Factory) HealthCheck(ctx context.Context) error {
	client, err := f.Client(ctx, "")
	if err != nil {
		return err
	}
	return client.HealthCheck(ctx)
}

// Client talks to one region of the service.
type Client struct {
	sdk    *genai.Client
	vertex bool
	region string
}

func newClient(ctx context.Context, cfg Config, region string) (*Client, error) {
	cc := &genai.ClientConfig{
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.UseVertex {
		if cfg.Project == "" {
			return nil, errors.New("vertex mode requires a project id")
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = region
	} else {
		if cfg.APIKey == "" {
			return nil, errors.New("api key is required")
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}
	sdk, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{sdk: sdk, vertex: cfg.UseVertex, region: region}, nil
}

// Region reports the Vertex location this client is bound to.
func (c *Client) Region() string {
	return c.region
}

// Upload stages an audio file for transcription.
func (c *Client) Upload(ctx context.Context, path string) (transcribe.Upload, error) {
	mimeType := mimeFor(path)
	if c.vertex {
		abs, err := filepath.Abs(path)
		if err != nil {
			return transcribe.Upload{}, err
		}
		if _, err := os.Stat(abs); err != nil {
			return transcribe.Upload{}, err
		}
		return transcribe.Upload{URI: inlineScheme + abs, MIMEType: mimeType, State: transcribe.FileStateActive}, nil
	}
	file, err := c.sdk.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: filepath.Base(path),
	})
	if err != nil {
		return transcribe.Upload{}, err
	}
	return fromFile(file), nil
}

// Get refreshes an uploaded file's state.
func (c *Client) Get(ctx context.Context, name string) (transcribe.Upload, error) {
	if c.vertex {
		return transcribe.Upload{Name: name, State: transcribe.FileStateActive}, nil
	}
	file, err := c.sdk.Files.Get(ctx, name, nil)
	if err != nil {
		return transcribe.Upload{}, err
	}
	return fromFile(file), nil
}

// Delete removes an uploaded file.
func (c *Client) Delete(ctx context.Context, name string) error {
	if c.vertex || name == "" {
		return nil
	}
	_, err := c.sdk.Files.Delete(ctx, name, nil)
	return err
}

// Generate runs one transcription request and returns the response text.
func (c *Client) Generate(ctx context.Context, req transcribe.GenerateRequest) (string, error) {
	audio, err := audioPart(req.Upload)
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(req.Prompt),
			audio,
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	resp, err := c.sdk.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// HealthCheck lists a single model page to confirm credentials work.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.sdk.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func audioPart(upload transcribe.Upload) (*genai.Part, error) {
	if path, ok := strings.CutPrefix(upload.URI, inlineScheme); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read audio: %w", err)
		}
		return genai.NewPartFromBytes(data, upload.MIMEType), nil
	}
	if upload.URI == "" {
		return nil, errors.New("upload has no uri")
	}
	return genai.NewPartFromURI(upload.URI, upload.MIMEType), nil
}

func fromFile(file *genai.File) transcribe.Upload {
	if file == nil {
		return transcribe.Upload{State: transcribe.FileStateUnspecified}
	}
	state := transcribe.FileState(file.State)
	if state == "" {
		state = transcribe.FileStateUnspecified
	}
	return transcribe.Upload{
		Name:     file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
		State:    state,
	}
}

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
}

func mimeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
