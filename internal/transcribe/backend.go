package transcribe

import "context"

// FileState is the ingestion state of an uploaded file.
type FileState string

const (
	FileStateUnspecified FileState = "STATE_UNSPECIFIED"
	FileStateProcessing  FileState = "PROCESSING"
	FileStateActive      FileState = "ACTIVE"
	FileStateFailed      FileState = "FAILED"
)

// Upload describes a file staged with the remote service.
type Upload struct {
	Name     string
	URI      string
	MIMEType string
	State    FileState
}

// GenerateRequest carries a single transcription call.
type GenerateRequest struct {
	Model             string
	SystemInstruction string
	Prompt            string
	Upload            Upload
	Temperature       float32
}

// Backend is the remote transcription capability used by the orchestrator.
type Backend interface {
	Upload(ctx context.Context, path string) (Upload, error)
	Get(ctx context.Context, name string) (Upload, error)
	Delete(ctx context.Context, name string) error
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// BackendFactory builds a Backend bound to a region. An empty region selects
// the factory default.
type BackendFactory interface {
	Backend(ctx context.Context, region string) (Backend, error)
}

// BackendFactoryFunc adapts a function to BackendFactory.
type BackendFactoryFunc func(ctx context.Context, region string) (Backend, error)

// Backend implements BackendFactory.
func (f BackendFactoryFunc) Backend(ctx context.Context, region string) (Backend, error) {
	return f(ctx, region)
}
