package media

import "context"

// File is a resolved media artifact. Path is set when the file is on disk,
// otherwise Data holds the content.
type File struct {
	Path     string
	Data     []byte
	MimeType string
	FileName string
}

type ExistsResponse struct {
	Exists    bool    `json:"exists"`
	MediaPath *string `json:"mediaPath"`
}

type IMediaStore interface {
	// Save writes data under sessionID and returns the relative path.
	Save(sessionID, messageID, mimeType, fileName string, data []byte) (string, error)
	Exists(relPath string) bool
	Resolve(relPath string) (string, error)
	Remove(relPath string) error
	RemoveSession(sessionID string) error
}

type IMediaUsecase interface {
	Exists(ctx context.Context, sessionID, messageID string) (ExistsResponse, error)
	Download(ctx context.Context, sessionID, messageID string) (File, error)
}
