package mediastore

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// DiskStore keeps media files under root, one directory per session.
// Paths handed out are relative to root and use forward slashes.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := utils.CreateFolder(root); err != nil {
		return nil, err
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Root() string { return s.root }

// Extension picks the file extension, without the dot, for a media item: the
// one in fileName when present, otherwise the MIME subtype.
func Extension(mimeType, fileName string) string {
	if ext := filepath.Ext(fileName); len(ext) > 1 {
		return strings.ToLower(utils.SanitizeFilename(ext[1:]))
	}
	base := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	if i := strings.IndexByte(base, '/'); i >= 0 && i < len(base)-1 {
		return utils.SanitizeFilename(base[i+1:])
	}
	return "bin"
}

// Save writes data as <messageID>.<ext> in the session directory and returns
// the relative path. An empty mimeType is sniffed from data.
func (s *DiskStore) Save(sessionID, messageID, mimeType, fileName string, data []byte) (string, error) {
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	name := utils.SanitizeFilename(messageID) + "." + Extension(mimeType, fileName)
	rel := path.Join(utils.SanitizeFilename(sessionID), name)

	full, err := utils.JoinWithin(s.root, rel)
	if err != nil {
		return "", err
	}
	if err := utils.CreateFolder(filepath.Dir(full)); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("write media %s: %w", rel, err)
	}
	logrus.Debugf("[MEDIA] Saved %s (%d bytes)", rel, len(data))
	return rel, nil
}

func (s *DiskStore) Exists(relPath string) bool {
	if relPath == "" {
		return false
	}
	full, err := utils.JoinWithin(s.root, relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// Resolve maps relPath to a filesystem path without checking existence.
func (s *DiskStore) Resolve(relPath string) (string, error) {
	return utils.JoinWithin(s.root, relPath)
}

// Remove deletes one file. A missing file is not an error.
func (s *DiskStore) Remove(relPath string) error {
	full, err := utils.JoinWithin(s.root, relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveSession deletes the whole session directory.
func (s *DiskStore) RemoveSession(sessionID string) error {
	full, err := utils.JoinWithin(s.root, utils.SanitizeFilename(sessionID))
	if err != nil {
		return err
	}
	return os.RemoveAll(full)
}
