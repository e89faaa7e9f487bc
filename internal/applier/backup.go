// internal/applier/backup.go
package applier

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// FileBackupStore is the filesystem implementation of schemas.BackupStore.
// One backup entry per (run ID, suggestion fingerprint, file path), retained
// until Cleanup is called for the run.
type FileBackupStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewFileBackupStore builds a store rooted at baseDir. An empty baseDir falls
// back to a per-process temp directory.
func NewFileBackupStore(baseDir string, logger *zap.Logger) (*FileBackupStore, error) {
	if baseDir == "" {
		dir, err := os.MkdirTemp("", "mend-backups-")
		if err != nil {
			return nil, fmt.Errorf("failed to create backup directory: %w", err)
		}
		baseDir = dir
	} else if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", baseDir, err)
	}
	return &FileBackupStore{baseDir: baseDir, logger: logger.Named("backup-store")}, nil
}

// Backup stores the current content of the file at absPath.
func (s *FileBackupStore) Backup(runID, fingerprint, absPath string) (schemas.BackupRef, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return schemas.BackupRef{}, fmt.Errorf("failed to read %s for backup: %w", absPath, err)
	}

	entryDir := filepath.Join(s.baseDir, runID, shortFingerprint(fingerprint))
	if err := os.MkdirAll(entryDir, 0o755); err != nil {
		return schemas.BackupRef{}, fmt.Errorf("failed to create backup entry dir: %w", err)
	}

	backupPath := filepath.Join(entryDir, pathDigest(absPath)+".bak")
	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return schemas.BackupRef{}, fmt.Errorf("failed to write backup for %s: %w", absPath, err)
	}

	s.logger.Debug("Backed up file", zap.String("path", absPath), zap.String("backup", backupPath))
	return schemas.BackupRef{
		RunID:       runID,
		Fingerprint: fingerprint,
		Path:        absPath,
		BackupPath:  backupPath,
	}, nil
}

// Restore writes the backed-up content back to its original location.
func (s *FileBackupStore) Restore(ref schemas.BackupRef) error {
	content, err := os.ReadFile(ref.BackupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup %s: %w", ref.BackupPath, err)
	}
	if err := os.WriteFile(ref.Path, content, 0o644); err != nil {
		return fmt.Errorf("failed to restore %s: %w", ref.Path, err)
	}
	s.logger.Info("Restored file from backup", zap.String("path", ref.Path))
	return nil
}

// Cleanup removes all backup entries for the run.
func (s *FileBackupStore) Cleanup(runID string) error {
	return os.RemoveAll(filepath.Join(s.baseDir, runID))
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func pathDigest(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}
