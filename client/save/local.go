// Package save manages the game client's save data: the on-disk local
// store, reconciliation with the cloud copy, and the in-memory manager the
// game mutates during play.
package save

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/catjump/catjump/pkg/log"
	pkgsave "github.com/catjump/catjump/pkg/save"
	"github.com/catjump/catjump/pkg/types"
	"github.com/klauspost/compress/zstd"
)

// SaveFileName is the save file within the data directory.
const SaveFileName = "catjump_save.json.zst"

// LocalStore persists the save as zstd-compressed JSON. Writes go through
// a temp file and rename so a crash never leaves a half-written save.
type LocalStore struct {
	path string
	now  func() time.Time
}

type NewLocalStoreOptions struct {
	// Dir is the data directory the save file lives in.
	Dir string
}

func NewLocalStore(opts NewLocalStoreOptions) *LocalStore {
	return &LocalStore{
		path: filepath.Join(opts.Dir, SaveFileName),
		now:  time.Now,
	}
}

// Load reads the save from disk. A missing or unreadable file is treated
// as no save at all, so a corrupted file falls back to the cloud copy or
// defaults instead of blocking the boot.
func (s *LocalStore) Load() (*types.SaveSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read save file: %v", err)
	}

	reader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		log.Warn("Save file is not valid zstd, discarding: %v", err)
		return nil, nil
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		log.Warn("Save file failed to decompress, discarding: %v", err)
		return nil, nil
	}

	snapshot, err := pkgsave.Decode(raw)
	if err != nil {
		log.Warn("Save file failed to decode, discarding: %v", err)
		return nil, nil
	}

	return pkgsave.Migrate(snapshot), nil
}

// Save writes the snapshot to disk, stamping LastSaved.
func (s *LocalStore) Save(snapshot *types.SaveSnapshot) error {
	snapshot.LastSaved = s.now().UnixMilli()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal save: %v", err)
	}

	compressed := bytes.NewBuffer(nil)
	writer, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return fmt.Errorf("failed to compress save: %v", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %v", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, compressed.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write save file: %v", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename save file: %v", err)
	}

	return nil
}
