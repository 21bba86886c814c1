package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// fileRecord is the JSON-lines wire shape written by FileStrategy.
type fileRecord struct {
	TaskID       string `json:"taskId"`
	SubmitTimeMs int64  `json:"submitTimeMs"`
	Priority     int    `json:"priority"`
	Blob         []byte `json:"blob"`
}

// FileStrategy persists the queue image as a single JSON-lines file. Save
// writes to a temp file in the same directory and renames it into place, so
// a crash mid-write leaves either the old or the new image intact.
type FileStrategy struct {
	path string
}

// NewFileStrategy creates a FileStrategy writing to path. The parent
// directory is created on demand by Save.
func NewFileStrategy(path string) *FileStrategy {
	return &FileStrategy{path: path}
}

func (f *FileStrategy) Save(ctx context.Context, tasks []SerializableTask) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrapErr("file.save.mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".persistence-*.tmp")
	if err != nil {
		return wrapErr("file.save.createtemp", err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return wrapErr("file.save.ctx", err)
		}
		rec := fileRecord{TaskID: t.TaskID, SubmitTimeMs: t.SubmitTimeMs, Priority: t.Priority, Blob: t.Blob}
		if err := enc.Encode(rec); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return wrapErr("file.save.encode", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return wrapErr("file.save.flush", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return wrapErr("file.save.sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return wrapErr("file.save.close", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return wrapErr("file.save.rename", err)
	}
	return nil
}

func (f *FileStrategy) Load(ctx context.Context) ([]SerializableTask, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, wrapErr("file.load.open", err)
	}
	defer file.Close()

	var out []SerializableTask
	dec := json.NewDecoder(bufio.NewReader(file))
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, wrapErr("file.load.ctx", err)
		}
		var rec fileRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, wrapErr("file.load.decode", err)
		}
		out = append(out, SerializableTask{
			TaskID:       rec.TaskID,
			SubmitTimeMs: rec.SubmitTimeMs,
			Priority:     rec.Priority,
			Blob:         rec.Blob,
		})
	}
	return out, nil
}

func (f *FileStrategy) Cleanup(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return wrapErr("file.cleanup", err)
	}
	return nil
}

var _ Strategy = (*FileStrategy)(nil)
var _ fmt.Stringer = (*FileStrategy)(nil)

func (f *FileStrategy) String() string { return fmt.Sprintf("FileStrategy(%s)", f.path) }
