// Package backup provides tar.gz-based backup and restore for the store
// snapshot and the config file.
package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/HerbHall/newslens/internal/store"
)

// SnapshotEntry is the archive member holding the store snapshot.
const SnapshotEntry = "snapshot.json"

// maxEntryBytes bounds the size of any archive member read on restore.
const maxEntryBytes = 256 << 20

// ErrExists is returned by Restore when a target already exists and
// force is not set.
var ErrExists = errors.New("restore target already exists")

// checkpointer is implemented by blob stores that buffer writes, such as
// the SQLite store's write-ahead log.
type checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Backup creates a tar.gz archive containing the store snapshot and an
// optional config file. Buffered writes are flushed first.
func Backup(ctx context.Context, blobs store.BlobStore, configPath, outputPath string) error {
	if cp, ok := blobs.(checkpointer); ok {
		if err := cp.Checkpoint(ctx); err != nil {
			return fmt.Errorf("WAL checkpoint failed: %w", err)
		}
	}

	data, err := blobs.Load(ctx, store.SnapshotBlobName)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if _, err := store.DecodeSnapshot(data); err != nil {
		return fmt.Errorf("refusing to back up invalid snapshot: %w", err)
	}

	// Create the output archive.
	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	if err := addBytesToTar(tw, SnapshotEntry, data); err != nil {
		return fmt.Errorf("adding snapshot to archive: %w", err)
	}

	// Add the config file if specified and it exists.
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := addFileToTar(tw, configPath, filepath.Base(configPath)); err != nil {
				return fmt.Errorf("adding config to archive: %w", err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return outFile.Close()
}

// Restore reads an archive created by Backup. The snapshot is written to
// blobs; other members are written to configDir when it is not empty.
// Existing data is only replaced when force is set.
func Restore(ctx context.Context, inputPath string, blobs store.BlobStore, configDir string, force bool) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	restored := false
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(tr, maxEntryBytes+1))
		if err != nil {
			return fmt.Errorf("reading %s: %w", hdr.Name, err)
		}
		if len(data) > maxEntryBytes {
			return fmt.Errorf("archive member %s is too large", hdr.Name)
		}

		name := filepath.Base(hdr.Name)
		if name == SnapshotEntry {
			if err := restoreSnapshot(ctx, blobs, data, force); err != nil {
				return err
			}
			restored = true
			continue
		}
		if configDir == "" {
			continue
		}
		if err := writeFile(filepath.Join(configDir, name), data, force); err != nil {
			return err
		}
	}

	if !restored {
		return fmt.Errorf("archive has no %s", SnapshotEntry)
	}
	return nil
}

func restoreSnapshot(ctx context.Context, blobs store.BlobStore, data []byte, force bool) error {
	if _, err := store.DecodeSnapshot(data); err != nil {
		return fmt.Errorf("archive snapshot is invalid: %w", err)
	}
	if !force {
		_, err := blobs.Load(ctx, store.SnapshotBlobName)
		switch {
		case err == nil:
			return fmt.Errorf("snapshot: %w (use --force to overwrite)", ErrExists)
		case !errors.Is(err, store.ErrBlobNotFound):
			return fmt.Errorf("checking existing snapshot: %w", err)
		}
	}
	if err := blobs.Save(ctx, store.SnapshotBlobName, data); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

func writeFile(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w (use --force to overwrite)", path, ErrExists)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func addBytesToTar(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o600,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(data))
	return err
}

// addFileToTar adds a single file to the tar archive under the given name.
func addFileToTar(tw *tar.Writer, filePath, archiveName string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = archiveName

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)
	return err
}
