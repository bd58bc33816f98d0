package snapshot

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

const archiveName = "state.tar.sz"

// archiveDir packs the regular files under src into a single
// snappy-compressed tar archive at dst/state.tar.sz.
func archiveDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dst, err)
	}

	out, err := os.Create(filepath.Join(dst, archiveName))
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	sz := snappy.NewBufferedWriter(out)
	tw := tar.NewWriter(sz)

	walkErr := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}

		hdr := &tar.Header{
			Name: filepath.ToSlash(rel),
			Mode: int64(info.Mode().Perm()),
			Size: info.Size(),
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header %s: %w", rel, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archive %s: %w", rel, err)
		}

		return nil
	})

	if walkErr != nil {
		tw.Close()
		sz.Close()
		out.Close()

		return walkErr
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finish tar: %w", err)
	}

	if err := sz.Close(); err != nil {
		return fmt.Errorf("finish compression: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	return nil
}

// unarchiveDir unpacks the archive under src into dst.
func unarchiveDir(src, dst string) error {
	in, err := os.Open(filepath.Join(src, archiveName))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create state dir %s: %w", dst, err)
	}

	tr := tar.NewReader(snappy.NewReader(in))

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		target := filepath.Join(dst, filepath.FromSlash(hdr.Name))

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", hdr.Name, err)
		}

		out, err := os.OpenFile(
			target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
			os.FileMode(hdr.Mode).Perm(),
		)
		if err != nil {
			return fmt.Errorf("create %s: %w", target, err)
		}

		if _, err := io.Copy(out, tr); err != nil {
			out.Close()

			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}

		if err := out.Close(); err != nil {
			return fmt.Errorf("close %s: %w", target, err)
		}
	}
}
