package depmanager

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

type archiveKind int

const (
	archiveNone archiveKind = iota
	archiveZip
	archiveTarXZ
	archiveTarGZ
)

func archiveKindOf(url string) archiveKind {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return archiveZip
	case strings.HasSuffix(url, ".tar.xz"):
		return archiveTarXZ
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		return archiveTarGZ
	default:
		return archiveNone
	}
}

// extract copies the regular files whose base name is in members into destDir.
// Archive directory layout is flattened.
func extract(src string, kind archiveKind, destDir string, members []BinaryName) error {
	want := make(map[string]bool, len(members))
	for _, name := range members {
		want[string(name)] = false
	}

	var err error

	switch kind {
	case archiveZip:
		err = extractZip(src, destDir, want)
	case archiveTarXZ, archiveTarGZ:
		err = extractTar(src, kind, destDir, want)
	default:
		err = errors.New("not an archive")
	}

	if err != nil {
		return err
	}

	var missing []string

	for name, found := range want {
		if !found {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("archive lacks %s", strings.Join(missing, ", "))
	}

	return nil
}

func extractZip(src, destDir string, want map[string]bool) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		name := filepath.Base(f.Name)
		if f.FileInfo().IsDir() || !pending(want, name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}

		err = writeMember(filepath.Join(destDir, name), rc)
		rc.Close()

		if err != nil {
			return err
		}

		want[name] = true
	}

	return nil
}

func extractTar(src string, kind archiveKind, destDir string, want map[string]bool) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var stream io.Reader

	if kind == archiveTarXZ {
		stream, err = xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("xz reader: %w", err)
		}
	} else {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()

		stream = gz
	}

	tr := tar.NewReader(stream)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		name := filepath.Base(hdr.Name)
		if hdr.Typeflag != tar.TypeReg || !pending(want, name) {
			continue
		}

		if err := writeMember(filepath.Join(destDir, name), tr); err != nil {
			return err
		}

		want[name] = true

		if done(want) {
			return nil
		}
	}
}

func pending(want map[string]bool, name string) bool {
	found, ok := want[name]

	return ok && !found
}

func done(want map[string]bool) bool {
	for _, found := range want {
		if !found {
			return false
		}
	}

	return true
}

func writeMember(dst string, r io.Reader) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, permExecutable)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()

		return fmt.Errorf("write %s: %w", dst, err)
	}

	return out.Close()
}
