package versionmgr

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"strings"
)

// extractArchive pulls the single core executable out of a release
// archive, choosing the format from the download URL's extension.
// GitHub release assets for this project ship either .zip (Windows)
// or .tar.gz (Linux/macOS).
func extractArchive(body io.Reader, sourceURL string, dest io.Writer) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	switch {
	case strings.HasSuffix(sourceURL, ".zip"):
		return extractZip(data, dest)
	case strings.HasSuffix(sourceURL, ".tar.gz"), strings.HasSuffix(sourceURL, ".tgz"):
		return extractTarGz(data, dest)
	default:
		// Not an archive at all: some release channels publish the
		// bare binary.
		_, err := dest.Write(data)
		return err
	}
}

func extractZip(data []byte, dest io.Writer) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	f := pickExecutable(zr.File)
	if f == nil {
		return errUnsupportedArchive
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(dest, rc)
	return err
}

func pickExecutable(files []*zip.File) *zip.File {
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.ToLower(f.Name)
		if strings.Contains(name, "mihomo") {
			return f
		}
	}
	if len(files) == 1 {
		return files[0]
	}
	return nil
}

func extractTarGz(data []byte, dest io.Writer) error {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return errUnsupportedArchive
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if strings.Contains(strings.ToLower(hdr.Name), "mihomo") {
			_, err = io.Copy(dest, tr)
			return err
		}
	}
}
