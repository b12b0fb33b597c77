package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"

	"vbook/config"
)

// NameValues are available to the output name template.
type NameValues struct {
	Name     string
	Title    string
	Author   string
	Language string
	GUID     string
}

// outputName expands configured template with book values. Book directory
// name is used when expansion fails or produces nothing.
func (e *export) outputName() string {
	values := NameValues{
		Name:     e.book.Name(),
		Title:    e.title,
		Author:   e.author,
		Language: e.language,
		GUID:     e.guid,
	}
	name, err := expandNameTemplate(e.cfg.OutputNameTemplate, values)
	if err != nil {
		e.log.Warn("Unable to expand output name template, using book name", zap.Error(err))
	}
	if len(strings.TrimSpace(name)) == 0 {
		name = values.Name
	}
	if e.cfg.FileNameTransliterate {
		name = slug.Make(name)
	}
	return config.CleanFileName(name) + ".epub"
}

func expandNameTemplate(text string, values NameValues) (string, error) {
	tmpl, err := template.New(string(config.OutputNameTemplateFieldName)).Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// pack archives assembled book with mimetype stored uncompressed as the
// first entry.
func pack(src, out string, fixZip bool) error {
	tmpName := out + ".tmp"
	if err := writeArchive(src, tmpName); err != nil {
		os.Remove(tmpName)
		return err
	}
	// clean temporary file
	defer os.Remove(tmpName)

	if fixZip {
		return copyZipWithoutDataDescriptors(tmpName, out)
	}
	return copyFile(tmpName, out)
}

func writeArchive(src, name string) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if err := writeMimetype(zw); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}

	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() || rel == "mimetype" {
			return nil
		}
		return addFileToZip(zw, p, rel)
	})
	if err != nil {
		return fmt.Errorf("unable to archive book: %w", err)
	}

	// make sure buffers are flushed before continuing
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	return nil
}

func writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, mimetypeContent)
	return err
}

func addFileToZip(zw *zip.Writer, p, name string) error {
	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

// copyZipWithoutDataDescriptors rewrites archive clearing data descriptor
// flag, some readers refuse archives having it.
func copyZipWithoutDataDescriptors(from, to string) error {
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	for _, file := range r.File {
		file.Flags &= ^fixzip.FlagDataDescriptor
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to finalize target file (%s): %w", to, err)
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	return out.Close()
}
