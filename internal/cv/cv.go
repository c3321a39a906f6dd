// Package cv runs the native image pipeline executor and packages its output.
package cv

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrNoOutputs = errors.New("pipeline produced no outputs")

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
}

// IsImageFile reports whether name has an extension the executor can read.
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Executor invokes the cv binary at Path. The binary writes one output per
// input into the output directory under the input's file name.
type Executor struct {
	Path string
}

func (e Executor) Run(ctx context.Context, outputDir string, inputs []string, pipeline []byte) error {
	if len(inputs) == 0 {
		return errors.New("no input files")
	}
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	args := []string{"--output", absOut, "--input"}
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("resolve input %s: %w", in, err)
		}
		args = append(args, abs)
	}
	args = append(args, "--pipeline", string(pipeline))

	out, err := exec.CommandContext(ctx, e.Path, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("cv failed: %w, output: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SanitizeName reduces an uploaded file name to a safe base name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := strings.TrimLeft(b.String(), ".")
	if s == "" {
		return "image"
	}
	return s
}

// UniqueNames sanitizes names and suffixes repeats so each output file maps
// back to exactly one input: cat.png, cat-1.png, cat-2.png.
func UniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		clean := SanitizeName(name)
		ext := filepath.Ext(clean)
		stem := strings.TrimSuffix(clean, ext)
		candidate := clean
		for n := 1; seen[strings.ToLower(candidate)]; n++ {
			candidate = stem + "-" + strconv.Itoa(n) + ext
		}
		seen[strings.ToLower(candidate)] = true
		out[i] = candidate
	}
	return out
}

// ZipOutputs writes the outputs in dir named after names into a zip on w.
// Names without an output are skipped. It returns the number of entries.
func ZipOutputs(w io.Writer, dir string, names []string) (int, error) {
	zw := zip.NewWriter(w)
	count := 0
	for _, name := range names {
		path := filepath.Join(dir, filepath.Base(name))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := addFile(zw, path, info); err != nil {
			zw.Close()
			return count, err
		}
		count++
	}
	if err := zw.Close(); err != nil {
		return count, fmt.Errorf("finish zip: %w", err)
	}
	if count == 0 {
		return 0, ErrNoOutputs
	}
	return count, nil
}

func addFile(zw *zip.Writer, path string, info os.FileInfo) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open output %s: %w", info.Name(), err)
	}
	defer f.Close()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = info.Name()
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("zip output %s: %w", info.Name(), err)
	}
	return nil
}
