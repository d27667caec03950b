// Package notesfile reads clinical-notes documents and writes the redacted
// text and mapping log. It owns the I/O error kinds surfaced by the CLI.
package notesfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Sentinel errors. Callers match them with errors.Is; the wrapped error
// carries the path and the underlying cause.
var (
	ErrInputMissing  = errors.New("input unavailable")
	ErrOutputFailure = errors.New("output not written")
)

// Read returns the whole document at path decoded as UTF-8. A leading
// byte-order mark is dropped; everything else, line endings included, is
// returned untouched.
func Read(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path is an operator-supplied input file
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInputMissing, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	text, err := Decode(f)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrInputMissing, path, err)
	}
	return text, nil
}

// Decode reads r to the end through a BOM-aware UTF-8 decoder.
func Decode(r io.Reader) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(r, dec))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write creates (or truncates) path and writes text to it.
func Write(path, text string) error {
	return WriteTo(path, strings.NewReader(text))
}

// WriteTo streams src into path. The file is closed on every path and a
// failed close is reported.
func WriteTo(path string, src io.WriterTo) (err error) {
	f, err := os.Create(path) // #nosec G304 -- path is an operator-supplied output file
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutputFailure, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", ErrOutputFailure, path, cerr)
		}
	}()

	if _, err := src.WriteTo(f); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrOutputFailure, path, err)
	}
	return nil
}
