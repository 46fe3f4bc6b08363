// Package source resolves the program a command line asks to run.
package source

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/agilira/go-errors"
)

// Error codes returned by Resolve.
const (
	ErrCodeNoInput      = "SOURCE_NO_INPUT"
	ErrCodeNotFound     = "SOURCE_NOT_FOUND"
	ErrCodeNoEntrypoint = "SOURCE_NO_ENTRYPOINT"
	ErrCodeUnreadable   = "SOURCE_UNREADABLE"
)

// InlineName names programs passed with --code and no input path.
const InlineName = "<inline>"

// entrypoints are tried in order when the input is a directory.
var entrypoints = []string{
	"main.oxi",
	filepath.Join("src", "main.oxi"),
}

// File is a program ready to run.
type File struct {
	// Name labels the program in diagnostics.
	Name     string
	Path     string
	Contents string
}

// Resolve picks the program to run. Inline code wins over input; a directory
// input resolves to its main.oxi, or src/main.oxi when that is missing.
func Resolve(code, input string) (File, error) {
	if code != "" {
		name := input
		if name == "" {
			name = InlineName
		}
		return File{Name: name, Contents: code}, nil
	}
	if input == "" {
		return File{}, errors.New(ErrCodeNoInput, "expected either a file name or contents with --code")
	}

	path, err := entrypoint(input)
	if err != nil {
		return File{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrap(err, ErrCodeUnreadable, fmt.Sprintf("error while reading %s", path))
	}
	return File{Name: input, Path: path, Contents: string(data)}, nil
}

func entrypoint(input string) (string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return "", errors.Wrap(err, ErrCodeNotFound, fmt.Sprintf("cannot find %s", input))
	}
	if !info.IsDir() {
		return input, nil
	}

	for _, candidate := range entrypoints {
		path := filepath.Join(input, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.New(ErrCodeNoEntrypoint,
		fmt.Sprintf("%s is a directory without main.oxi or src/main.oxi", input))
}
