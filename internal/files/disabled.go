package files

import (
	"context"

	"github.com/angelmondragon/miyf-books/pkg/drive"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
)

type disabled struct {
	maxBytes int64
}

// Disabled is used when no Drive folder is configured; every call fails with
// a dependency error.
func Disabled(maxBytes int64) Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return disabled{maxBytes: maxBytes}
}

func errDisabled() error {
	return pkgerrors.New(pkgerrors.CodeDependency, "drive is not configured")
}

func (d disabled) Upload(context.Context, UploadInput) (drive.File, error) {
	return drive.File{}, errDisabled()
}

func (d disabled) Check(context.Context, string) (drive.File, error) {
	return drive.File{}, errDisabled()
}

func (d disabled) List(context.Context) ([]drive.File, error) {
	return nil, errDisabled()
}

func (d disabled) Rename(context.Context, string, string) (drive.File, error) {
	return drive.File{}, errDisabled()
}

func (d disabled) Delete(context.Context, string) error {
	return errDisabled()
}

func (d disabled) MaxBytes() int64 {
	return d.maxBytes
}
