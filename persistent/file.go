package persistent

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tessera/domain"
)

// SaveLayout stores patch domains in the file. Domains are written to the temporary file renamed to path
// afterwards, so readers never see partially written layout.
func SaveLayout(ctx context.Context, path string, domains []domain.Domain) (retErr error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temporary file for %q failed", path)
	}
	defer func() {
		if retErr != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	w := bufio.NewWriter(f)
	if err := WriteLayout(w, domains); err != nil {
		return errors.Wrapf(err, "writing layout to %q failed", path)
	}
	if err := w.Flush(); err != nil {
		return errors.WithStack(err)
	}
	if err := f.Sync(); err != nil {
		return errors.WithStack(err)
	}
	if err := f.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return errors.Wrapf(err, "renaming layout file to %q failed", path)
	}

	logger.Get(ctx).Debug("Layout saved", zap.String("path", path), zap.Int("patches", len(domains)))
	return nil
}

// LoadLayout loads patch domains of the dimension from the file.
func LoadLayout(ctx context.Context, path string, dim int) ([]domain.Domain, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening file %q failed", path)
	}
	defer f.Close()

	domains, err := ReadLayout(bufio.NewReader(f), dim)
	if err != nil {
		return nil, errors.Wrapf(err, "reading layout from %q failed", path)
	}

	logger.Get(ctx).Debug("Layout loaded", zap.String("path", path), zap.Int("patches", len(domains)))
	return domains, nil
}
