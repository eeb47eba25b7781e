package settings

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"online-shop/internal/model"

	"github.com/rs/zerolog"
)

// fileLoader implements Loader for documents on the local file system.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based settings loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "settings-loader").Logger(),
	}
}

// Load reads a YAML document. Paths ending in .gz are decompressed first.
func (l *fileLoader) Load(ctx context.Context, filePath string, base model.DeliverySettings) (model.DeliverySettings, error) {
	l.logger.Info().Str("file", filePath).Msg("loading delivery settings file")

	if err := ctx.Err(); err != nil {
		return model.DeliverySettings{}, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to open delivery settings file")
		return model.DeliverySettings{}, fmt.Errorf("failed to open delivery settings file %s: %w", filePath, err)
	}
	defer file.Close()

	settings, err := decode(file, filePath, base)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to read delivery settings file")
		return model.DeliverySettings{}, err
	}

	l.logger.Info().
		Str("file", filePath).
		Str("express_cost", settings.ExpressCost.String()).
		Str("regular_cost", settings.RegularCost.String()).
		Str("free_from", settings.FreeFrom.String()).
		Msg("delivery settings file loaded")

	return settings, nil
}

func decode(r io.Reader, name string, base model.DeliverySettings) (model.DeliverySettings, error) {
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return model.DeliverySettings{}, fmt.Errorf("failed to create gzip reader for %s: %w", name, err)
		}
		defer gz.Close()
		r = gz
	}
	return Parse(r, base)
}
