package geocode

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/muni-info/backend/internal/models"
)

var ErrNotFound = errors.New("location not found")

// Resolver names the administrative areas covering a coordinate pair.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) (models.LocationInfo, error)
}

// FallbackResolver consults Primary and, when it fails, Fallback. The
// intake flow must always be able to name an area, so the usual wiring
// is the MapIt client backed by the seed table.
type FallbackResolver struct {
	Primary  Resolver
	Fallback Resolver
	Logger   zerolog.Logger
}

func (r *FallbackResolver) Resolve(ctx context.Context, lat, lon float64) (models.LocationInfo, error) {
	info, err := r.Primary.Resolve(ctx, lat, lon)
	if err == nil {
		return info, nil
	}
	r.Logger.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("primary resolver failed, using seed table")
	return r.Fallback.Resolve(ctx, lat, lon)
}
