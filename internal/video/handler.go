package video

import (
	"context"
	"time"

	"github.com/alenastream/alenastream/internal/database"
	"github.com/alenastream/alenastream/internal/geoip"
)

// ObjectStorage issues the signed delivery URLs behind direct and adaptive
// grants.
type ObjectStorage interface {
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	HeadObject(ctx context.Context, key string) (int64, string, error)
	DeleteObject(ctx context.Context, key string) error
}

type Handler struct {
	db          database.DBTX
	storage     ObjectStorage
	baseURL     string
	grantTTL    time.Duration
	geoResolver *geoip.Resolver
}

func NewHandler(db database.DBTX, s ObjectStorage, baseURL string, grantTTL time.Duration) *Handler {
	if grantTTL <= 0 {
		grantTTL = time.Minute
	}
	return &Handler{
		db:       db,
		storage:  s,
		baseURL:  baseURL,
		grantTTL: grantTTL,
	}
}

func (h *Handler) SetGeoResolver(r *geoip.Resolver) {
	h.geoResolver = r
}
