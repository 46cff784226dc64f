package backfill

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// PosterReport counts a poster backfill run.
type PosterReport struct {
	Extracted int
	Failed    int
}

// Posters extracts a poster for every stored video that has none. A failed
// extraction is logged and counted; the run continues with the next video.
func Posters(ctx context.Context, svc simplemedia.Service, logger *slog.Logger) (PosterReport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var report PosterReport
	videos, err := svc.List(ctx, simplemedia.NamespaceVideos)
	if err != nil {
		return report, err
	}

	for _, v := range videos {
		if v.StorageKey == "" || v.PosterKey != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		poster, err := svc.ExtractPoster(ctx, simplemedia.ExtractPosterRequest{SourceKey: v.StorageKey, EntryID: v.ID})
		if err != nil {
			logger.Warn("poster backfill failed", "id", v.ID, "key", v.StorageKey, "kind", simplemedia.Kind(err), "error", err)
			report.Failed++
			continue
		}
		logger.Info("poster backfilled", "id", v.ID, "poster", poster.Key)
		report.Extracted++
	}
	return report, nil
}
