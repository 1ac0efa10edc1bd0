package store

import (
	"context"
	"fmt"

	"github.com/cnoret/fraudpipe/internal/config"
)

// FromConfig opens the store the configuration selects.
func FromConfig(ctx context.Context, cfg *config.Config) (TransactionStore, error) {
	switch cfg.StorageDriver {
	case "sqlite3", "postgres":
		return OpenSQL(cfg.StorageDriver, cfg.StorageDSN)
	case "bigquery":
		return NewBigQueryStore(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.StorageDriver)
	}
}
