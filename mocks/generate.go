package mocks

//go:generate mockgen -destination=./mock_store.go -package=mocks github.com/rxtech-lab/ohlcv-sync/internal/staging Store
//go:generate mockgen -destination=./mock_source.go -package=mocks github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/provider Source
//go:generate mockgen -destination=./mock_warehouse.go -package=mocks github.com/rxtech-lab/ohlcv-sync/internal/warehouse HighWaterMarkStore,EntityLister
//go:generate mockgen -destination=./mock_artifact_writer.go -package=mocks github.com/rxtech-lab/ohlcv-sync/internal/artifact Writer
//go:generate mockgen -destination=./mock_limiter.go -package=mocks github.com/rxtech-lab/ohlcv-sync/internal/ratelimit Limiter
