package writer

import (
	"bytes"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

func errUnsupportedEncoder(t EncoderType) error {
	return errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported artifact encoder: %q", string(t))
}

// ParquetEncoder writes artifacts with parquet-go. Output is byte-identical for identical input.
type ParquetEncoder struct{}

// NewParquetEncoder creates a ParquetEncoder.
func NewParquetEncoder() *ParquetEncoder {
	return &ParquetEncoder{}
}

// Type implements ArtifactEncoder.
func (e *ParquetEncoder) Type() EncoderType {
	return EncoderParquet
}

// Encode implements ArtifactEncoder.
func (e *ParquetEncoder) Encode(path string, bars []types.PriceBar) error {
	records := make([]Record, 0, len(bars))
	for _, bar := range bars {
		records = append(records, RecordFromBar(bar))
	}

	if err := parquet.WriteFile(path, records, parquet.KeyValueMetadata(SchemaVersionKey, SchemaVersion)); err != nil {
		return errors.Wrapf(errors.ErrCodeArtifactEncodeFailed, err, "failed to encode %d bars to %s", len(bars), path)
	}

	return nil
}

// Decoded is the content of an artifact read back from storage.
type Decoded struct {
	Columns []string
	// SchemaVersion is empty when the file carries no version metadata.
	SchemaVersion string
	Bars          []types.PriceBar
}

// Decode reads an artifact from r.
func Decode(r io.ReaderAt, size int64) (Decoded, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return Decoded{}, errors.Wrap(errors.ErrCodeArtifactInvalid, "failed to open parquet artifact", err)
	}

	var decoded Decoded

	for _, field := range file.Schema().Fields() {
		decoded.Columns = append(decoded.Columns, field.Name())
	}

	if version, ok := file.Lookup(SchemaVersionKey); ok {
		decoded.SchemaVersion = version
	}

	records, err := parquet.Read[Record](r, size)
	if err != nil {
		return Decoded{}, errors.Wrap(errors.ErrCodeArtifactInvalid, "failed to read parquet rows", err)
	}

	decoded.Bars = make([]types.PriceBar, 0, len(records))
	for _, record := range records {
		decoded.Bars = append(decoded.Bars, record.Bar())
	}

	return decoded, nil
}

// DecodeFile reads an artifact from a local path.
func DecodeFile(path string) (Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Decoded{}, errors.Wrapf(errors.ErrCodeArtifactNotFound, err, "failed to read %s", path)
	}

	return Decode(bytes.NewReader(data), int64(len(data)))
}
