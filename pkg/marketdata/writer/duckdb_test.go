package writer

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/ohlcv-sync/internal/types"
)

type DuckDBEncoderTestSuite struct {
	suite.Suite
	tempDir string
	db      *sql.DB
}

func TestDuckDBEncoderSuite(t *testing.T) {
	suite.Run(t, new(DuckDBEncoderTestSuite))
}

func (suite *DuckDBEncoderTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()

	db, err := sql.Open("duckdb", ":memory:")
	suite.Require().NoError(err)
	suite.db = db
}

func (suite *DuckDBEncoderTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *DuckDBEncoderTestSuite) TestEncodeSchemaAndRows() {
	path := filepath.Join(suite.tempDir, "AAPL_2024_02.parquet")
	suite.Require().NoError(NewDuckDBEncoder().Encode(path, sampleBars()))

	rows, err := suite.db.Query(fmt.Sprintf(`DESCRIBE SELECT * FROM read_parquet('%s')`, path))
	suite.Require().NoError(err)
	defer rows.Close()

	columnTypes, err := rows.Columns()
	suite.Require().NoError(err)

	var names []string
	for rows.Next() {
		values := make([]any, len(columnTypes))
		pointers := make([]any, len(columnTypes))
		for i := range values {
			pointers[i] = &values[i]
		}
		suite.Require().NoError(rows.Scan(pointers...))
		names = append(names, fmt.Sprint(values[0]))
	}
	suite.Equal(Columns, names)

	var count int
	var minDate, maxDate time.Time
	err = suite.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*), MIN(OHLC_DATE), MAX(OHLC_DATE) FROM read_parquet('%s')`, path)).Scan(&count, &minDate, &maxDate)
	suite.Require().NoError(err)
	suite.Equal(5, count)
	suite.Equal(types.Date(2024, time.February, 1), minDate.UTC())
	suite.Equal(types.Date(2024, time.February, 5), maxDate.UTC())
}

func (suite *DuckDBEncoderTestSuite) TestEncodeOrdersRows() {
	bars := sampleBars()
	reversed := []types.PriceBar{bars[4], bars[3], bars[2], bars[1], bars[0]}

	path := filepath.Join(suite.tempDir, "ordered.parquet")
	suite.Require().NoError(NewDuckDBEncoder().Encode(path, reversed))

	var first time.Time
	err := suite.db.QueryRow(fmt.Sprintf(`SELECT OHLC_DATE FROM read_parquet('%s') LIMIT 1`, path)).Scan(&first)
	suite.Require().NoError(err)
	suite.Equal(types.Date(2024, time.February, 1), first.UTC())
}
