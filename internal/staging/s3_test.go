package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/ohlcv-sync/e2e/sync/mockserver"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

const testBucket = "sp500-top-10-sector-leaders-ohlcv-s3bkt"

type S3StoreTestSuite struct {
	suite.Suite
	server *mockserver.MockS3Server
	store  *S3Store
	ctx    context.Context
}

func TestS3StoreSuite(t *testing.T) {
	suite.Run(t, new(S3StoreTestSuite))
}

func (suite *S3StoreTestSuite) SetupTest() {
	suite.server = mockserver.NewMockS3Server(400, testBucket)
	suite.Require().NoError(suite.server.Start(""))

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(suite.server.BaseURL()),
		UsePathStyle:               true,
		Credentials:                aws.AnonymousCredentials{},
		RetryMaxAttempts:           1,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	suite.store = NewS3StoreWithClient(client, testBucket)
	suite.ctx = context.Background()
}

func (suite *S3StoreTestSuite) TearDownTest() {
	if suite.server != nil {
		suite.server.Stop()
	}
}

func (suite *S3StoreTestSuite) TestPutAndGet() {
	body := []byte("PAR1 fake parquet body PAR1")
	suite.Require().NoError(suite.store.Put(suite.ctx, "AAPL_2024_02.parquet", bytes.NewReader(body)))

	stored, ok := suite.server.Object(testBucket, "AAPL_2024_02.parquet")
	suite.Require().True(ok)
	suite.Equal(body, stored)

	rc, err := suite.store.Get(suite.ctx, "AAPL_2024_02.parquet")
	suite.Require().NoError(err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	suite.Require().NoError(err)
	suite.Equal(body, got)
}

func (suite *S3StoreTestSuite) TestGetMissing() {
	_, err := suite.store.Get(suite.ctx, "missing.parquet")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeArtifactNotFound), err.Error())
}

func (suite *S3StoreTestSuite) TestHead() {
	exists, err := suite.store.Head(suite.ctx, "AAPL_2024_02.parquet")
	suite.Require().NoError(err)
	suite.False(exists)

	suite.server.SetObject(testBucket, "AAPL_2024_02.parquet", []byte("x"))

	exists, err = suite.store.Head(suite.ctx, "AAPL_2024_02.parquet")
	suite.Require().NoError(err)
	suite.True(exists)
}

func (suite *S3StoreTestSuite) TestFailedPutKeepsPreviousObject() {
	suite.server.SetObject(testBucket, "MSFT_2024_02.parquet", []byte("previous"))
	suite.server.FailPut("MSFT_2024_02.parquet")

	err := suite.store.Put(suite.ctx, "MSFT_2024_02.parquet", bytes.NewReader([]byte("replacement")))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStagingFailed))

	stored, ok := suite.server.Object(testBucket, "MSFT_2024_02.parquet")
	suite.Require().True(ok)
	suite.Equal([]byte("previous"), stored)
}

func (suite *S3StoreTestSuite) TestListPaginates() {
	for i := 0; i < 1000; i++ {
		suite.server.SetObject(testBucket, fmt.Sprintf("T%04d_2024.parquet", i), []byte("x"))
	}

	suite.server.SetObject(testBucket, "other/ignored.parquet", []byte("x"))

	objects, err := suite.store.List(suite.ctx, "T")
	suite.Require().NoError(err)
	suite.Require().Len(objects, 1000)
	suite.Equal("T0000_2024.parquet", objects[0].Key)
	suite.Equal("T0999_2024.parquet", objects[999].Key)
	suite.Equal(int64(1), objects[0].Size)
}

func (suite *S3StoreTestSuite) TestClearDeletesInBatches() {
	for i := 0; i < 1500; i++ {
		suite.server.SetObject(testBucket, fmt.Sprintf("T%04d_2024_01.parquet", i), []byte("x"))
	}

	var batches []int
	deleted, err := Clear(suite.ctx, suite.store, "", func(done, total int) {
		batches = append(batches, done)
		suite.Equal(1500, total)
	})
	suite.Require().NoError(err)
	suite.Equal(1500, deleted)
	suite.Equal([]int{1000, 1500}, batches)
	suite.Empty(suite.server.Keys(testBucket))
}

func (suite *S3StoreTestSuite) TestNewS3StoreRequiresBucket() {
	_, err := NewS3Store(suite.ctx, S3Config{Region: "us-east-1"})
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}
