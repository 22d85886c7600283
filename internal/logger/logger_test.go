package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestNewLoggerWithOptions() {
	tests := []struct {
		name      string
		level     string
		format    string
		expectErr bool
	}{
		{name: "debug json", level: "debug", format: "json"},
		{name: "warn console", level: "WARN", format: "console"},
		{name: "empty format defaults to json", level: "info", format: ""},
		{name: "bad level", level: "verbose", format: "json", expectErr: true},
		{name: "bad format", level: "info", format: "xml", expectErr: true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			logger, err := NewLoggerWithOptions(tc.level, tc.format)
			if tc.expectErr {
				suite.Error(err)
				suite.Nil(logger)

				return
			}

			suite.Require().NoError(err)
			suite.NotNil(logger.Logger)
		})
	}
}

func (suite *LoggerTestSuite) TestLevelIsApplied() {
	logger, err := NewLoggerWithOptions("warn", "json")
	suite.Require().NoError(err)

	suite.False(logger.Core().Enabled(zap.InfoLevel))
	suite.True(logger.Core().Enabled(zap.WarnLevel))
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}

	err := logger.Sync()
	suite.NoError(err)
}

func (suite *LoggerTestSuite) TestNopLogger() {
	logger := NewNopLogger()
	suite.NotNil(logger)

	// Should not panic
	logger.Info("discarded", zap.String("ticker", "AAPL"))
	suite.NoError(logger.Sync())
}
