package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNew() {
	err := New(ErrCodeInvalidConfig, "bad config")
	suite.Equal("[100] bad config", err.Error())
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapPreservesCause() {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeTransientIO, "price fetch failed", cause)

	suite.Equal("[300] price fetch failed: connection refused", err.Error())
	suite.Equal(cause, err.Unwrap())
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCode() {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"structured error", New(ErrCodeAdmissionFailed, "order failed"), ErrCodeAdmissionFailed},
		{"wrapped structured error", fmt.Errorf("outer: %w", New(ErrCodeQueryFailed, "q")), ErrCodeQueryFailed},
		{"plain error", fmt.Errorf("plain"), ErrCodeUnknown},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, GetCode(tc.err))
		})
	}
}

func (suite *ErrorTestSuite) TestIsTransient() {
	suite.True(IsTransient(New(ErrCodeTransientIO, "io")))
	suite.True(IsTransient(New(ErrCodeFetchTimeout, "timeout")))
	suite.False(IsTransient(New(ErrCodeAdmissionFailed, "broker")))
	suite.False(IsTransient(fmt.Errorf("plain")))
}

func (suite *ErrorTestSuite) TestInsufficientDataError() {
	err := NewInsufficientDataError(14, 3, "EUR_USD", "need 14 candles, have 3")
	suite.Equal("need 14 candles, have 3", err.Error())
	suite.Equal(14, err.Required)
	suite.Equal(3, err.Actual)
}
