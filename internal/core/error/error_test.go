package errx

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapTool(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapTool("Cocktail Recipe Finder", cause)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolInvocation)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Cocktail Recipe Finder")
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "Cocktail Recipe Finder", toolErr.Name)
	assert.Equal(t, cause, toolErr.Err)

	assert.NoError(t, WrapTool("x", nil))
}

func TestDecisionParse(t *testing.T) {
	err := DecisionParse("missing marker")

	assert.ErrorIs(t, err, ErrDecisionParse)
	assert.NotErrorIs(t, err, ErrToolInvocation)
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(err))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, DecisionErrorMessage, appErr.Message)
}

func TestTurnTimeout(t *testing.T) {
	err := TurnTimeout(context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrTurnTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, StatusOf(err))
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))
	assert.Equal(t, http.StatusNotFound, StatusOf(WrapRedis(redis.Nil)))
	assert.Equal(t, http.StatusBadGateway, StatusOf(WrapRedis(errors.New("boom"))))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain")))
}
