package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorRendersKeyValuePairs(t *testing.T) {
	err := New(CodeHTTPStatus,
		WithURL("https://example.com/lens/abc"),
		WithHTTP(503),
		WithMessage("Service Unavailable"))
	rendered := err.Error()
	require.Contains(t, rendered, "code=http_status")
	require.Contains(t, rendered, `url="https://example.com/lens/abc"`)
	require.Contains(t, rendered, "http=503")
	require.Contains(t, rendered, `message="Service Unavailable"`)
}

func TestChainWalksCauses(t *testing.T) {
	first := New(CodeTimeout, WithMessage("attempt 1"))
	second := New(CodeHTTPStatus, WithHTTP(500), WithCause(first))
	third := New(CodeHTTPStatus, WithHTTP(502), WithCause(second))

	chain := third.Chain()
	require.Len(t, chain, 3)
	require.Equal(t, error(third), chain[0])
	require.Equal(t, error(second), chain[1])
	require.Equal(t, error(first), chain[2])
}

func TestUnwrapIntegratesWithErrorsIs(t *testing.T) {
	root := errors.New("socket closed")
	wrapped := New(CodeRequest, WithCause(root))
	require.ErrorIs(t, wrapped, root)
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound)))
	require.Equal(t, CodeRequest, CodeOf(errors.New("plain")))

	wrapped := New(CodeJSONParse, WithCause(New(CodeTimeout)))
	require.Equal(t, CodeJSONParse, CodeOf(wrapped))
}

func TestPredicates(t *testing.T) {
	require.True(t, IsNotFound(New(CodeNotFound)))
	require.False(t, IsNotFound(New(CodeHTTPStatus, WithHTTP(500))))
	require.True(t, IsTimeout(New(CodeTimeout)))
	require.False(t, IsTimeout(errors.New("plain")))
}

func TestAggregateCarriesFailures(t *testing.T) {
	sub1 := New(CodeNotFound, WithURL("https://a"))
	sub2 := New(CodeTimeout, WithURL("https://b"))
	agg := New(CodeAggregate, WithFailures(sub1, nil, sub2))

	require.Len(t, agg.Failures(), 2)
	require.Contains(t, agg.Error(), "failures=2")
}

func TestNilReceiverIsSafe(t *testing.T) {
	var e *E
	require.Equal(t, "<nil>", e.Error())
	require.Nil(t, e.Chain())
	require.Nil(t, e.Failures())
	require.NoError(t, e.Unwrap())
}
