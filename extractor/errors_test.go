package extractor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStderr(t *testing.T) {
	cases := []struct {
		stderr string
		want   ErrorKind
	}{
		{"ERROR: Unsupported URL: foo", KindUnsupported},
		{"ERROR: [generic] no extractor found", KindUnsupported},
		{"ERROR: Private video. Sign in if you've been granted access", KindUnavailable},
		{"ERROR: Video unavailable", KindUnavailable},
		{"ERROR: HTTP Error 404: Not Found", KindUnsupported},
		{"ERROR: something unexpected blew up", KindFailed},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyStderr(tc.stderr), tc.stderr)
	}
}

func TestErrorUnwrapAndAsError(t *testing.T) {
	cause := errors.New("boom")
	err := newError(KindTimeout, "analyze timed out", cause)

	assert.ErrorIs(t, err, cause)

	extracted, ok := AsError(err)
	require := assert.New(t)
	require.True(ok)
	require.Equal(KindTimeout, extracted.Kind)
}
