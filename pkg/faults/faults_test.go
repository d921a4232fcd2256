// pkg/faults/faults_test.go
package faults

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := Newf(QuotaExhausted, "tenant %s out of units", "acme")
	assert.True(t, errors.Is(err, QuotaExhausted))
	assert.False(t, errors.Is(err, CredentialUnavailable))
}

func TestIsSurvivesWrapping(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := fmt.Errorf("probing provider: %w", Wrap(UpstreamTimeout, cause))

	assert.True(t, errors.Is(err, UpstreamTimeout))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindUpstreamTimeout, KindOf(err))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(TenantNotResolved))
	assert.Equal(t, http.StatusGatewayTimeout, StatusOf(Wrap(UpstreamTimeout, errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain")))
}

func TestNewKeepsStatus(t *testing.T) {
	err := New(InvalidOAuthState, "nonce already consumed")
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Contains(t, err.Error(), "nonce already consumed")
	assert.Contains(t, err.Error(), string(KindInvalidOAuthState))
}
