// internal/upstream/manager_test.go
package upstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"edgegate/pkg/config"
	"edgegate/pkg/faults"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))

	err := Classify(context.DeadlineExceeded)
	assert.True(t, errors.Is(err, faults.UpstreamTimeout))

	err = Classify(timeoutErr{})
	assert.True(t, errors.Is(err, faults.UpstreamTimeout))

	plain := errors.New("connection refused")
	assert.Equal(t, plain, Classify(plain))
}

func TestManagerAppliesTimeout(t *testing.T) {
	m := NewManager(config.Config{UpstreamTimeout: 8 * time.Second})
	assert.Equal(t, 8*time.Second, m.Client().Timeout)
	assert.Equal(t, 8*time.Second, m.Timeout())
}
