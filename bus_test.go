package i2cdev

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		given    error
		expected TransferStatus
	}{
		{nil, TransferOK},
		{fmt.Errorf("write to 20 failed: %w", ErrNAK), TransferNAK},
		{fmt.Errorf("write to 20 failed: %w", ErrBusBusy), TransferBusy},
		{errors.New("i/o timeout"), TransferBusError},
	}
	for _, test := range tests {
		t.Run(test.expected.String(), func(t *testing.T) {
			status := StatusFromError(test.given)
			assert.Equal(t, test.expected, status)
			if test.given != nil {
				assert.True(t, errors.Is(test.given, status.Err()) || status == TransferBusError)
			}
		})
	}
}

func TestTransferBusy(t *testing.T) {
	assert.True(t, TransferBusy.Done())
	assert.ErrorIs(t, TransferBusy.Err(), ErrBusBusy)
	assert.Equal(t, "busy", TransferBusy.String())
}
