package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfUnwraps(t *testing.T) {
	err := InvalidTransition("pending", "completed")
	wrapped := fmt.Errorf("transition failed: %w", err)

	assert.Equal(t, ErrInvalidTransition, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrInvalidTransition))
	assert.False(t, Is(wrapped, ErrForbidden))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("disk full")))
}

func TestMessages(t *testing.T) {
	assert.Contains(t, InvalidTransition("pending", "completed").Error(), "pending")
	assert.Contains(t, InsufficientSessions(0, 1).Error(), "0 remaining")
	assert.Contains(t, OverReturn(0, 1).Error(), "0 used")
	assert.Contains(t, IncompleteAssessment("diagnosis").Error(), "diagnosis")
	assert.Contains(t, IncompleteSOAP("plan").Error(), "plan")
}
