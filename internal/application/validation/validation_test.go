package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

type sample struct {
	UserID   string `validate:"user_id"`
	Amount   int    `validate:"gte=0,lte=100"`
	Accuracy int    `validate:"accuracy"`
	Kind     string `validate:"required,oneof=a b"`
}

func TestStruct_Valid(t *testing.T) {
	require.NoError(t, Struct("Sample", sample{UserID: "u1", Amount: 5, Accuracy: 100, Kind: "a"}))
}

func TestStruct_CollectsAllProblems(t *testing.T) {
	err := Struct("Sample", sample{UserID: "   ", Amount: -1, Accuracy: 101, Kind: "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.True(t, shared.IsValidation(err))

	msg := err.Error()
	assert.Contains(t, msg, "UserID must be a non-blank id")
	assert.Contains(t, msg, "Amount must be at least 0")
	assert.Contains(t, msg, "Accuracy must be between 0 and 100")
	assert.Contains(t, msg, "Kind must be one of [a b]")
}

func TestStruct_NonStruct(t *testing.T) {
	err := Struct("Sample", 42)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
