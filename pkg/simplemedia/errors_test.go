package simplemedia_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{simplemedia.ErrInvalidType, "InvalidType"},
		{fmt.Errorf("wrap: %w", simplemedia.ErrMissingField), "MissingField"},
		{&simplemedia.StorageError{Op: "get", Err: simplemedia.ErrObjectNotFound}, "ObjectNotFound"},
		{&simplemedia.EntryError{Op: "get", Err: simplemedia.ErrEntryNotFound}, "EntryNotFound"},
		{fmt.Errorf("%w: %w", simplemedia.ErrTimeout, context.DeadlineExceeded), "Timeout"},
		{context.DeadlineExceeded, "Timeout"},
		{errors.New("boom"), "Internal"},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, simplemedia.Kind(tt.err))
		})
	}
}

func TestIsValidation(t *testing.T) {
	assert.True(t, simplemedia.IsValidation(simplemedia.ErrInvalidReference))
	assert.True(t, simplemedia.IsValidation(fmt.Errorf("x: %w", simplemedia.ErrMissingField)))
	assert.False(t, simplemedia.IsValidation(simplemedia.ErrStorageUnavailable))
	assert.False(t, simplemedia.IsValidation(simplemedia.ErrSourceNotFound))
}
