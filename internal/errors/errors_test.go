package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "sportsbet/internal/errors"
	"sportsbet/internal/wizard"
)

func TestFromWizardMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no selection", wizard.ErrNoSelection, http.StatusBadRequest, "NO_SELECTION"},
		{"not yet supported", wizard.ErrNotYetSupported, http.StatusUnprocessableEntity, "NOT_YET_SUPPORTED"},
		{"fetch in progress", wizard.ErrFetchInProgress, http.StatusConflict, "FETCH_IN_PROGRESS"},
		{"invalid configuration", fmt.Errorf("%w: threshold", wizard.ErrInvalidConfiguration),
			http.StatusBadRequest, "INVALID_CONFIGURATION"},
		{"unknown sport", fmt.Errorf("%w: %q", wizard.ErrUnknownSport, "Cricket"),
			http.StatusBadRequest, "INVALID_CONFIGURATION"},
		{"fetch failed", &wizard.FetchError{Stage: wizard.StageSportSelect, Cause: stderrors.New("down")},
			http.StatusBadGateway, "FETCH_FAILED"},
		{"unknown error", stderrors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := apierrors.FromWizard(tt.err)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
		})
	}
}

func TestFromWizardNil(t *testing.T) {
	assert.Nil(t, apierrors.FromWizard(nil))
}

func TestErrorInterface(t *testing.T) {
	err := apierrors.New(http.StatusBadRequest, "NO_SELECTION", "pick something")
	assert.Equal(t, "pick something", err.Error())
}

func TestValidationErrorDetails(t *testing.T) {
	err := apierrors.ErrValidation("drop_na_threshold", "must be within [0, 1]")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	detail, ok := err.Details.(apierrors.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "drop_na_threshold", detail.Field)
}
