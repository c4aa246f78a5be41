// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package apierror_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/osmo-project/osmo/internal/apierror"
	"github.com/osmo-project/osmo/internal/compiler"
)

func TestKindStatusMatchesTaxonomy(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, apierror.KindUserInput.Status())
	assert.Equal(t, http.StatusBadRequest, apierror.KindQuota.Status())
	assert.Equal(t, http.StatusNotFound, apierror.KindNotFound.Status())
	assert.Equal(t, 425, apierror.KindConflict.Status())
	assert.Equal(t, http.StatusGone, apierror.KindGone.Status())
	assert.Equal(t, http.StatusInternalServerError, apierror.KindDatabase.Status())
	assert.True(t, apierror.KindDatabase.Retryable())
	assert.False(t, apierror.KindServer.Retryable())
}

func TestErrorCarriesWorkflowIDAndCandidates(t *testing.T) {
	err := apierror.Resource("no node satisfies assertions").
		WithWorkflow("train-42").
		WithCandidates([]apierror.CandidateRejection{{Hostname: "node-1", Reason: "gpu unavailable"}})

	assert.Equal(t, "train-42", err.WorkflowID)
	require.Len(t, err.Candidates, 1)
	assert.Equal(t, "node-1", err.Candidates[0].Hostname)
	assert.Contains(t, err.Error(), "train-42")
}

func TestFromDomainRecognizesConstructedError(t *testing.T) {
	err := apierror.NotFound("workflow %q not found", "wf-1")
	status, code := apierror.FromDomain(err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", code)
}

func TestFromDomainRecognizesGormNotFound(t *testing.T) {
	status, code := apierror.FromDomain(gorm.ErrRecordNotFound)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", code)
}

func TestFromDomainRecognizesPackageUserErrors(t *testing.T) {
	_, err := compiler.Compile("", compiler.Options{})
	require.Error(t, err)

	status, code := apierror.FromDomain(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", code)
}

func TestFromDomainDefaultsToServerError(t *testing.T) {
	status, code := apierror.FromDomain(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", code)
}

func TestClassifyWrapsUnrecognizedErrorsAsServer(t *testing.T) {
	classified := apierror.Classify(errors.New("boom"))
	assert.Equal(t, apierror.KindServer, classified.Kind)
}

func TestRetryDatabaseStopsWhenContextExpiresDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := apierror.RetryDatabase(ctx, func() error {
		calls++
		return errors.New("unique constraint violation")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "backoff after the first attempt exceeds the test's context deadline")
}
