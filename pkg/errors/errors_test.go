// Package errors_test provides unit tests for the AppError type, factory
// functions, and error-chain helpers defined in pkg/errors.
package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"entity not found", errors.ErrCodeEntityNotFound, "entity ent-42 not found"},
		{"malformed mention", errors.ErrCodeMalformedMention, "raw name is empty"},
		{"merge conflict", errors.ErrCodeMergeConflict, "complete-linkage violated"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail, "Detail should be empty for bare New()")
			assert.Nil(t, ae.Cause, "Cause should be nil for bare New()")
		})
	}
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "should not matter"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("connection refused")
	wrapped := errors.Wrap(root, errors.CodeDBConnectionError, "query failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, errors.CodeDBConnectionError, wrapped.Code)
	assert.True(t, stderrors.Is(wrapped, root), "errors.Is must traverse the chain")
}

func TestWrap_UnknownCodePreservesOriginal(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeInsufficientEvidence, "only 2 sources")
	outer := errors.Wrap(inner, errors.CodeUnknown, "pack assembly failed")

	require.NotNil(t, outer)
	assert.Equal(t, errors.ErrCodeInsufficientEvidence, outer.Code)
}

func TestError_DetailFormatting(t *testing.T) {
	t.Parallel()

	bare := errors.New(errors.CodeNotFound, "entity not found")
	assert.Equal(t, "[COMMON_003] entity not found", bare.Error())

	detailed := bare.WithDetail("entity_id=ent-7")
	assert.Equal(t, "[COMMON_003] entity not found: entity_id=ent-7", detailed.Error())
	// WithDetail returns a copy; the original is untouched.
	assert.Empty(t, bare.Detail)
}

func TestWithDetail_NilReceiver(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("ignored"))
}

func TestIsCode_TraversesChain(t *testing.T) {
	t.Parallel()

	inner := errors.MergeConflict("A~C below threshold")
	outer := errors.Wrap(inner, errors.CodeInternal, "bucket processing failed")

	assert.True(t, errors.IsCode(outer, errors.ErrCodeMergeConflict))
	assert.False(t, errors.IsCode(outer, errors.ErrCodeInsufficientEvidence))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeMergeConflict))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("generic")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeEntityNotFound, "entity")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeMentionNotFound, "mention")))
	assert.False(t, errors.IsNotFound(errors.Internal("boom")))
	assert.False(t, errors.IsNotFound(nil))
}

func TestIsFatal_OnlyRegistryCorruption(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsFatal(errors.RegistryCorrupted("duplicate entity_id on load")))
	assert.False(t, errors.IsFatal(errors.MergeConflict("recoverable")))
	assert.False(t, errors.IsFatal(errors.MalformedMention("recoverable")))
	assert.False(t, errors.IsFatal(nil))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeUnlabeledSample,
		errors.GetCode(errors.New(errors.ErrCodeUnlabeledSample, "no labels")))
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 404, errors.ErrCodeEntityNotFound.HTTPStatus())
	assert.Equal(t, 412, errors.ErrCodeInsufficientEvidence.HTTPStatus())
	assert.Equal(t, 500, errors.ErrorCode("NOT_MAPPED").HTTPStatus())
}
