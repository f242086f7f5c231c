package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFailure(t *testing.T) {
	failures := []Kind{ValidationError, QuotaExceeded, RateLimited, GenerationFailed, DestinationAccessError,
		InvalidDestinationFormat, PublishFailed, StorageError, NotAvailable}
	for _, k := range failures {
		assert.True(t, Of(k).IsFailure(), k)
	}

	others := []Kind{TaskChosen, GenerationSucceeded, AnalysisSucceeded, PublishPreview, PublishSucceeded,
		NothingToPublish, PublishDataMissing, Cancelled, UseMenu, Dropped}
	for _, k := range others {
		assert.False(t, Of(k).IsFailure(), k)
	}
}

func TestInvalid(t *testing.T) {
	r := Invalid(TooLong, 500, 501)
	assert.Equal(t, ValidationError, r.Kind)
	assert.Equal(t, TooLong, r.Reason)
	assert.Equal(t, 500, r.Limit)
	assert.Equal(t, 501, r.Actual)
}
