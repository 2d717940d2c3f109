package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamPutOptions(t *testing.T) {
	opts := streamPutOptions()
	assert.Equal(t, uint64(64<<20), opts.PartSize)
	assert.Equal(t, objectContentType, opts.ContentType)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "out/seq-0", objectKey("/out/seq-0"))
	assert.Equal(t, "seq-0", objectKey("seq-0"))
}
