package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckScheme(t *testing.T) {
	require.NoError(t, CheckScheme("s3://bucket/x", []string{"s3://", "gs://"}))
	require.NoError(t, CheckScheme("gs://bucket", []string{"s3://", "gs://"}))

	err := CheckScheme("s3://bucket/x", []string{"hdfs://"})
	require.ErrorIs(t, err, ErrUnsupportedScheme)

	assert.ErrorIs(t, CheckScheme("/local/dir", []string{"s3://"}), ErrUnsupportedScheme)
	assert.ErrorIs(t, CheckScheme("s3://bucket", nil), ErrUnsupportedScheme)
	assert.ErrorIs(t, CheckScheme("s3://bucket", []string{""}), ErrUnsupportedScheme)
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw  string
		want Location
	}{
		{"s3://bucket/x", Location{Scheme: "s3", Bucket: "bucket", Path: "x"}},
		{"s3://bucket/a/b/", Location{Scheme: "s3", Bucket: "bucket", Path: "a/b"}},
		{"gs://bucket", Location{Scheme: "gs", Bucket: "bucket", Path: ""}},
		{"file:///tmp/out", Location{Scheme: "file", Path: "/tmp/out"}},
		{"file://rel/out", Location{Scheme: "file", Path: "rel/out"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocation_String(t *testing.T) {
	assert.Equal(t, "s3://bucket/a/b", Location{Scheme: "s3", Bucket: "bucket", Path: "a/b"}.String())
	assert.Equal(t, "gs://bucket", Location{Scheme: "gs", Bucket: "bucket"}.String())
	assert.Equal(t, "file:///tmp/out", Location{Scheme: "file", Path: "/tmp/out"}.String())
}

func TestParseLocation_Invalid(t *testing.T) {
	for _, raw := range []string{"/no/scheme", "s3:///missing-bucket", "file://", "::"} {
		_, err := ParseLocation(raw)
		assert.Error(t, err, raw)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	host, secure := normalizeEndpoint("https://minio.local:9000/", false)
	assert.Equal(t, "minio.local:9000", host)
	assert.True(t, secure)

	host, secure = normalizeEndpoint("http://minio.local:9000", true)
	assert.Equal(t, "minio.local:9000", host)
	assert.False(t, secure)

	host, secure = normalizeEndpoint("s3.amazonaws.com", true)
	assert.Equal(t, "s3.amazonaws.com", host)
	assert.True(t, secure)
}
