// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	objects map[string]string
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, bucket, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return []byte(body), nil
}

type fakeS3Client struct {
	bucket, key string
	body        string
}

func (f *fakeS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = aws.ToString(params.Bucket)
	f.key = aws.ToString(params.Key)
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestParseObjectURI(t *testing.T) {
	tests := []struct {
		raw     string
		want    ObjectURI
		wantErr bool
	}{
		{raw: "s3://configs/orm/prod.yaml", want: ObjectURI{Scheme: "s3", Bucket: "configs", Key: "orm/prod.yaml"}},
		{raw: "gs://configs/orm.yaml", want: ObjectURI{Scheme: "gs", Bucket: "configs", Key: "orm.yaml"}},
		{raw: "azblob://settings/orm.yaml", want: ObjectURI{Scheme: "azblob", Bucket: "settings", Key: "orm.yaml"}},
		{raw: "s3://configs", wantErr: true},
		{raw: "s3:///orm.yaml", wantErr: true},
		{raw: "ftp://host/orm.yaml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseObjectURI(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("s3://b/k"))
	assert.True(t, IsRemote("gs://b/k"))
	assert.True(t, IsRemote("azblob://c/b"))
	assert.False(t, IsRemote("ormbridge.yaml"))
	assert.False(t, IsRemote("https://example.com/orm.yaml"))
}

func TestLoadRemoteFile(t *testing.T) {
	fetchers := map[string]ObjectFetcher{
		SchemeS3: &fakeFetcher{objects: map[string]string{
			"configs/orm.yaml": "version: \"1\"\norm:\n  connections:\n    default:\n      connection_string: \"sqlite::memory:\"\n",
		}},
		SchemeGCS: &fakeFetcher{err: errors.New("permission denied")},
	}

	f, err := LoadRemoteFile(context.Background(), "s3://configs/orm.yaml", fetchers)
	require.NoError(t, err)
	assert.Equal(t, "sqlite::memory:", f.ORM.Connections["default"]["connection_string"])

	_, err = LoadRemoteFile(context.Background(), "gs://configs/orm.yaml", fetchers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	_, err = LoadRemoteFile(context.Background(), "azblob://settings/orm.yaml", fetchers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher configured")
}

func TestS3Fetcher_Fetch(t *testing.T) {
	client := &fakeS3Client{body: "version: \"1\"\n"}
	f := &S3Fetcher{client: client}

	data, err := f.Fetch(context.Background(), "configs", "orm.yaml")
	require.NoError(t, err)
	assert.Equal(t, "version: \"1\"\n", string(data))
	assert.Equal(t, "configs", client.bucket)
	assert.Equal(t, "orm.yaml", client.key)
}

func TestReadLimited(t *testing.T) {
	_, err := readLimited(strings.NewReader(strings.Repeat("x", maxConfigSize+1)))
	assert.Error(t, err)

	data, err := readLimited(strings.NewReader("ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestNewFetchers(t *testing.T) {
	s3f, err := NewS3Fetcher(context.Background(), S3FetcherOptions{
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	assert.NotNil(t, s3f)

	gcsf, err := NewGCSFetcher(context.Background(), GCSFetcherOptions{Anonymous: true, Endpoint: "http://127.0.0.1:4443/storage/v1/"})
	require.NoError(t, err)
	assert.NoError(t, gcsf.Close())

	azf, err := NewAzureBlobFetcher(AzureBlobFetcherOptions{AccountName: "devstoreaccount1", AccountKey: "a2V5"})
	require.NoError(t, err)
	assert.NotNil(t, azf)

	_, err = NewAzureBlobFetcher(AzureBlobFetcherOptions{})
	assert.Error(t, err)
}
