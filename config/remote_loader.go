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
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"
)

// Object store schemes accepted by LoadRemoteFile
const (
	SchemeS3        = "s3"
	SchemeGCS       = "gs"
	SchemeAzureBlob = "azblob"
)

// maxConfigSize bounds how much of a remote object is read
const maxConfigSize = 4 << 20

// ObjectFetcher reads one object from an object store
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// ObjectURI is a parsed "<scheme>://<bucket>/<key>" reference
type ObjectURI struct {
	Scheme string
	Bucket string
	Key    string
}

// IsRemote reports whether path looks like an object store URI
func IsRemote(path string) bool {
	scheme, _, ok := strings.Cut(path, "://")
	if !ok {
		return false
	}
	switch scheme {
	case SchemeS3, SchemeGCS, SchemeAzureBlob:
		return true
	}
	return false
}

// ParseObjectURI splits s3://bucket/key, gs://bucket/key or
// azblob://container/blob
func ParseObjectURI(raw string) (ObjectURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ObjectURI{}, fmt.Errorf("invalid object URI %q: %w", raw, err)
	}
	switch u.Scheme {
	case SchemeS3, SchemeGCS, SchemeAzureBlob:
	default:
		return ObjectURI{}, fmt.Errorf("unsupported object store scheme %q", u.Scheme)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return ObjectURI{}, fmt.Errorf("object URI %q must name a bucket and a key", raw)
	}
	return ObjectURI{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
}

// LoadRemoteFile fetches a configuration file from an object store and
// parses it like a local file. fetchers maps URI schemes to fetchers.
func LoadRemoteFile(ctx context.Context, uri string, fetchers map[string]ObjectFetcher) (*File, error) {
	obj, err := ParseObjectURI(uri)
	if err != nil {
		return nil, err
	}
	fetcher, ok := fetchers[obj.Scheme]
	if !ok || fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for %s:// URIs", obj.Scheme)
	}

	data, err := fetcher.Fetch(ctx, obj.Bucket, obj.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config %s: %w", uri, err)
	}
	return ParseFile(data)
}

// s3GetObjectAPI is the subset of the S3 client used by S3Fetcher
type s3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads objects from Amazon S3 or an S3 compatible store
type S3Fetcher struct {
	client s3GetObjectAPI
}

// S3FetcherOptions configures NewS3Fetcher. Without explicit keys the
// default AWS credential chain is used.
type S3FetcherOptions struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UsePathStyle    bool
}

// NewS3Fetcher creates an S3 client from the default AWS configuration
func NewS3Fetcher(ctx context.Context, opts S3FetcherOptions) (*S3Fetcher, error) {
	optFns := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)
		optFns = append(optFns, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return &S3Fetcher{client: client}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()
	return readLimited(out.Body)
}

// GCSFetcher reads objects from Google Cloud Storage
type GCSFetcher struct {
	client *storage.Client
}

// GCSFetcherOptions configures NewGCSFetcher. Without credentials the
// application default credentials are used.
type GCSFetcherOptions struct {
	CredentialsFile string
	CredentialsJSON string
	Endpoint        string
	Anonymous       bool
}

// NewGCSFetcher creates a Cloud Storage client
func NewGCSFetcher(ctx context.Context, opts GCSFetcherOptions) (*GCSFetcher, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	case opts.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.Anonymous:
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSFetcher{client: client}, nil
}

func (f *GCSFetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	reader, err := f.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	return readLimited(reader)
}

// Close closes the underlying client
func (f *GCSFetcher) Close() error {
	return f.client.Close()
}

// AzureBlobFetcher reads blobs from Azure Blob Storage. The URI bucket is
// the container name.
type AzureBlobFetcher struct {
	client *azblob.Client
}

// AzureBlobFetcherOptions configures NewAzureBlobFetcher. ConnectionString
// wins over AccountKey; with neither, DefaultAzureCredential is used.
type AzureBlobFetcherOptions struct {
	AccountName      string
	AccountKey       string
	ConnectionString string
}

// NewAzureBlobFetcher creates a blob client
func NewAzureBlobFetcher(opts AzureBlobFetcherOptions) (*AzureBlobFetcher, error) {
	if opts.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client from connection string: %w", err)
		}
		return &AzureBlobFetcher{client: client}, nil
	}

	if opts.AccountName == "" {
		return nil, fmt.Errorf("azure blob account name is required")
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", opts.AccountName)

	if opts.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client: %w", err)
		}
		return &AzureBlobFetcher{client: client}, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &AzureBlobFetcher{client: client}, nil
}

func (f *AzureBlobFetcher) Fetch(ctx context.Context, container, blob string) ([]byte, error) {
	resp, err := f.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return readLimited(resp.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxConfigSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	if len(data) > maxConfigSize {
		return nil, fmt.Errorf("config object exceeds %d bytes", maxConfigSize)
	}
	return data, nil
}
