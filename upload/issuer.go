// Copyright 2026 The recipehub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package upload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const keyPrefix = "recipes/"

// Issuer issues time-limited presigned upload URLs
type Issuer interface {
	// IssueUploadURL issue a new upload URL for one object
	IssueUploadURL(ctxt context.Context, fileName, contentType string) (common.UploadURL, error)
}

// s3Issuer Issuer presigning S3 PutObject requests
type s3Issuer struct {
	goutils.Component
	presigner *s3.PresignClient
	bucket    string
	region    string
	endpoint  string
	pathStyle bool
	validity  time.Duration
	now       func() time.Time
}

// GetIssuer define a new upload URL issuer
//
// Static credentials are used when set in the config, otherwise the SDK's
// default credential chain applies.
func GetIssuer(ctxt context.Context, cfg common.UploadConfig) (Issuer, error) {
	if cfg.ValiditySec < 1 {
		return nil, fmt.Errorf("upload URL validity must be positive: %d", cfg.ValiditySec)
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, fmt.Errorf("upload access key ID and secret must be set together")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctxt, loadOpts...)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	validity := time.Duration(cfg.ValiditySec) * time.Second

	logTags := log.Fields{"module": "upload", "component": "issuer", "instance": cfg.Bucket}
	return &s3Issuer{
		Component: goutils.Component{LogTags: logTags},
		presigner: s3.NewPresignClient(client, s3.WithPresignExpires(validity)),
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		endpoint:  endpoint,
		pathStyle: cfg.UsePathStyle,
		validity:  validity,
		now:       time.Now,
	}, nil
}

// objectURL the public URL of an object key
func (i *s3Issuer) objectURL(key string) string {
	switch {
	case i.endpoint != "" && i.pathStyle:
		return fmt.Sprintf("%s/%s/%s", i.endpoint, i.bucket, key)
	case i.endpoint != "":
		scheme, host, found := strings.Cut(i.endpoint, "://")
		if !found {
			return fmt.Sprintf("https://%s.%s/%s", i.bucket, i.endpoint, key)
		}
		return fmt.Sprintf("%s://%s.%s/%s", scheme, i.bucket, host, key)
	case i.pathStyle:
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", i.region, i.bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", i.bucket, i.region, key)
	}
}

// IssueUploadURL issue a new upload URL for one object
//
// The URL is a presigned PutObject request bound to the content type.
func (i *s3Issuer) IssueUploadURL(
	ctxt context.Context, fileName, contentType string,
) (common.UploadURL, error) {
	if strings.TrimSpace(contentType) == "" {
		return common.UploadURL{}, fmt.Errorf("content type is required")
	}
	key := keyPrefix + uuid.New().String()
	issuedAt := i.now().UTC().Truncate(time.Second)

	signed, err := i.presigner.PresignPutObject(ctxt, &s3.PutObjectInput{
		Bucket:      aws.String(i.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.WithError(err).WithFields(i.LogTags).Errorf("Failed to presign upload of '%s'", fileName)
		return common.UploadURL{}, err
	}

	log.WithFields(i.LogTags).Debugf("Issued upload URL for '%s' as '%s'", fileName, key)
	return common.UploadURL{
		UploadURL: signed.URL,
		FileURL:   i.objectURL(key),
		ExpiresAt: issuedAt.Add(i.validity),
	}, nil
}
