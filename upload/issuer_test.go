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
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alwitt/recipehub/common"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func testUploadConfig() common.UploadConfig {
	return common.UploadConfig{
		Bucket:          "media",
		Region:          "ap-northeast-2",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		ValiditySec:     300,
	}
}

func TestUploadURLIssuer(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	issuer, err := GetIssuer(utCtxt, testUploadConfig())
	assert.Nil(err)
	uut := issuer.(*s3Issuer)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	uut.now = func() time.Time { return start }

	// Case 0: missing content type
	{
		_, err := uut.IssueUploadURL(utCtxt, "a.jpg", "")
		assert.NotNil(err)
	}

	// Case 1: issue URL
	var issued common.UploadURL
	{
		issued, err = uut.IssueUploadURL(utCtxt, "a.jpg", "image/jpeg")
		assert.Nil(err)
		assert.True(strings.HasPrefix(issued.FileURL, "https://media.s3.ap-northeast-2.amazonaws.com/recipes/"))
		assert.Equal(start.Add(5*time.Minute), issued.ExpiresAt)

		parsed, err := url.Parse(issued.UploadURL)
		assert.Nil(err)
		assert.Equal("media.s3.ap-northeast-2.amazonaws.com", parsed.Host)
		assert.True(strings.HasPrefix(parsed.Path, "/recipes/"))
		assert.Equal(issued.FileURL, "https://"+parsed.Host+parsed.Path)

		query := parsed.Query()
		assert.Equal("AWS4-HMAC-SHA256", query.Get("X-Amz-Algorithm"))
		assert.Equal("300", query.Get("X-Amz-Expires"))
		assert.NotEmpty(query.Get("X-Amz-Signature"))
		assert.True(strings.HasPrefix(query.Get("X-Amz-Credential"), "AKIDEXAMPLE/"))
		assert.Contains(query.Get("X-Amz-SignedHeaders"), "content-type")
	}

	// Case 2: each URL gets its own object key
	{
		other, err := uut.IssueUploadURL(utCtxt, "a.jpg", "image/jpeg")
		assert.Nil(err)
		assert.NotEqual(issued.FileURL, other.FileURL)
	}
}

func TestUploadURLIssuerCustomEndpoint(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	cfg := testUploadConfig()
	cfg.Endpoint = "http://127.0.0.1:9000/"
	cfg.UsePathStyle = true
	issuer, err := GetIssuer(utCtxt, cfg)
	assert.Nil(err)

	issued, err := issuer.IssueUploadURL(utCtxt, "b.png", "image/png")
	assert.Nil(err)
	assert.True(strings.HasPrefix(issued.FileURL, "http://127.0.0.1:9000/media/recipes/"))

	parsed, err := url.Parse(issued.UploadURL)
	assert.Nil(err)
	assert.Equal("127.0.0.1:9000", parsed.Host)
	assert.True(strings.HasPrefix(parsed.Path, "/media/recipes/"))
	assert.NotEmpty(parsed.Query().Get("X-Amz-Signature"))
}

func TestUploadIssuerConfig(t *testing.T) {
	assert := assert.New(t)

	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	// Case 0: no validity window
	{
		cfg := testUploadConfig()
		cfg.ValiditySec = 0
		_, err := GetIssuer(utCtxt, cfg)
		assert.NotNil(err)
	}

	// Case 1: access key without its secret
	{
		cfg := testUploadConfig()
		cfg.SecretAccessKey = ""
		_, err := GetIssuer(utCtxt, cfg)
		assert.NotNil(err)
	}
}
