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

package apis

import (
	"encoding/json"
	"net/http"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/alwitt/recipehub/upload"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// APIRestUploadHandler REST handler issuing signed upload URLs
type APIRestUploadHandler struct {
	goutils.RestAPIHandler
	issuer   upload.Issuer
	validate *validator.Validate
}

// GetAPIRestUploadHandler define APIRestUploadHandler
func GetAPIRestUploadHandler(
	issuer upload.Issuer, httpConfig *common.HTTPConfig,
) (APIRestUploadHandler, error) {
	return APIRestUploadHandler{
		RestAPIHandler: defineRestAPIHandler(httpConfig, "upload"),
		issuer:         issuer,
		validate:       validator.New(),
	}, nil
}

// APIRestRespUploadURL response carrying a signed upload URL
type APIRestRespUploadURL struct {
	goutils.RestAPIBaseResponse
	common.UploadURL
}

// IssueUploadURL godoc
// @Summary Issue upload URL
// @Description Issue a time-limited signed URL for uploading one object, plus the URL the
// object is readable at afterwards
// @tags Upload
// @Accept json
// @Produce json
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Param request body common.UploadURLRequest true "Object to upload"
// @Success 201 {object} APIRestRespUploadURL "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /presigned-url [post]
func (h APIRestUploadHandler) IssueUploadURL(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	var req common.UploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "Unable to parse request body"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		msg := "Invalid upload request"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	issued, err := h.issuer.IssueUploadURL(r.Context(), req.FileName, req.ContentType)
	if err != nil {
		msg := "Unable to issue upload URL"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusInternalServerError, msg, err.Error(),
		)
		return
	}

	respCode = http.StatusCreated
	respBody = APIRestRespUploadURL{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()),
		UploadURL:           issued,
	}
}

// IssueUploadURLHandler Wrapper around IssueUploadURL
func (h APIRestUploadHandler) IssueUploadURLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.IssueUploadURL(w, r)
	}
}
