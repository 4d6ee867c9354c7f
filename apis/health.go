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
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/apex/log"
)

// ReadinessCheck reports whether one dependency is usable
type ReadinessCheck func(ctxt context.Context) error

// APIRestHealthHandler REST handler for liveness and readiness probes
type APIRestHealthHandler struct {
	goutils.RestAPIHandler
	checks map[string]ReadinessCheck
}

// GetAPIRestHealthHandler define APIRestHealthHandler
func GetAPIRestHealthHandler(
	checks map[string]ReadinessCheck, httpConfig *common.HTTPConfig,
) (APIRestHealthHandler, error) {
	if checks == nil {
		checks = map[string]ReadinessCheck{}
	}
	return APIRestHealthHandler{
		RestAPIHandler: defineRestAPIHandler(httpConfig, "health"),
		checks:         checks,
	}, nil
}

// Alive godoc
// @Summary For liveness check
// @Description Will return success to indicate the service is running
// @tags Health
// @Produce json
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Router /alive [get]
func (h APIRestHealthHandler) Alive(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	if err := h.WriteRESTResponse(
		w, http.StatusOK, h.GetStdRESTSuccessMsg(r.Context()), nil,
	); err != nil {
		log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
	}
}

// AliveHandler Wrapper around Alive
func (h APIRestHealthHandler) AliveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Alive(w, r)
	}
}

// Ready godoc
// @Summary For readiness check
// @Description Will return success if the service is ready to accept requests
// @tags Health
// @Produce json
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /ready [get]
func (h APIRestHealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](r.Context()); err != nil {
			msg := fmt.Sprintf("%s not ready", name)
			log.WithError(err).WithFields(localLogTags).Error(msg)
			respCode = http.StatusInternalServerError
			respBody = h.GetStdRESTErrorMsg(
				r.Context(), http.StatusInternalServerError, msg, err.Error(),
			)
			return
		}
	}

	respCode = http.StatusOK
	respBody = h.GetStdRESTSuccessMsg(r.Context())
}

// ReadyHandler Wrapper around Ready
func (h APIRestHealthHandler) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Ready(w, r)
	}
}
