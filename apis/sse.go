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
	"fmt"
	"io"

	"github.com/alwitt/recipehub/hub"
)

// writeSSEEvent write one event as a server-sent event frame
func writeSSEEvent(w io.Writer, evt hub.Event) (int, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return 0, err
	}
	return fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Name, data)
}

// writeSSEComment write a server-sent event comment line
func writeSSEComment(w io.Writer, comment string) (int, error) {
	return fmt.Fprintf(w, ": %s\n\n", comment)
}
