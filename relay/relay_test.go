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

package relay

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alwitt/recipehub/hub"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int {
	return &v
}

func TestLocalRelay(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	uutTX, uutRX := GetLocalRelay("ut-local")

	msg := RelayedProgress{
		JobID:  "job-1",
		Update: hub.ProgressUpdate{Status: "processing", Progress: intPtr(10)},
		Origin: "ut-local",
	}

	// Case 0: broadcast before start
	assert.NotNil(uutTX.Broadcast(utCtxt, msg))

	// Case 1: start and broadcast
	received := []RelayedProgress{}
	handler := func(_ context.Context, m RelayedProgress) {
		received = append(received, m)
	}
	assert.Nil(uutRX.Start(utCtxt, &wg, handler))
	assert.NotNil(uutRX.Start(utCtxt, &wg, handler))
	assert.Nil(uutTX.Broadcast(utCtxt, msg))
	assert.Len(received, 1)
	assert.Equal(msg, received[0])

	// Case 2: invalid messages
	{
		assert.NotNil(uutTX.Broadcast(utCtxt, RelayedProgress{}))
		bad := msg
		bad.Update.Progress = intPtr(101)
		assert.NotNil(uutTX.Broadcast(utCtxt, bad))
		assert.Len(received, 1)
	}
}

func TestRelayDispatcher(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	lock := sync.Mutex{}
	perJob := map[string][]int{}
	done := make(chan bool, 100)
	uut, err := newDispatcher(utCtxt, "ut-dispatch", 8, 3, func(_ context.Context, m RelayedProgress) {
		lock.Lock()
		perJob[m.JobID] = append(perJob[m.JobID], *m.Update.Progress)
		lock.Unlock()
		done <- true
	})
	assert.Nil(err)
	assert.Nil(uut.start(&wg))
	defer uut.stop()

	// Case 0: malformed messages are dropped
	assert.NotNil(uut.receive([]byte("not json")))
	assert.NotNil(uut.receive([]byte(`{"update":{"status":"processing"}}`)))
	assert.NotNil(uut.receive([]byte(`{"job_id":"j","update":{"progress":-1}}`)))

	// Case 1: per job order is preserved
	jobs := []string{"job-a", "job-b", "job-c", "job-d"}
	for progress := 0; progress <= 100; progress += 5 {
		for _, jobID := range jobs {
			raw := fmt.Sprintf(
				`{"job_id":"%s","update":{"status":"processing","progress":%d},"origin":"peer"}`,
				jobID, progress,
			)
			assert.Nil(uut.receive([]byte(raw)))
		}
	}
	for itr := 0; itr < 21*len(jobs); itr++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			assert.FailNow("relay dispatch timed out")
		}
	}
	lock.Lock()
	defer lock.Unlock()
	for _, jobID := range jobs {
		seen := perJob[jobID]
		assert.Len(seen, 21)
		for idx, value := range seen {
			assert.Equal(idx*5, value)
		}
	}
}

func TestTransportDriverSelection(t *testing.T) {
	assert := assert.New(t)

	// Case 0: unknown driver
	{
		_, err := GetTransport(context.Background(), commonRelayConfig("kafka"), "ut")
		assert.NotNil(err)
	}

	// Case 1: local
	{
		uut, err := GetTransport(context.Background(), commonRelayConfig("local"), "ut")
		assert.Nil(err)
		assert.NotNil(uut.Broadcaster)
		assert.NotNil(uut.Receiver)
		assert.Nil(uut.Ready(context.Background()))
		uut.Close(context.Background())
	}
}
