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

	"github.com/alwitt/recipehub/common"
	"github.com/alwitt/recipehub/core"
)

// Transport is the configured relay: a broadcaster, a receiver and the broker connection
type Transport struct {
	// Broadcaster sends updates to every instance
	Broadcaster ProgressBroadcaster
	// Receiver receives updates from every instance
	Receiver ProgressReceiver
	ready    func(context.Context) error
	close    func(context.Context)
}

// Ready check the relay broker is reachable
func (t Transport) Ready(ctxt context.Context) error {
	if t.ready == nil {
		return nil
	}
	return t.ready(ctxt)
}

// Close release the broker connection
func (t Transport) Close(ctxt context.Context) {
	if t.close != nil {
		t.close(ctxt)
	}
}

// GetTransport define the relay based on config
func GetTransport(ctxt context.Context, cfg common.RelayConfig, instance string) (Transport, error) {
	switch cfg.Driver {
	case "local":
		tx, rx := GetLocalRelay(instance)
		return Transport{Broadcaster: tx, Receiver: rx}, nil

	case "nats":
		natsClient, err := core.GetNATSClient(core.NATSConnectParamsFromConfig(cfg.NATS))
		if err != nil {
			return Transport{}, err
		}
		return Transport{
			Broadcaster: GetNATSBroadcaster(natsClient, cfg.Topic, instance),
			Receiver: GetNATSReceiver(
				natsClient, cfg.Topic, cfg.QueueDepth, cfg.Workers, instance,
			),
			ready: natsClient.Ready,
			close: natsClient.Close,
		}, nil

	case "redis":
		redisClient, err := core.GetRedisClient(ctxt, cfg.Redis)
		if err != nil {
			return Transport{}, err
		}
		return Transport{
			Broadcaster: GetRedisBroadcaster(redisClient, cfg.Topic, instance),
			Receiver: GetRedisReceiver(
				redisClient, cfg.Topic, cfg.QueueDepth, cfg.Workers, instance,
			),
			ready: redisClient.Ready,
			close: func(context.Context) { redisClient.Close() },
		}, nil

	default:
		return Transport{}, fmt.Errorf("unsupported relay driver '%s'", cfg.Driver)
	}
}
