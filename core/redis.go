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

package core

import (
	"context"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/apex/log"
	"github.com/redis/go-redis/v9"
)

// RedisClient Redis client used as progress relay broker
type RedisClient struct {
	goutils.Component
	rdb *redis.Client
}

// Redis fetch the Redis client
func (c RedisClient) Redis() *redis.Client {
	return c.rdb
}

// Ready check the Redis server is reachable
func (c RedisClient) Ready(ctxt context.Context) error {
	return c.rdb.Ping(ctxt).Err()
}

// Close close the Redis client
func (c RedisClient) Close() {
	if err := c.rdb.Close(); err != nil {
		log.WithError(err).WithFields(c.LogTags).Error("Redis client close failed")
		return
	}
	log.WithFields(c.LogTags).Info("Close Redis client")
}

// GetRedisClient define a new Redis client, failing if the server is not reachable
func GetRedisClient(ctxt context.Context, cfg common.RedisConfig) (RedisClient, error) {
	logTags := log.Fields{
		"module":    "core",
		"component": "redis-client",
		"instance":  cfg.Addr,
	}
	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		DB:          cfg.DB,
		DialTimeout: timeout,
	})

	pingCtxt, cancel := context.WithTimeout(ctxt, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtxt).Err(); err != nil {
		log.WithError(err).WithFields(logTags).Error("Redis client connect failed")
		_ = rdb.Close()
		return RedisClient{}, err
	}
	log.WithFields(logTags).Info("Created Redis client")
	return RedisClient{
		Component: goutils.Component{LogTags: logTags},
		rdb:       rdb,
	}, nil
}
