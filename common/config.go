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

package common

import "github.com/spf13/viper"

// ===============================================================================
// HTTP Related Config

// HTTPServerConfig defines the HTTP server parameters
type HTTPServerConfig struct {
	// ListenOn is the interface the HTTP server will listen on
	ListenOn string `mapstructure:"listen_on" json:"listen_on" validate:"required,ip"`
	// Port is the port the HTTP server will listen on
	Port uint16 `mapstructure:"listen_port" json:"listen_port" validate:"required,gt=0,lt=65536"`
	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body in seconds. A zero or negative
	// value means there will be no timeout.
	ReadTimeout int `mapstructure:"read_timeout_sec" json:"read_timeout_sec" validate:"gte=0"`
	// WriteTimeout is the maximum duration before timing out
	// writes of the response in seconds. A zero value means there will be no timeout.
	//
	// Event streams stay open for the lifetime of a job, so this must stay zero
	// unless every job is known to finish within the limit.
	WriteTimeout int `mapstructure:"write_timeout_sec" json:"write_timeout_sec" validate:"gte=0"`
	// IdleTimeout is the maximum amount of time to wait for the
	// next request when keep-alives are enabled in seconds. If
	// IdleTimeout is zero, the value of ReadTimeout is used. If
	// both are zero, there is no timeout.
	IdleTimeout int `mapstructure:"idle_timeout_sec" json:"idle_timeout_sec" validate:"gte=0"`
}

// HTTPRequestLogging defines HTTP request logging parameters
type HTTPRequestLogging struct {
	// RequestIDHeader is the HTTP header containing the API request ID
	RequestIDHeader string `mapstructure:"request_id_header" json:"request_id_header"`
	// DoNotLogHeaders is the list of headers to not include in logging metadata
	DoNotLogHeaders []string `mapstructure:"do_not_log_headers" json:"do_not_log_headers"`
}

// HTTPConfig defines HTTP API / server parameters
type HTTPConfig struct {
	// Server defines HTTP server parameters
	Server HTTPServerConfig `mapstructure:"server_config" json:"server_config" validate:"required,dive"`
	// Logging defines operation logging parameters
	Logging HTTPRequestLogging `mapstructure:"logging_config" json:"logging_config" validate:"required,dive"`
}

// EndpointConfig defines API endpoint config
type EndpointConfig struct {
	// PathPrefix is the end-point path prefix for the APIs
	PathPrefix string `mapstructure:"path_prefix" json:"path_prefix" validate:"required"`
}

// ===============================================================================
// Hub Related Config

// HubConfig defines the job progress broadcast hub parameters
type HubConfig struct {
	// Shards is the number of independently locked registry partitions
	Shards int `mapstructure:"shards" json:"shards" validate:"gte=1"`
	// SubscriberBuffer is the number of events buffered per subscriber connection
	SubscriberBuffer int `mapstructure:"subscriber_buffer" json:"subscriber_buffer" validate:"gte=1"`
	// DeliveryTimeoutMS is the max duration in milliseconds a single delivery
	// attempt may wait on a full subscriber buffer
	DeliveryTimeoutMS int `mapstructure:"delivery_timeout_ms" json:"delivery_timeout_ms" validate:"gte=0"`
	// KeepAliveInterval is the interval in seconds between SSE keep-alive comments.
	// Zero disables keep-alive comments.
	KeepAliveInterval int `mapstructure:"keep_alive_interval_sec" json:"keep_alive_interval_sec" validate:"gte=0"`
	// StatsInterval is the interval in seconds between hub occupancy reports.
	// Zero disables the report.
	StatsInterval int `mapstructure:"stats_interval_sec" json:"stats_interval_sec" validate:"gte=0"`
}

// ===============================================================================
// External Worker Related Config

// WorkerConfig defines parameters for calling the external extraction worker
type WorkerConfig struct {
	// BaseURL is the base URL of the extraction worker API
	BaseURL string `mapstructure:"base_url" json:"base_url" validate:"required,url"`
	// RequestTimeout is the max duration of one worker call in seconds
	RequestTimeout int `mapstructure:"request_timeout_sec" json:"request_timeout_sec" validate:"gte=1"`
	// RequestsPerSec limits the rate of calls made to the worker
	RequestsPerSec int `mapstructure:"requests_per_sec" json:"requests_per_sec" validate:"gte=1"`
}

// ===============================================================================
// Storage Related Config

// StorageConfig defines the recipe store parameters
type StorageConfig struct {
	// Driver is the storage driver: [sqlite memory]
	Driver string `mapstructure:"driver" json:"driver" validate:"required,oneof=sqlite memory"`
	// Path is the SQLite database file
	Path string `mapstructure:"path" json:"path" validate:"required_if=Driver sqlite"`
	// BusyTimeoutMS is the SQLite busy timeout in milliseconds
	BusyTimeoutMS int `mapstructure:"busy_timeout_ms" json:"busy_timeout_ms" validate:"gte=0"`
}

// ===============================================================================
// Relay Related Config

// NATSReconnectConfig defines reconnect parameters
type NATSReconnectConfig struct {
	// MaxAttempts sets the max number of reconnect attempts (-1 is unlimited)
	MaxAttempts int `mapstructure:"max_attempts" json:"max_attempts" validate:"gte=-1"`
	// WaitInterval is the duration between reconnect attempts in seconds
	WaitInterval int `mapstructure:"wait_interval_sec" json:"wait_interval_sec" validate:"gte=1"`
}

// NATSConfig defines parameters for connecting to NATS server
type NATSConfig struct {
	// ServerURI is the NATS connection URI
	ServerURI string `mapstructure:"server_uri" json:"server_uri" validate:"required,uri"`
	// ConnectTimeout is the max duration for connecting to NATS server in seconds
	ConnectTimeout int `mapstructure:"connect_timeout_sec" json:"connect_timeout_sec" validate:"gte=1"`
	// Reconnect defines reconnect parameters
	Reconnect NATSReconnectConfig `mapstructure:"reconnect" json:"reconnect" validate:"required,dive"`
}

// RedisConfig defines parameters for connecting to Redis
type RedisConfig struct {
	// Addr is the Redis server address
	Addr string `mapstructure:"addr" json:"addr" validate:"required,hostname_port"`
	// DB is the Redis database index
	DB int `mapstructure:"db" json:"db" validate:"gte=0"`
	// ConnectTimeout is the max duration for connecting to Redis in seconds
	ConnectTimeout int `mapstructure:"connect_timeout_sec" json:"connect_timeout_sec" validate:"gte=1"`
}

// RelayConfig defines the cross-instance progress relay parameters
type RelayConfig struct {
	// Driver is the relay broker: [local nats redis]
	Driver string `mapstructure:"driver" json:"driver" validate:"required,oneof=local nats redis"`
	// Topic is the subject / channel prefix used for progress broadcast
	Topic string `mapstructure:"topic" json:"topic" validate:"required"`
	// QueueDepth is the number of received updates buffered before being applied
	QueueDepth int `mapstructure:"queue_depth" json:"queue_depth" validate:"gte=1"`
	// Workers is the number of parallel loops applying received updates. Updates
	// for one job always go to the same loop.
	Workers int `mapstructure:"workers" json:"workers" validate:"gte=1"`
	// NATS are the NATS connection parameters
	NATS NATSConfig `mapstructure:"nats" json:"nats" validate:"required"`
	// Redis are the Redis connection parameters
	Redis RedisConfig `mapstructure:"redis" json:"redis" validate:"required"`
}

// ===============================================================================
// Upload Related Config

// UploadConfig defines the presigned S3 upload URL parameters
type UploadConfig struct {
	// Bucket is the S3 bucket
	Bucket string `mapstructure:"bucket" json:"bucket" validate:"required"`
	// Region is the S3 region
	Region string `mapstructure:"region" json:"region" validate:"required"`
	// Endpoint overrides the S3 endpoint, for S3 compatible object stores
	Endpoint string `mapstructure:"endpoint" json:"endpoint,omitempty" validate:"omitempty,url"`
	// UsePathStyle address the bucket in the URL path instead of the host name
	UsePathStyle bool `mapstructure:"use_path_style" json:"use_path_style"`
	// AccessKeyID is the static access key. When empty the AWS default
	// credential chain is used.
	AccessKeyID string `mapstructure:"access_key_id" json:"-" validate:"required_with=SecretAccessKey"`
	// SecretAccessKey is the static secret key
	SecretAccessKey string `mapstructure:"secret_access_key" json:"-" validate:"required_with=AccessKeyID"`
	// ValiditySec is how long an issued upload URL stays valid in seconds
	ValiditySec int `mapstructure:"validity_sec" json:"validity_sec" validate:"gte=1"`
}

// ===============================================================================
// Complete Config

// SystemConfig defines the complete system config
type SystemConfig struct {
	// HTTPSetting is the HTTP API / server parameters
	HTTPSetting HTTPConfig `mapstructure:"api_server" json:"api_server" validate:"required,dive"`
	// Endpoints is the API endpoint config parameters
	Endpoints EndpointConfig `mapstructure:"endpoint_config" json:"endpoint_config" validate:"required,dive"`
	// Hub are the broadcast hub parameters
	Hub HubConfig `mapstructure:"hub" json:"hub" validate:"required,dive"`
	// Worker are the external worker parameters
	Worker WorkerConfig `mapstructure:"worker" json:"worker" validate:"required,dive"`
	// Storage are the recipe store parameters
	Storage StorageConfig `mapstructure:"storage" json:"storage" validate:"required,dive"`
	// Relay are the progress relay parameters
	Relay RelayConfig `mapstructure:"relay" json:"relay" validate:"required"`
	// Upload are the signed upload URL parameters
	Upload UploadConfig `mapstructure:"upload" json:"upload" validate:"required,dive"`
}

// ===============================================================================

// InstallDefaultConfigValues installs default config parameters in viper
func InstallDefaultConfigValues() {
	// Default server settings
	viper.SetDefault("endpoint_config.path_prefix", "/")
	viper.SetDefault("api_server.server_config.listen_on", "0.0.0.0")
	viper.SetDefault("api_server.server_config.listen_port", 8080)
	viper.SetDefault("api_server.server_config.read_timeout_sec", 60)
	viper.SetDefault("api_server.server_config.write_timeout_sec", 0)
	viper.SetDefault("api_server.server_config.idle_timeout_sec", 600)
	viper.SetDefault(
		"api_server.logging_config.request_id_header", "Recipehub-Request-ID",
	)
	viper.SetDefault(
		"api_server.logging_config.do_not_log_headers", []string{
			"WWW-Authenticate", "Authorization", "Proxy-Authenticate", "Proxy-Authorization",
		},
	)

	// Default hub settings
	viper.SetDefault("hub.shards", 32)
	viper.SetDefault("hub.subscriber_buffer", 64)
	viper.SetDefault("hub.delivery_timeout_ms", 250)
	viper.SetDefault("hub.keep_alive_interval_sec", 15)
	viper.SetDefault("hub.stats_interval_sec", 60)

	// Default worker settings
	viper.SetDefault("worker.base_url", "http://127.0.0.1:8000")
	viper.SetDefault("worker.request_timeout_sec", 30)
	viper.SetDefault("worker.requests_per_sec", 20)

	// Default storage settings
	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.path", "recipehub.db")
	viper.SetDefault("storage.busy_timeout_ms", 5000)

	// Default relay settings
	viper.SetDefault("relay.driver", "local")
	viper.SetDefault("relay.topic", "recipehub")
	viper.SetDefault("relay.queue_depth", 256)
	viper.SetDefault("relay.workers", 4)
	viper.SetDefault("relay.nats.server_uri", "nats://127.0.0.1:4222")
	viper.SetDefault("relay.nats.connect_timeout_sec", 30)
	viper.SetDefault("relay.nats.reconnect.max_attempts", -1)
	viper.SetDefault("relay.nats.reconnect.wait_interval_sec", 15)
	viper.SetDefault("relay.redis.addr", "127.0.0.1:6379")
	viper.SetDefault("relay.redis.db", 0)
	viper.SetDefault("relay.redis.connect_timeout_sec", 5)

	// Default upload settings
	viper.SetDefault("upload.bucket", "recipehub-media")
	viper.SetDefault("upload.region", "ap-northeast-2")
	viper.SetDefault("upload.endpoint", "")
	viper.SetDefault("upload.use_path_style", false)
	viper.SetDefault("upload.access_key_id", "")
	viper.SetDefault("upload.secret_access_key", "")
	viper.SetDefault("upload.validity_sec", 300)
}
