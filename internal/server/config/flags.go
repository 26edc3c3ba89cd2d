package config

import (
	"github.com/spf13/pflag"
)

// newFlagSet declares the server flags with defaults taken from def.
//
// Short forms kept from earlier releases:
//
//	-a  gRPC bind address
//	-d  PostgreSQL DSN
//	-s  HMAC secret key
//	-t  access token lifetime
//	-r  refresh token lifetime
//	-c  YAML config file
func newFlagSet(def *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("gophauth-server", pflag.ContinueOnError)

	fs.StringP("config", "c", "", "path to a YAML config file")
	fs.StringP("grpc-address", "a", def.GRPCAddress, "address and port to run the gRPC server")
	fs.StringP("metrics-address", "m", def.MetricsAddress, "address for /metrics and /healthz (empty disables)")
	fs.StringP("database-dsn", "d", def.DatabaseDSN, "database DSN")
	fs.StringP("secret-key", "s", def.SecretKey, "secret key for signing tokens")
	fs.DurationP("access-token-ttl", "t", def.AccessTokenTTL, "access token lifetime")
	fs.Duration("reset-code-ttl", def.ResetCodeTTL, "password reset code lifetime")
	fs.DurationP("refresh-token-ttl", "r", def.RefreshTokenTTL, "refresh token lifetime")
	fs.Int64("refresh-token-cap", def.RefreshTokenCap, "live refresh tokens per user before logins reuse the newest")
	fs.Int64("max-users", def.MaxUsers, "maximum number of accounts")
	fs.Int("reset-password-length", def.ResetPasswordLength, "length of passwords generated on reset")
	fs.String("refresh-store", def.RefreshStore, "refresh token backend: postgres or redis")
	fs.String("redis-address", def.RedisAddress, "redis address for the redis refresh token backend")
	fs.String("redis-prefix", def.RedisPrefix, "key prefix for the redis refresh token backend")
	fs.Duration("purge-interval", def.PurgeInterval, "interval between expired refresh token purges")
	fs.Duration("shutdown-timeout", def.ShutdownTimeout, "graceful shutdown timeout")
	fs.String("log-level", def.LogLevel, "log level: debug, info, warn, error")
	fs.Uint32("hash-memory-kib", def.HashMemoryKiB, "argon2id memory in KiB")
	fs.Uint32("hash-iterations", def.HashIterations, "argon2id iterations")
	fs.Uint8("hash-threads", def.HashThreads, "argon2id parallelism")

	return fs
}
