package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/flagx"
)

var serverFlags = []string{
	"-a", "-d", "-s", "-t", "-S", "-R", "-l", "-U", "-i",
	"-u", "-p", "-b", "-g", "-e", "-k", "-K", "-A",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   PostgreSQL DSN, or "memory"
//	-s string   session token HMAC secret key
//	-t int      session validity, minutes
//	-S string   session store: postgres | redis
//	-R string   Redis address
//	-l string   log format: json | zap
//	-U string   local uploads directory
//	-i string   image store: local | s3
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-k string   comma-separated Kafka brokers
//	-K string   Kafka topic
//	-A bool     administrators see closed notes by default
//
// os.Args is first narrowed with flagx.FilterArgs so that -c/-config and
// flags of other components do not make parsing fail.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionValidity := fs.Int("t", int(config.SessionValidityDuration.Minutes()), "session validity (in minutes)")

	fs.StringVar(&config.SessionStore, "S", config.SessionStore, "session store (postgres|redis)")
	fs.StringVar(&config.RedisAddr, "R", config.RedisAddr, "Redis address")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format (json|zap)")
	fs.StringVar(&config.UploadsDir, "U", config.UploadsDir, "uploads directory")
	fs.StringVar(&config.ImageStore, "i", config.ImageStore, "image store (local|s3)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	brokers := fs.String("k", strings.Join(config.KafkaBrokers, ","), "Kafka brokers (comma-separated)")

	fs.StringVar(&config.KafkaTopic, "K", config.KafkaTopic, "Kafka topic")
	fs.BoolVar(&config.AdminSeesAllNotes, "A", config.AdminSeesAllNotes, "administrators see closed notes by default")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Minute
	config.KafkaBrokers = splitList(*brokers)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
