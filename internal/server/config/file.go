package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/zeladoria/internal/flagx"
	"github.com/dmitrijs2005/zeladoria/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Pointer fields
// distinguish "absent" from a zero value so a file can override only
// what it mentions.
type FileConfig struct {
	EndpointAddrHTTP        *string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN             *string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey               *string         `json:"secret_key" yaml:"secret_key"`
	SessionValidityDuration *timex.Duration `json:"session_validity_duration" yaml:"session_validity_duration"`
	SessionStore            *string         `json:"session_store" yaml:"session_store"`
	RedisAddr               *string         `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword           *string         `json:"redis_password" yaml:"redis_password"`
	RedisDB                 *int            `json:"redis_db" yaml:"redis_db"`
	LogFormat               *string         `json:"log_format" yaml:"log_format"`
	UploadsDir              *string         `json:"uploads_dir" yaml:"uploads_dir"`
	UploadsURLPrefix        *string         `json:"uploads_url_prefix" yaml:"uploads_url_prefix"`
	ImageStore              *string         `json:"image_store" yaml:"image_store"`
	ImageMaxDimension       *int            `json:"image_max_dimension" yaml:"image_max_dimension"`
	ImageWorkers            *int            `json:"image_workers" yaml:"image_workers"`
	ImageMaxPixels          *int            `json:"image_max_pixels" yaml:"image_max_pixels"`
	S3RootUser              *string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword          *string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                *string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                *string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint          *string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	KafkaBrokers            []string        `json:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic              *string         `json:"kafka_topic" yaml:"kafka_topic"`
	AdminSeesAllNotes       *bool           `json:"admin_sees_all_notes" yaml:"admin_sees_all_notes"`
}

// parseFile overlays values from the file named by -c/-config. Files ending
// in .yaml or .yml are decoded as YAML, everything else as JSON. A missing
// flag leaves cfg untouched; an unreadable or malformed file panics.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		panic(err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.SecretKey, fc.SecretKey)
	if fc.SessionValidityDuration != nil {
		cfg.SessionValidityDuration = fc.SessionValidityDuration.Duration
	}
	setString(&cfg.SessionStore, fc.SessionStore)
	setString(&cfg.RedisAddr, fc.RedisAddr)
	setString(&cfg.RedisPassword, fc.RedisPassword)
	setInt(&cfg.RedisDB, fc.RedisDB)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.UploadsDir, fc.UploadsDir)
	setString(&cfg.UploadsURLPrefix, fc.UploadsURLPrefix)
	setString(&cfg.ImageStore, fc.ImageStore)
	setInt(&cfg.ImageMaxDimension, fc.ImageMaxDimension)
	setInt(&cfg.ImageWorkers, fc.ImageWorkers)
	setInt(&cfg.ImageMaxPixels, fc.ImageMaxPixels)
	setString(&cfg.S3RootUser, fc.S3RootUser)
	setString(&cfg.S3RootPassword, fc.S3RootPassword)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	if fc.KafkaBrokers != nil {
		cfg.KafkaBrokers = fc.KafkaBrokers
	}
	setString(&cfg.KafkaTopic, fc.KafkaTopic)
	if fc.AdminSeesAllNotes != nil {
		cfg.AdminSeesAllNotes = *fc.AdminSeesAllNotes
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
