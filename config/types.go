package config

import "time"

type Config struct {
	Debug  bool   `mapstructure:"debug"`
	Server Server `mapstructure:"server"`
	Media  Media  `mapstructure:"media"`
	Index  Index  `mapstructure:"index"`
}

type Server struct {
	Address string       `mapstructure:"address" validate:"required,hostname|ip"`
	Port    int          `mapstructure:"port" validate:"min=0,max=65535"`
	Limits  ServerLimits `mapstructure:"limits"`
	Auth    ServerAuth   `mapstructure:"auth"`
}

type ServerLimits struct {
	MaxFileSize     uint `mapstructure:"max_file_size" validate:"required"`
	MaxMultipartMem uint `mapstructure:"max_multipart_mem" validate:"required"`
}

// ServerAuth enables the admin bearer-token gate when Secret is set.
type ServerAuth struct {
	Secret string `mapstructure:"secret" validate:"omitempty,min=16"`
	Issuer string `mapstructure:"issuer"`
}

type Media struct {
	VideoPlaceholder string             `mapstructure:"video_placeholder"`
	Local            LocalMediaStrategy `mapstructure:"local"`
	Remote           RemoteMedia        `mapstructure:"remote"`
}

type LocalMediaStrategy struct {
	Path      string `mapstructure:"path" validate:"required,abspath"`
	PublicUrl string `mapstructure:"public_url" validate:"required"`
	Serve     bool   `mapstructure:"serve"`
}

type RemoteMedia struct {
	Strategy string            `mapstructure:"strategy" validate:"required,oneof=noop s3 aws"`
	Timeout  time.Duration     `mapstructure:"timeout" validate:"min=0"`
	S3       *S3MediaStrategy  `mapstructure:"s3" validate:"required_if=Strategy s3"`
	AWS      *AWSMediaStrategy `mapstructure:"aws" validate:"required_if=Strategy aws"`
}

type S3MediaStrategy struct {
	AccessKeyId    string `mapstructure:"access_key_id" validate:"required"`
	SecretKeyId    string `mapstructure:"secret_key_id" validate:"required"`
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket" validate:"required"`
	Endpoint       string `mapstructure:"endpoint"`
	PublicUrl      string `mapstructure:"public_url" validate:"omitempty,url"`
	PathPattern    string `mapstructure:"path_pattern" validate:"omitempty,pathpattern"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	DisableSSL     bool   `mapstructure:"disable_ssl"`
}

type AWSMediaStrategy struct {
	Region          string `mapstructure:"region" validate:"required"`
	Bucket          string `mapstructure:"bucket" validate:"required"`
	AccessKeyId     string `mapstructure:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyId"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	PublicUrl       string `mapstructure:"public_url" validate:"required,url"`
	PathPattern     string `mapstructure:"path_pattern" validate:"omitempty,pathpattern"`
}

type Index struct {
	Strategy string              `mapstructure:"strategy" validate:"required,oneof=memory mongo sql d1"`
	Mongo    *MongoIndexStrategy `mapstructure:"mongo" validate:"required_if=Strategy mongo"`
	SQL      *SQLIndexStrategy   `mapstructure:"sql" validate:"required_if=Strategy sql"`
	D1       *D1IndexStrategy    `mapstructure:"d1" validate:"required_if=Strategy d1"`
}

type MongoIndexStrategy struct {
	URI        string        `mapstructure:"uri" validate:"required"`
	Database   string        `mapstructure:"database" validate:"required"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=0"`
}

type SQLIndexStrategy struct {
	Driver      string  `mapstructure:"driver" validate:"required,oneof=postgres mysql sqlite"`
	DSN         string  `mapstructure:"dsn" validate:"required"`
	TablePrefix *string `mapstructure:"table_prefix" validate:"omitempty,identifier"`
}

type D1IndexStrategy struct {
	AccountID   string  `mapstructure:"account_id" validate:"required"`
	DatabaseID  string  `mapstructure:"database_id" validate:"required"`
	APIToken    string  `mapstructure:"api_token" validate:"required"`
	Endpoint    string  `mapstructure:"endpoint" validate:"omitempty,url"`
	TablePrefix *string `mapstructure:"table_prefix" validate:"omitempty,identifier"`
}
