package types

import "fmt"

type TableName string

func (s TableName) Name() string {
	return fmt.Sprintf("%s%s", TABLE_PREFIX, s)
}

const TABLE_PREFIX = "cx_"

const (
	TABLE_USAGE_RECORD     = TableName("usage_record")
	TABLE_USAGE_LIMIT      = TableName("usage_limit")
	TABLE_GENERATION_JOB   = TableName("generation_job")
	TABLE_CONTENT          = TableName("content")
	TABLE_CONTENT_VERSION  = TableName("content_version")
	TABLE_AUDIT_LOG        = TableName("audit_log")
	TABLE_SCHEMA_MIGRATION = TableName("schema_migrations")
)
