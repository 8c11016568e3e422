// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

const (
	IniName            = ".bucketref.ini"
	IniPathEnv         = "BUCKETREF_INI"
	IniSource          = "ini_source"
	CurrentEnvironment = "current_environment"
	UpdatedEnvKey      = "updated_environment"

	CoreEndpoint    = "core_endpoint"
	CoreApiVersion  = "core_api_version"
	CoreAccessToken = "core_access_token"
	CoreUser        = "core_user"
	CorePassword    = "core_password"
	CoreRetryMax    = "core_retry_max"
	Project         = "project"
	Entity          = "entity"

	Bucket    = "bucket"
	BucketURL = "bucket_url"

	AwsAccessKeyID     = "aws_access_key_id"
	AwsSecretAccessKey = "aws_secret_access_key"
	AwsSessionToken    = "aws_session_token"
	AwsRegion          = "aws_region"
	AwsEndpointURL     = "aws_endpoint_url"

	JobID    = "job_id"
	JobName  = "job_name"
	JobOwner = "job_owner"
	JobTags  = "job_tags"

	Retries     = "retries"
	BackoffUnit = "backoff_unit"

	LogLevel  = "log_level"
	LogFormat = "log_format"
)
