// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/logging"
)

// EnvDumpPrefix: optional prefix for env lookup (e.g., "BUCKETREF")
const EnvDumpPrefix = "BUCKETREF"

// Settings holds all logical keys. Tags:
// - vkey: Viper key
// - env: canonical env name (UPPER_SNAKE). If empty, derived from vkey
// - persist: "true" to write the key into the INI
// - default: optional default to set if key is unset
// - secret: "true" if sensitive, masked when printed
// - bind: "false" to NOT bind from env (defaults still apply)
type Settings struct {
	CoreEndpoint       string `vkey:"core_endpoint"         env:"CORE_ENDPOINT"         persist:"true"`
	CoreApiVersion     string `vkey:"core_api_version"      env:"CORE_API_VERSION"      persist:"true"  default:"v1"`
	CoreAccessToken    string `vkey:"core_access_token"     env:"CORE_ACCESS_TOKEN"     persist:"true"  secret:"true"`
	CoreUser           string `vkey:"core_user"             env:"CORE_USER"             persist:"true"`
	CorePassword       string `vkey:"core_password"         env:"CORE_PASSWORD"         persist:"true"  secret:"true"`
	CoreRetryMax       string `vkey:"core_retry_max"        env:"CORE_RETRY_MAX"        persist:"true"  default:"3"`
	Project            string `vkey:"project"               env:"PROJECT"               persist:"true"`
	Entity             string `vkey:"entity"                env:"ENTITY"                persist:"true"`
	Bucket             string `vkey:"bucket"                env:"BUCKET"                persist:"true"`
	BucketURL          string `vkey:"bucket_url"            env:"BUCKET_URL"            persist:"true"`
	AwsAccessKeyID     string `vkey:"aws_access_key_id"     env:"AWS_ACCESS_KEY_ID"     persist:"true"  secret:"true"`
	AwsSecretAccessKey string `vkey:"aws_secret_access_key" env:"AWS_SECRET_ACCESS_KEY" persist:"true"  secret:"true"`
	AwsSessionToken    string `vkey:"aws_session_token"     env:"AWS_SESSION_TOKEN"     persist:"true"  secret:"true"`
	AwsRegion          string `vkey:"aws_region"            env:"AWS_REGION"            persist:"true"  default:"us-east-1"`
	AwsEndpointURL     string `vkey:"aws_endpoint_url"      env:"AWS_ENDPOINT_URL"      persist:"true"`
	JobID              string `vkey:"job_id"                env:"JOB_ID"                persist:"false"`
	JobName            string `vkey:"job_name"              env:"JOB_NAME"              persist:"false"`
	JobOwner           string `vkey:"job_owner"             env:"JOB_OWNER"             persist:"false"`
	JobTags            string `vkey:"job_tags"              env:"JOB_TAGS"              persist:"false"`
	Retries            string `vkey:"retries"               env:"RETRIES"               persist:"true"  default:"5"`
	BackoffUnit        string `vkey:"backoff_unit"          env:"BACKOFF_UNIT"          persist:"true"  default:"1s"`
	LogLevel           string `vkey:"log_level"             env:"LOG_LEVEL"             persist:"true"  default:"info"`
	LogFormat          string `vkey:"log_format"            env:"LOG_FORMAT"            persist:"true"  default:"text"`
	IniSource          string `vkey:"ini_source"            env:"INI_SOURCE"            persist:"true"  bind:"false"`
	UpdatedEnvironment string `vkey:"updated_environment"   env:"UPDATED_ENVIRONMENT"   persist:"true"  bind:"false"`
	CurrentEnvironment string `vkey:"current_environment"   env:"CURRENT_ENVIRONMENT"   persist:"false"`
}

// SettingKey is one entry of the Settings table.
type SettingKey struct {
	Key     string
	Env     string
	Persist bool
	Secret  bool
	Bind    bool
	Default string
}

// SettingKeys lists the Settings tags in declaration order.
func SettingKeys() []SettingKey {
	rt := reflect.TypeOf(Settings{})
	keys := make([]SettingKey, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		key := f.Tag.Get("vkey")
		if key == "" {
			continue
		}
		env := f.Tag.Get("env")
		if env == "" {
			env = strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		}
		keys = append(keys, SettingKey{
			Key:     key,
			Env:     env,
			Persist: f.Tag.Get("persist") == "true",
			Secret:  f.Tag.Get("secret") == "true",
			Bind:    !strings.EqualFold(f.Tag.Get("bind"), "false"),
			Default: f.Tag.Get("default"),
		})
	}
	return keys
}

// IniPath is $BUCKETREF_INI when set, ~/.bucketref.ini otherwise.
func IniPath() string {
	if p := os.Getenv(IniPathEnv); p != "" {
		return p
	}
	return getIniPath()
}

// resolveEnvName: --env > "default"
func resolveEnvName(optionalEnv ...string) string {
	if len(optionalEnv) > 0 && optionalEnv[0] != "" && strings.ToLower(optionalEnv[0]) != "null" {
		return optionalEnv[0]
	}
	return "default"
}

// mirror PREFIX_FOO -> FOO (optional)
func mirrorPrefix(prefix string) {
	if prefix == "" {
		return
	}
	upPrefix := strings.ToUpper(prefix) + "_"
	for _, e := range os.Environ() {
		name, val, ok := strings.Cut(e, "=")
		if !ok || name == IniPathEnv {
			continue
		}
		if strings.HasPrefix(name, upPrefix) {
			unpref := strings.TrimPrefix(name, upPrefix)
			if os.Getenv(unpref) == "" {
				_ = os.Setenv(unpref, val)
			}
		}
	}
}

// BindEnvFromStruct binds env vars for all Settings fields.
func BindEnvFromStruct(prefix string) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	mirrorPrefix(prefix)

	for _, sk := range SettingKeys() {
		if sk.Bind {
			_ = viper.BindEnv(sk.Key, sk.Env)
		}
		if sk.Default != "" && !viper.IsSet(sk.Key) {
			viper.SetDefault(sk.Key, sk.Default)
		}
	}
}

func persistInto(sec *ini.Section) {
	for _, sk := range SettingKeys() {
		if !sk.Persist {
			continue
		}
		val := viper.GetString(sk.Key)
		if val == "" || val == sk.Default {
			continue
		}
		sec.Key(sk.Key).SetValue(val)
	}
}

// WriteIniFromStruct writes a new INI with only the persist:"true" keys.
func WriteIniFromStruct(iniPath, envName string) error {
	cfg := ini.Empty()
	cfg.Section("DEFAULT").Key(CurrentEnvironment).SetValue(envName)
	persistInto(cfg.Section(envName))
	return cfg.SaveTo(iniPath)
}

// UpdateIniFromStruct updates or creates the env section from current Viper values.
func UpdateIniFromStruct(iniPath, envName string) error {
	cfg, err := ini.Load(iniPath)
	if err != nil {
		return WriteIniFromStruct(iniPath, envName)
	}
	sec := cfg.Section(envName)
	persistInto(sec)

	if !cfg.Section("DEFAULT").HasKey(CurrentEnvironment) {
		cfg.Section("DEFAULT").Key(CurrentEnvironment).SetValue(envName)
	}
	sec.Key(UpdatedEnvKey).SetValue(time.Now().UTC().Format(time.RFC3339))
	return cfg.SaveTo(iniPath)
}

// Load [DEFAULT] + [env] into Viper (TOML in-memory). ENV can still override on Get().
func loadIniSectionIntoViper(cfg *ini.File, env string, log logging.Logger) error {
	def := cfg.Section("DEFAULT")
	selected := def
	if env != "" && cfg.HasSection(env) {
		selected = cfg.Section(env)
		log.Debug("using environment", "env", env)
	} else if env == "" || strings.EqualFold(env, "DEFAULT") || env == "default" {
		log.Debug("using environment", "env", "DEFAULT")
	} else {
		log.Warn("environment not found, falling back to DEFAULT", "env", env)
	}

	merged := make(map[string]string)
	for _, k := range def.Keys() {
		merged[k.Name()] = k.Value()
	}
	if selected != def {
		for _, k := range selected.Keys() {
			merged[k.Name()] = k.Value()
		}
	}

	var buf bytes.Buffer
	for _, k := range SortedKeys(merged) {
		v := merged[k]
		vSafe := strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `"`, `\"`)
		_, _ = fmt.Fprintf(&buf, "%s = \"%s\"\n", k, vSafe)
	}
	viper.SetConfigType("toml")
	return viper.ReadConfig(&buf)
}

// RegisterIniCfgWithViper:
// 1) bind ENV from struct (live)
// 2) load the INI if present; without it the process runs in ENV-only mode
// 3) load active section into Viper and set current_environment
//
// The active env is --env > DEFAULT.current_environment > default.
func RegisterIniCfgWithViper(log logging.Logger, optionalEnv ...string) error {
	log = logging.OrNop(log)
	iniPath := IniPath()

	BindEnvFromStruct(EnvDumpPrefix)

	cfg, err := ini.Load(iniPath)
	if err != nil {
		log.Debug("ini not found, reading configuration from environment", "path", iniPath)
		viper.Set(IniSource, "env")
		viper.Set(CurrentEnvironment, resolveEnvName(optionalEnv...))
		return nil
	}

	env := resolveEnvName(optionalEnv...)
	if env == "default" {
		if v := cfg.Section("DEFAULT").Key(CurrentEnvironment).String(); v != "" {
			env = v
		}
	}

	if err := loadIniSectionIntoViper(cfg, env, log); err != nil {
		return fmt.Errorf("failed to load INI into viper: %w", err)
	}
	viper.Set(IniSource, "ini")
	viper.Set(CurrentEnvironment, env)
	return nil
}

// SaveCurrentEnvironment persists the current Viper values into the INI section
// of the active environment.
func SaveCurrentEnvironment() (string, error) {
	env := viper.GetString(CurrentEnvironment)
	if env == "" {
		env = resolveEnvName()
	}
	if err := UpdateIniFromStruct(IniPath(), env); err != nil {
		return env, fmt.Errorf("failed to save ini: %w", err)
	}
	return env, nil
}

// EffectiveSettings returns every key with its current value, secrets masked.
func EffectiveSettings() map[string]string {
	out := make(map[string]string)
	for _, sk := range SettingKeys() {
		val := viper.GetString(sk.Key)
		if val == "" {
			continue
		}
		if sk.Secret {
			val = "********"
		}
		out[sk.Key] = val
	}
	return out
}

// LoadSDKConfig builds the plain SDK config from the current Viper state.
func LoadSDKConfig() (config.Config, error) {
	retries := viper.GetInt(Retries)
	if retries < 0 {
		return config.Config{}, fmt.Errorf("%s must be >= 0, got %d", Retries, retries)
	}
	unit, err := time.ParseDuration(viper.GetString(BackoffUnit))
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid %s: %w", BackoffUnit, err)
	}

	var tags []string
	for _, t := range strings.Split(viper.GetString(JobTags), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return config.Config{
		Core: config.CoreConfig{
			BaseURL:           viper.GetString(CoreEndpoint),
			APIVersion:        viper.GetString(CoreApiVersion),
			AccessToken:       viper.GetString(CoreAccessToken),
			BasicAuthUsername: viper.GetString(CoreUser),
			BasicAuthPassword: viper.GetString(CorePassword),
			Project:           viper.GetString(Project),
			Entity:            viper.GetString(Entity),
			RetryMax:          viper.GetInt(CoreRetryMax),
		},
		S3: config.S3Config{
			AccessKey:   viper.GetString(AwsAccessKeyID),
			SecretKey:   viper.GetString(AwsSecretAccessKey),
			AccessToken: viper.GetString(AwsSessionToken),
			Region:      viper.GetString(AwsRegion),
			EndpointURL: viper.GetString(AwsEndpointURL),
		},
		Bucket: config.BucketConfig{
			Name: viper.GetString(Bucket),
			URL:  viper.GetString(BucketURL),
		},
		Job: config.JobConfig{
			ID:    viper.GetString(JobID),
			Name:  viper.GetString(JobName),
			Owner: viper.GetString(JobOwner),
			Tags:  tags,
		},
		Transfer: config.TransferConfig{
			Retries:     retries,
			BackoffUnit: unit,
		},
	}, nil
}
