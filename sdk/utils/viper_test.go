// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

func isolate(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	iniPath := filepath.Join(t.TempDir(), IniName)
	t.Setenv(IniPathEnv, iniPath)
	for _, sk := range SettingKeys() {
		if _, ok := os.LookupEnv(sk.Env); ok {
			t.Setenv(sk.Env, "")
			os.Unsetenv(sk.Env)
		}
	}
	return iniPath
}

func TestRegisterFromEnvOnly(t *testing.T) {
	isolate(t)
	t.Setenv("CORE_ENDPOINT", "http://core.local")
	t.Setenv("PROJECT", "mlops")
	t.Setenv("RETRIES", "")
	t.Setenv("BUCKETREF_RETRIES", "2")

	require.NoError(t, RegisterIniCfgWithViper(nil))
	assert.Equal(t, "env", viper.GetString(IniSource))

	cfg, err := LoadSDKConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://core.local", cfg.Core.BaseURL)
	assert.Equal(t, "v1", cfg.Core.APIVersion)
	assert.Equal(t, "mlops", cfg.Core.Project)
	assert.Equal(t, 2, cfg.Transfer.Retries)
	assert.Equal(t, time.Second, cfg.Transfer.BackoffUnit)
	assert.Equal(t, "s3://mlops", cfg.BucketURL())
}

func TestRegisterFromIniSection(t *testing.T) {
	iniPath := isolate(t)

	f := ini.Empty()
	f.Section("DEFAULT").Key(CurrentEnvironment).SetValue("staging")
	f.Section("DEFAULT").Key(Project).SetValue("fallback")
	f.Section("staging").Key(Project).SetValue("staged")
	f.Section("staging").Key(BucketURL).SetValue("file:///srv/bucket")
	f.Section("prod").Key(Project).SetValue("prod-project")
	require.NoError(t, f.SaveTo(iniPath))

	require.NoError(t, RegisterIniCfgWithViper(nil))
	assert.Equal(t, "staging", viper.GetString(CurrentEnvironment))
	cfg, err := LoadSDKConfig()
	require.NoError(t, err)
	assert.Equal(t, "staged", cfg.Core.Project)
	assert.Equal(t, "file:///srv/bucket", cfg.BucketURL())

	viper.Reset()
	require.NoError(t, RegisterIniCfgWithViper(nil, "prod"))
	cfg, err = LoadSDKConfig()
	require.NoError(t, err)
	assert.Equal(t, "prod-project", cfg.Core.Project)
}

func TestSaveCurrentEnvironmentPersistsOnlyPersistentKeys(t *testing.T) {
	iniPath := isolate(t)
	require.NoError(t, RegisterIniCfgWithViper(nil, "dev"))
	viper.Set(Project, "saved")
	viper.Set(JobID, "job-1")
	viper.Set(CoreAccessToken, "tok")

	env, err := SaveCurrentEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "dev", env)

	f, err := ini.Load(iniPath)
	require.NoError(t, err)
	sec := f.Section("dev")
	assert.Equal(t, "saved", sec.Key(Project).String())
	assert.Equal(t, "tok", sec.Key(CoreAccessToken).String())
	assert.False(t, sec.HasKey(JobID))
	assert.Equal(t, "dev", f.Section("DEFAULT").Key(CurrentEnvironment).String())

	settings := EffectiveSettings()
	assert.Equal(t, "********", settings[CoreAccessToken])
	assert.Equal(t, "saved", settings[Project])
}

func TestLoadSDKConfigRejectsBadValues(t *testing.T) {
	isolate(t)
	require.NoError(t, RegisterIniCfgWithViper(nil))

	viper.Set(BackoffUnit, "soon")
	_, err := LoadSDKConfig()
	require.Error(t, err)

	viper.Set(BackoffUnit, "10ms")
	viper.Set(Retries, -1)
	_, err = LoadSDKConfig()
	require.Error(t, err)

	viper.Set(Retries, 0)
	viper.Set(JobTags, "a, b,,c")
	cfg, err := LoadSDKConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.Transfer.BackoffUnit)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Job.Tags)
}
