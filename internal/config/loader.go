package config

import (
	"context"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/bpp/sloty/pkg/errors"
)

const (
	// EnvPrefix 环境变量前缀
	EnvPrefix = "SLOTY_"
	// EnvConfigPath 配置文件路径环境变量
	EnvConfigPath = "SLOTY_CONFIG"
)

// Load 按优先级从低到高叠加配置：默认值、YAML 文件（SLOTY_CONFIG）、环境变量（SLOTY_ 前缀）。
// 环境变量中的双下划线表示层级，例如 SLOTY_ENGINE__STRATEGY 对应 engine.strategy
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, errors.CodeConfiguration, "读取配置文件失败")
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		if s == EnvConfigPath {
			return ""
		}
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "读取环境变量失败")
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "解析配置失败")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验配置，返回 CONFIGURATION_ERROR 并附带字段明细
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, errors.CodeConfiguration, "配置校验失败")
	}
	appErr := errors.New(errors.CodeConfiguration, "配置校验失败")
	for _, fe := range verrs {
		appErr.WithField(fe.Namespace(), fe.Tag())
	}
	return appErr
}
