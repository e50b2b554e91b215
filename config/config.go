// Package config はtabmlの設定を読み込む
//
// 優先順位: フラグ > 環境変数 (TABML_*) > 設定ファイル > デフォルト値。
// 設定ファイルは --config で指定するか、~/.tabml/config.yaml を任意で読む。
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/tabml/chart"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// EnvPrefix は環境変数の接頭辞。ネストしたキーは "_" で区切る
// （例: TABML_TRAINING_N_ESTIMATORS）。
const EnvPrefix = "TABML"

// Training は学習のハイパーパラメータ
type Training struct {
	NEstimators             int     `mapstructure:"n_estimators" yaml:"n_estimators"`
	MaxDepth                int     `mapstructure:"max_depth" yaml:"max_depth"`
	MinSamplesLeaf          int     `mapstructure:"min_samples_leaf" yaml:"min_samples_leaf"`
	RandomState             int64   `mapstructure:"random_state" yaml:"random_state"`
	TestSize                float64 `mapstructure:"test_size" yaml:"test_size"`
	CVFolds                 int     `mapstructure:"cv_folds" yaml:"cv_folds"`
	ClassificationThreshold int     `mapstructure:"classification_threshold" yaml:"classification_threshold"`
	NumericThreshold        float64 `mapstructure:"numeric_threshold" yaml:"numeric_threshold"`
}

// Global は全体の設定
type Global struct {
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat  string `mapstructure:"log_format" yaml:"log_format"`
	LogBackend string `mapstructure:"log_backend" yaml:"log_backend"`

	ModelsDir  string `mapstructure:"models_dir" yaml:"models_dir"`
	UploadsDir string `mapstructure:"uploads_dir" yaml:"uploads_dir"`
	ServerAddr string `mapstructure:"server_addr" yaml:"server_addr"`
	CacheSize  int    `mapstructure:"cache_size" yaml:"cache_size"`

	Training Training      `mapstructure:"training" yaml:"training"`
	Chart    chart.Options `mapstructure:"chart" yaml:"chart"`
}

// Default returns the built-in configuration.
func Default() *Global {
	return &Global{
		LogLevel:   "info",
		LogFormat:  "console",
		LogBackend: "zerolog",
		ModelsDir:  "models",
		UploadsDir: "uploads",
		ServerAddr: ":5000",
		CacheSize:  16,
		Training: Training{
			NEstimators:             100,
			MaxDepth:                -1,
			MinSamplesLeaf:          1,
			RandomState:             42,
			TestSize:                0.2,
			CVFolds:                 5,
			ClassificationThreshold: 10,
			NumericThreshold:        1.0,
		},
		Chart: chart.DefaultOptions(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_backend", d.LogBackend)
	v.SetDefault("models_dir", d.ModelsDir)
	v.SetDefault("uploads_dir", d.UploadsDir)
	v.SetDefault("server_addr", d.ServerAddr)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("training.n_estimators", d.Training.NEstimators)
	v.SetDefault("training.max_depth", d.Training.MaxDepth)
	v.SetDefault("training.min_samples_leaf", d.Training.MinSamplesLeaf)
	v.SetDefault("training.random_state", d.Training.RandomState)
	v.SetDefault("training.test_size", d.Training.TestSize)
	v.SetDefault("training.cv_folds", d.Training.CVFolds)
	v.SetDefault("training.classification_threshold", d.Training.ClassificationThreshold)
	v.SetDefault("training.numeric_threshold", d.Training.NumericThreshold)
	v.SetDefault("chart.width_in", d.Chart.WidthIn)
	v.SetDefault("chart.height_in", d.Chart.HeightIn)
}

// Load reads configuration from defaults, the optional config file and
// TABML_* environment variables. An explicit cfgFile must exist; the
// default ~/.tabml/config.yaml is optional.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewFileNotFoundError(cfgFile)
			}
			return nil, errors.NewUnexpectedFailure("read config", err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".tabml"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.NewUnexpectedFailure("unmarshal config", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges.
func (c *Global) Validate() error {
	switch {
	case c.Training.NEstimators < 1:
		return errors.NewValueError("config", "training.n_estimators must be positive")
	case c.Training.TestSize <= 0 || c.Training.TestSize >= 1:
		return errors.NewValueError("config", "training.test_size must be in (0, 1)")
	case c.Training.CVFolds < 0 || c.Training.CVFolds == 1:
		return errors.NewValueError("config", "training.cv_folds must be 0 (disabled) or at least 2")
	case c.Training.NumericThreshold <= 0 || c.Training.NumericThreshold > 1:
		return errors.NewValueError("config", "training.numeric_threshold must be in (0, 1]")
	case c.Training.MinSamplesLeaf < 1:
		return errors.NewValueError("config", "training.min_samples_leaf must be at least 1")
	case c.CacheSize < 1:
		return errors.NewValueError("config", "cache_size must be positive")
	}
	return nil
}

// YAML renders the configuration as YAML for `tabml config show`.
func (c *Global) YAML() ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.NewUnexpectedFailure("marshal yaml", err)
	}
	return b, nil
}
