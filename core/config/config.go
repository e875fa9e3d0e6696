package config

import (
	_ "embed"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	// EnvPrefix is prepended to every environment override, for example
	// ANDPIPE_LOG_LEVEL or ANDPIPE_OUTPUT_MODE.
	EnvPrefix = "ANDPIPE"
)

type Configuration struct {
	Log Log `json:"log"`

	// OutputMode holds octal permission bits, e.g. "0777".
	OutputMode string `json:"output_mode" split_words:"true" validate:"required,filemode"`
}

type Log struct {
	Level       string   `json:"level" validate:"oneof=debug info warn error"`
	Development bool     `json:"development"`
	OutputPaths []string `json:"output_paths" split_words:"true" validate:"dive,required"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	if err := validate.RegisterValidation("filemode", validFileMode); err != nil {
		return err
	}

	return validate.Struct(c)
}

// FileMode parses OutputMode, it must only be called on a valid configuration.
func (c *Configuration) FileMode() os.FileMode {
	mode, err := parseFileMode(c.OutputMode)
	if err != nil {
		panic(err)
	}
	return mode
}

func parseFileMode(s string) (os.FileMode, error) {
	mode, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	return os.FileMode(mode) & os.ModePerm, nil
}

func validFileMode(fl validator.FieldLevel) bool {
	mode, err := strconv.ParseUint(fl.Field().String(), 8, 32)
	return err == nil && mode <= uint64(os.ModePerm)
}

// Default returns the built in configuration.
func Default() *Configuration {
	return defaultConfig()
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
