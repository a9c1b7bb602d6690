package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	DirectoriesConfig struct {
		Documents string `yaml:"documents" sanitize:"path_clean" validate:"required"`
		Images    string `yaml:"images" sanitize:"path_clean" validate:"required"`
		HTML      string `yaml:"html" sanitize:"path_clean" validate:"required"`
		Output    string `yaml:"output" sanitize:"path_clean" validate:"required"`
		Logs      string `yaml:"logs" sanitize:"path_clean" validate:"required"`
	}

	PatternsConfig struct {
		// each expression must have exactly one capture group - image name
		Image []string `yaml:"image" validate:"min=1,dive,required"`
		// first capture group is the code
		Code string `yaml:"code" validate:"required"`
	}

	DocumentsConfig struct {
		CodeColumn       int    `yaml:"code_column" validate:"gte=0"`
		ContentColumns   []int  `yaml:"content_columns" validate:"dive,gte=0"`
		DeriveThumbnails bool   `yaml:"derive_thumbnails"`
		ThumbnailCode    string `yaml:"thumbnail_code" validate:"required_if=DeriveThumbnails true"`
	}

	WebPConfig struct {
		Quality  int  `yaml:"quality" validate:"min=0,max=100"`
		Method   int  `yaml:"method" validate:"min=0,max=6"`
		Lossless bool `yaml:"lossless"`
	}

	ImagesConfig struct {
		// order defines lookup priority
		Extensions   []string   `yaml:"extensions" validate:"min=1,dive,required"`
		SkipExisting bool       `yaml:"skip_existing"`
		WebP         WebPConfig `yaml:"webp"`
	}

	OutputConfig struct {
		TransliterateNames bool `yaml:"transliterate_names"`
	}

	HTMLConfig struct {
		Enable          bool   `yaml:"enable"`
		OverwriteSource bool   `yaml:"overwrite_source"`
		CarouselMarker  string `yaml:"carousel_marker" validate:"required"`
		NormalMarker    string `yaml:"normal_marker" validate:"required"`
		ScanLines       int    `yaml:"scan_lines" validate:"min=1"`
	}

	// WidthChoice is either a single width or a pair of candidates
	// disambiguated by display context.
	WidthChoice struct {
		Width    int `yaml:"width,omitempty"`
		Normal   int `yaml:"normal,omitempty"`
		Carousel int `yaml:"carousel,omitempty"`
	}

	ThresholdConfig struct {
		MinWidth      int     `yaml:"min_width"`
		MinResolution float64 `yaml:"min_resolution,omitempty"`
		WidthChoice   `yaml:",inline"`
	}

	BreakpointConfig struct {
		SourceDefault WidthChoice       `yaml:"source_default"`
		ImgDefault    WidthChoice       `yaml:"img_default"`
		Thresholds    []ThresholdConfig `yaml:"thresholds"`
	}

	WatchConfig struct {
		Debounce string `yaml:"debounce" validate:"required"`
	}

	Config struct {
		Version     int                         `yaml:"version" validate:"eq=1"`
		Directories DirectoriesConfig           `yaml:"directories"`
		Patterns    PatternsConfig              `yaml:"patterns"`
		Documents   DocumentsConfig             `yaml:"documents"`
		Images      ImagesConfig                `yaml:"images"`
		Output      OutputConfig                `yaml:"output"`
		HTML        HTMLConfig                  `yaml:"html"`
		Sizes       map[string][][]int          `yaml:"sizes"`
		Breakpoints map[string]BreakpointConfig `yaml:"breakpoints"`
		Watch       WatchConfig                 `yaml:"watch"`
		Logging     LoggingConfig               `yaml:"logging"`
		Reporting   ReporterConfig              `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field names above, regular expressions contain
	// characters template engine should never see
	ImagePatternFieldName TemplateFieldName = "image"
	CodePatternFieldName  TemplateFieldName = "code"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(ImagePatternFieldName)),
	gencfg.WithDoNotExpandField(string(CodePatternFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
//
// NOTE: size and breakpoint tables are maps, values from the file are added to
// (or replace per code) the default entries.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
