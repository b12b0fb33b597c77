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

	MarkupConfig struct {
		HighlightStyle   string `yaml:"highlight_style" validate:"required"`
		HighlightClasses bool   `yaml:"highlight_classes"`
		TabWidth         int    `yaml:"tab_width" validate:"min=1,max=16"`
		QuizButton       string `yaml:"quiz_button" validate:"required"`
		Verbose          bool   `yaml:"verbose"`
	}

	ContentConfig struct {
		SanitizeHTML bool `yaml:"sanitize_html"`
	}

	ResourcesConfig struct {
		// extra extension to media type mappings, added to the built-in registry at startup
		Types map[string]string `yaml:"types" validate:"dive,keys,required,excludes=.,endkeys,required"`
	}

	CacheConfig struct {
		Backend   CacheBackend `yaml:"backend" validate:"gte=0"`
		Directory string       `yaml:"directory" validate:"required_unless=Backend 0"`
	}

	WebConfig struct {
		Listen           string      `yaml:"listen" validate:"required,hostname_port"`
		PageTemplatePath string      `yaml:"page_template_path" sanitize:"assure_file_access"`
		StylesheetURI    string      `yaml:"stylesheet_uri"`
		LibraryTitle     string      `yaml:"library_title" validate:"required"`
		Watch            bool        `yaml:"watch"`
		Cache            CacheConfig `yaml:"cache"`
	}

	CoverConfig struct {
		DefaultImagePath string `yaml:"default_image_path" sanitize:"assure_file_access"`
		Width            int    `yaml:"width" validate:"min=200"`
		Height           int    `yaml:"height" validate:"min=300"`
	}

	EpubConfig struct {
		FixZip                bool        `yaml:"fix_zip"`
		PageTemplatePath      string      `yaml:"page_template_path" sanitize:"assure_file_access"`
		StylesheetPath        string      `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		OutputNameTemplate    string      `yaml:"output_name_template" validate:"required"`
		FileNameTransliterate bool        `yaml:"file_name_transliterate"`
		DefaultLanguage       string      `yaml:"default_language" validate:"required,bcp47_language_tag"`
		DefaultAuthor         string      `yaml:"default_author" validate:"required"`
		IBooksDisplayOptions  bool        `yaml:"ibooks_display_options"`
		Cover                 CoverConfig `yaml:"cover"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Markup    MarkupConfig    `yaml:"markup"`
		Content   ContentConfig   `yaml:"content"`
		Resources ResourcesConfig `yaml:"resources"`
		Web       WebConfig       `yaml:"web"`
		Epub      EpubConfig      `yaml:"epub"`
		Logging   LoggingConfig   `yaml:"logging"`
		Reporting ReporterConfig  `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, these are expanded later
	// with book values rather than at load time
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

// UnnamedFile replaces output names having nothing usable left.
const UnnamedFile = "untitled"

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// only fields we defined are allowed, so no yaml.Unmarshal here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
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
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation. Empty path means defaults only.
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
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
