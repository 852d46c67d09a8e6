package openapi

import "strings"

const (
	defaultVersion     = "3.0.3"
	defaultPath        = "/options/{set}"
	defaultMethod      = "put"
	defaultContentType = "application/json"
)

type generatorConfig struct {
	openAPIVersion string

	title       string
	infoVersion string
	description string

	path        string
	method      string
	operationID string
	summary     string

	contentType string
	// responses maps status codes to descriptions.
	responses map[string]string
	component string
	extensions bool
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: defaultVersion,
		title:          "Option Set",
		infoVersion:    "1.0.0",
		path:           defaultPath,
		method:         defaultMethod,
		contentType:    defaultContentType,
		responses: map[string]string{
			"204": "Options saved",
			"422": "Conversion failed",
		},
		extensions: true,
	}
}

// GeneratorOption configures the OpenAPI generator. Empty arguments keep the
// current value.
type GeneratorOption func(*generatorConfig)

func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		setIfNotEmpty(&cfg.openAPIVersion, version)
	}
}

// WithInfo sets the info block.
func WithInfo(title, version, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		setIfNotEmpty(&cfg.title, title)
		setIfNotEmpty(&cfg.infoVersion, version)
		setIfNotEmpty(&cfg.description, description)
	}
}

// WithOperation sets the save operation. A `{set}` segment in path is
// replaced with the set name; the operationId defaults to `<method>:<path>`.
func WithOperation(path, method, operationID string) GeneratorOption {
	return func(cfg *generatorConfig) {
		setIfNotEmpty(&cfg.path, path)
		setIfNotEmpty(&cfg.method, strings.ToLower(method))
		setIfNotEmpty(&cfg.operationID, operationID)
	}
}

func WithSummary(summary string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.summary = strings.TrimSpace(summary)
	}
}

// WithContentType sets the media type of the request body.
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		setIfNotEmpty(&cfg.contentType, contentType)
	}
}

// WithResponse adds or replaces the response documented for status.
func WithResponse(status, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if status == "" {
			return
		}
		responses := make(map[string]string, len(cfg.responses)+1)
		for code, text := range cfg.responses {
			responses[code] = text
		}
		responses[status] = description
		cfg.responses = responses
	}
}

// WithRootComponent publishes the body schema under components.schemas and
// references it from the operation.
func WithRootComponent(name string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.component = name
	}
}

// WithoutExtensions omits the x-transient, x-rule and x-collection markers.
func WithoutExtensions() GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.extensions = false
	}
}

func setIfNotEmpty(field *string, value string) {
	if value != "" {
		*field = value
	}
}
