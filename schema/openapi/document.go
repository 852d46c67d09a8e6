package openapi

import (
	"errors"
	"fmt"
	"strings"
)

// buildDocument wraps the body schema of set in a single-operation document.
func buildDocument(cfg generatorConfig, set string, body map[string]any) (map[string]any, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	document := map[string]any{
		"openapi": cfg.openAPIVersion,
		"info":    cfg.infoSection(),
	}
	if name := sanitizeComponentName(cfg.component); name != "" {
		document["components"] = map[string]any{
			"schemas": map[string]any{name: body},
		}
		body = map[string]any{"$ref": "#/components/schemas/" + name}
	}

	path := strings.ReplaceAll(cfg.path, "{set}", set)
	operation := map[string]any{
		"operationId": cfg.operationName(path),
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				cfg.contentType: map[string]any{"schema": body},
			},
		},
		"responses": cfg.responseSection(),
	}
	if cfg.summary != "" {
		operation["summary"] = cfg.summary
	}
	document["paths"] = map[string]any{
		path: map[string]any{cfg.method: operation},
	}
	return document, nil
}

func (cfg generatorConfig) validate() error {
	var problems []error
	if cfg.openAPIVersion == "" {
		problems = append(problems, errors.New("openapi: version must be set"))
	}
	if cfg.title == "" || cfg.infoVersion == "" {
		problems = append(problems, errors.New("openapi: info title and version must be set"))
	}
	if !strings.HasPrefix(cfg.path, "/") {
		problems = append(problems, fmt.Errorf("openapi: operation path %q must start with /", cfg.path))
	}
	if cfg.method == "" || cfg.contentType == "" {
		problems = append(problems, errors.New("openapi: operation method and content type must be set"))
	}
	return errors.Join(problems...)
}

func (cfg generatorConfig) infoSection() map[string]any {
	info := map[string]any{
		"title":   cfg.title,
		"version": cfg.infoVersion,
	}
	if cfg.description != "" {
		info["description"] = cfg.description
	}
	return info
}

func (cfg generatorConfig) responseSection() map[string]any {
	responses := make(map[string]any, len(cfg.responses))
	for status, description := range cfg.responses {
		responses[status] = map[string]any{"description": description}
	}
	return responses
}

func (cfg generatorConfig) operationName(path string) string {
	if cfg.operationID != "" {
		return cfg.operationID
	}
	return cfg.method + ":" + path
}

// sanitizeComponentName maps name onto the characters allowed in a
// component key.
func sanitizeComponentName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			return r
		}
		return '_'
	}, strings.TrimSpace(name))
}
