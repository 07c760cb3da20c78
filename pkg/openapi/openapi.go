package openapi

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var document []byte

// Document returns the API description with info.version set.
func Document(version string) (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(document, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if info, ok := doc["info"].(map[string]interface{}); ok {
		info["version"] = version
	}
	return doc, nil
}
