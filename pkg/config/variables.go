package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var variableRe = regexp.MustCompile(`^(.+?)=(.+)$`)

// LoadVariables parses a flag value that is either a .json/.yaml/.yml file,
// an inline JSON object, or a "k1=v1,k2=v2" list.
func LoadVariables(value string) (map[string]interface{}, error) {
	switch strings.ToLower(filepath.Ext(value)) {
	case ".json", ".yaml", ".yml":
		return loadVariablesFile(value)
	}

	out := map[string]interface{}{}
	if err := json.Unmarshal([]byte(value), &out); err == nil {
		return out, nil
	}
	out = map[string]interface{}{}
	for _, kv := range strings.Split(value, ",") {
		m := variableRe.FindStringSubmatch(kv)
		if m == nil {
			return nil, fmt.Errorf("malformed variable: %s", kv)
		}
		out[m[1]] = m[2]
	}
	return out, nil
}

func loadVariablesFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &out)
	} else {
		err = yaml.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return out, nil
}

// Decode converts loosely typed variables (from LoadVariables) into out via JSON.
func Decode(vars interface{}, out interface{}) error {
	data, err := json.Marshal(vars)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
