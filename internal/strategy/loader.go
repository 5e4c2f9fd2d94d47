package strategy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML or JSON strategy file and returns the definition with raw bytes
// KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Definition, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read strategy file: %w", err)
	}

	def, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, data, err
	}
	return def, data, nil
}

// Parse decodes and validates a definition; ext selects JSON (".json") or YAML
func Parse(data []byte, ext string) (*Definition, error) {
	var def Definition

	if strings.EqualFold(ext, ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("decode strategy json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("decode strategy yaml: %w", err)
		}
	}

	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Hash generates SHA256 hash from a definition (canonical JSON)
// struct 필드 순서로 해시 재현성 보장
func Hash(def *Definition) (string, error) {
	jsonBytes, err := json.Marshal(def)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
