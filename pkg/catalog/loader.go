// pkg/catalog/loader.go
package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"edgegate/pkg/credentials"
)

// fileSpec is the on-disk overlay format. Fees are keyed by strategy name
// (BYOK, PLATFORM_MANAGED, ...), case-insensitively.
type fileSpec struct {
	ID           string                 `json:"id" yaml:"id"`
	DisplayName  string                 `json:"display_name" yaml:"display_name"`
	AuthorizeURL string                 `json:"authorize_url" yaml:"authorize_url"`
	Scopes       []string               `json:"scopes" yaml:"scopes"`
	Capabilities []string               `json:"capabilities" yaml:"capabilities"`
	ValidExpr    string                 `json:"valid_expr" yaml:"valid_expr"`
	QuotaExpr    string                 `json:"quota_expr" yaml:"quota_expr"`
	ExpiresExpr  string                 `json:"expires_expr" yaml:"expires_expr"`
	Fees         map[string]FeeSchedule `json:"fees" yaml:"fees"`
}

func (s fileSpec) provider() Provider {
	p := Provider{
		ID: s.ID, DisplayName: s.DisplayName, AuthorizeURL: s.AuthorizeURL,
		Scopes: s.Scopes, Capabilities: s.Capabilities,
		ValidExpr: s.ValidExpr, QuotaExpr: s.QuotaExpr, ExpiresExpr: s.ExpiresExpr,
	}
	if len(s.Fees) > 0 {
		p.Fees = map[credentials.Strategy]FeeSchedule{}
		for k, v := range s.Fees {
			strategy, ok := credentials.ParseStrategy(k)
			if !ok {
				continue
			}
			p.Fees[strategy] = v
		}
	}
	return p
}

// loadDir reads every .yaml/.yml/.json file under dir as one provider spec.
func loadDir(dir string) ([]Provider, error) {
	if dir == "" {
		return nil, nil
	}
	out := []Provider{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			return nil
		}

		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var spec fileSpec
		if ext == ".json" {
			if err := json.Unmarshal(b, &spec); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(b, &spec); err != nil {
				return fmt.Errorf("%s: yaml parse: %w", path, err)
			}
		}
		if spec.ID != "" {
			out = append(out, spec.provider())
		}
		return nil
	})
	return out, err
}
