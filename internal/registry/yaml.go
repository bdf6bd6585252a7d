package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	domainsDir      = "domains"
	integrationsDir = "integrations"
	yamlExtension   = ".yaml"
)

// YAMLProvider reads registry documents from a config directory laid out as
// domains/<domain>.yaml plus one sources file per integration type.
type YAMLProvider struct {
	configDir string
}

func NewYAMLProvider(configDir string) *YAMLProvider {
	return &YAMLProvider{configDir: configDir}
}

func (p *YAMLProvider) LoadDomain(domain string) (*DomainConfig, error) {
	path := filepath.Join(p.configDir, domainsDir, domain+yamlExtension)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("domain", domain).Str("path", path).Msg("domain config file not found")
			return nil, nil
		}
		return nil, err
	}
	return parseDomainConfig(domain, data)
}

func (p *YAMLProvider) ListDomains() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(p.configDir, domainsDir, "*"+yamlExtension))
	if err != nil {
		return nil, err
	}
	domains := make([]string, 0, len(matches))
	for _, match := range matches {
		domains = append(domains, strings.TrimSuffix(filepath.Base(match), yamlExtension))
	}
	return domains, nil
}

func (p *YAMLProvider) LoadSources(sourceType string) (map[string]*SourceConfig, error) {
	path := filepath.Join(p.configDir, filepath.FromSlash(sourceFile(sourceType)))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("sourceType", sourceType).Str("path", path).Msg("source config file not found")
			return nil, nil
		}
		return nil, err
	}
	return parseSourceConfigs(sourceType, data)
}

// sourceFile maps a source type onto its config file, relative to the config
// dir. Database sources keep their historic top-level file; everything else
// lives under integrations/.
func sourceFile(sourceType string) string {
	switch sourceType {
	case SourceTypeDatabase:
		return "database" + yamlExtension
	case SourceTypeAPI:
		return integrationsDir + "/api_sources" + yamlExtension
	case SourceTypeFeatureStore:
		return integrationsDir + "/feast_config" + yamlExtension
	default:
		return integrationsDir + "/" + sourceType + yamlExtension
	}
}

func parseDomainConfig(domain string, data []byte) (*DomainConfig, error) {
	var config DomainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errs.NewConfigurationError(fmt.Sprintf("failed to parse domain config %s: %v", domain, err))
	}
	return &config, nil
}

func parseSourceConfigs(sourceType string, data []byte) (map[string]*SourceConfig, error) {
	var doc struct {
		Sources map[string]*SourceConfig `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.NewConfigurationError(fmt.Sprintf("failed to parse %s source configs: %v", sourceType, err))
	}
	for id, source := range doc.Sources {
		if source == nil {
			delete(doc.Sources, id)
			continue
		}
		source.SourceID = id
		if source.Type == "" {
			source.Type = sourceType
		}
		for modelID, model := range source.Models {
			if model.ID == "" {
				model.ID = modelID
				source.Models[modelID] = model
			}
		}
	}
	return doc.Sources, nil
}
