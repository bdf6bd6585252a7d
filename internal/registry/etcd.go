package registry

import (
	"github.com/Meesho/BharatMLStack/weaver/pkg/etcd"
	"github.com/rs/zerolog/log"
)

// EtcdProvider reads the same documents the YAML provider does, stored as
// whole YAML values under the app's etcd config tree: /domains/<domain> for
// endpoint configs and the sourceFile paths (without extension) for sources.
type EtcdProvider struct {
	instance etcd.Etcd
}

func NewEtcdProvider(instance etcd.Etcd) *EtcdProvider {
	return &EtcdProvider{instance: instance}
}

func (p *EtcdProvider) LoadDomain(domain string) (*DomainConfig, error) {
	value, err := p.instance.GetValue("/" + domainsDir + "/" + domain)
	if err != nil {
		log.Warn().Err(err).Str("domain", domain).Msg("domain config not found in etcd")
		return nil, nil
	}
	return parseDomainConfig(domain, []byte(value))
}

func (p *EtcdProvider) ListDomains() ([]string, error) {
	tree, err := p.instance.GetTree("/" + domainsDir)
	if err != nil {
		return nil, err
	}
	domains := make([]string, 0, len(tree))
	for key := range tree {
		domains = append(domains, key)
	}
	return domains, nil
}

func (p *EtcdProvider) LoadSources(sourceType string) (map[string]*SourceConfig, error) {
	path := "/" + trimYamlExtension(sourceFile(sourceType))
	value, err := p.instance.GetValue(path)
	if err != nil {
		log.Warn().Err(err).Str("sourceType", sourceType).Msg("source configs not found in etcd")
		return nil, nil
	}
	return parseSourceConfigs(sourceType, []byte(value))
}

func trimYamlExtension(path string) string {
	return path[:len(path)-len(yamlExtension)]
}
