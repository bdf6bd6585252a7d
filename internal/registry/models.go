package registry

const (
	SourceTypeDatabase     = "database"
	SourceTypeAPI          = "api"
	SourceTypeFeatureStore = "feast"
	SourceTypeModel        = "ml"
	SourceTypeDirect       = "direct"

	EndpointTypeComposite = "composite"
)

// DomainConfig is one domain document: every endpoint the domain exposes,
// keyed by operation name.
type DomainConfig struct {
	Description string                     `yaml:"description" json:"description"`
	Endpoints   map[string]*EndpointConfig `yaml:"endpoints" json:"endpoints"`
}

// EndpointConfig drives one domain+operation pipeline: the ordered data
// sources to execute and how to shape the response.
type EndpointConfig struct {
	DomainID         string           `yaml:"domain_id" json:"domain_id"`
	Description      string           `yaml:"description" json:"description"`
	EndpointType     string           `yaml:"endpoint_type" json:"endpoint_type"`
	DataSources      []DataSourceSpec `yaml:"data_sources" json:"data_sources"`
	ResponseTemplate interface{}      `yaml:"response_template" json:"response_template,omitempty"`
	ResponseMapping  map[string]any   `yaml:"response_mapping" json:"response_mapping,omitempty"`
	PrimarySource    string           `yaml:"primary_source" json:"primary_source,omitempty"`
}

// DataSourceSpec is one step of an endpoint pipeline. Name is the key the
// step's result is stored under; later steps with the same name overwrite.
type DataSourceSpec struct {
	Name      string         `yaml:"name" json:"name"`
	Type      string         `yaml:"type" json:"type"`
	Operation string         `yaml:"operation" json:"operation"`
	SourceID  string         `yaml:"source_id" json:"source_id"`
	Domain    string         `yaml:"domain" json:"domain"`
	Params    map[string]any `yaml:"params" json:"params"`
	Condition string         `yaml:"condition" json:"condition"`
	Transform *TransformSpec `yaml:"transform" json:"transform,omitempty"`
}

type TransformSpec struct {
	Type   string   `yaml:"type" json:"type"`
	Fields []string `yaml:"fields" json:"fields"`
}

// SourceConfig is one entry of an integration file's sources map. Only the
// fields matching the source type are populated: operations for database,
// base_url/headers for api, keyspace/feature_views for feast, models for ml.
type SourceConfig struct {
	SourceID string `yaml:"-" json:"source_id"`
	Type     string `yaml:"type" json:"type"`

	// database
	Operations map[string]OperationConfig `yaml:"operations" json:"operations,omitempty"`

	// api
	BaseURL   string            `yaml:"base_url" json:"base_url,omitempty"`
	Headers   map[string]string `yaml:"headers" json:"headers,omitempty"`
	TimeoutMs int               `yaml:"timeout_ms" json:"timeout_ms,omitempty"`

	// feast
	Keyspace        string                       `yaml:"keyspace" json:"keyspace,omitempty"`
	EntityKey       string                       `yaml:"entity_key" json:"entity_key,omitempty"`
	FeatureViews    map[string]FeatureViewConfig `yaml:"feature_views" json:"feature_views,omitempty"`
	CacheTtlSeconds int                          `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds,omitempty"`

	// ml
	Models map[string]ModelConfig `yaml:"models" json:"models,omitempty"`
}

// OperationConfig is a config-defined database operation: a parameterized
// query and the parameter names it expects, in order.
type OperationConfig struct {
	Query  string   `yaml:"query" json:"query"`
	Params []string `yaml:"params" json:"params"`
}

// FeatureViewConfig maps a feature view onto its backing table and the
// serialized type of each feature column.
type FeatureViewConfig struct {
	Table   string            `yaml:"table" json:"table"`
	Columns map[string]string `yaml:"columns" json:"columns"`
}

// ModelConfig describes one servable model of an ml source. Endpoint is the
// URL for http sources and the request path for managed runtimes.
type ModelConfig struct {
	ID       string            `yaml:"id" json:"id"`
	Endpoint string            `yaml:"endpoint" json:"endpoint"`
	Headers  map[string]string `yaml:"headers" json:"headers,omitempty"`
	Source   ModelSourceConfig `yaml:"source" json:"source"`
}

// ModelSourceConfig tells the lifecycle manager where a model runtime comes
// from. Type is one of http, local_artifact, docker, ecr; the remaining
// fields apply per type.
type ModelSourceConfig struct {
	Type           string            `yaml:"type" json:"type"`
	Path           string            `yaml:"path" json:"path,omitempty"`
	StartupCommand string            `yaml:"startup_command" json:"startup_command,omitempty"`
	Host           string            `yaml:"host" json:"host,omitempty"`
	Port           int               `yaml:"port" json:"port,omitempty"`
	StartupDelay   float64           `yaml:"startup_delay" json:"startup_delay,omitempty"`
	Image          string            `yaml:"image" json:"image,omitempty"`
	Pull           *bool             `yaml:"pull" json:"pull,omitempty"`
	HostPort       int               `yaml:"host_port" json:"host_port,omitempty"`
	ContainerPort  int               `yaml:"container_port" json:"container_port,omitempty"`
	Environment    map[string]string `yaml:"environment" json:"environment,omitempty"`
	Volumes        map[string]string `yaml:"volumes" json:"volumes,omitempty"`
	Repository     string            `yaml:"repository" json:"repository,omitempty"`
	Tag            string            `yaml:"tag" json:"tag,omitempty"`
	Region         string            `yaml:"region" json:"region,omitempty"`
}

// PullEnabled reports whether the image should be pulled before running.
// Unset defaults to true.
func (m *ModelSourceConfig) PullEnabled() bool {
	return m.Pull == nil || *m.Pull
}
