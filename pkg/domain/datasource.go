package domain

// DatasourceKind identifies the category of ingestion origin.
// Values match the "provider_type" field of pipeline datasource nodes.
type DatasourceKind string

const (
	KindLocalFile      DatasourceKind = "local_file"
	KindOnlineDocument DatasourceKind = "online_document"
	KindWebsiteCrawl   DatasourceKind = "website_crawl"
	KindOnlineDrive    DatasourceKind = "online_drive"
)

// NodeTypeDatasource is the declared type of pipeline nodes that can start a run.
const NodeTypeDatasource = "datasource"

// Kinds returns the known datasource kinds in declaration order.
func Kinds() []DatasourceKind {
	return []DatasourceKind{KindLocalFile, KindOnlineDocument, KindWebsiteCrawl, KindOnlineDrive}
}

// Known reports whether k is one of the enumerated kinds.
// Anything else is handled as the residual "unknown" kind.
func (k DatasourceKind) Known() bool {
	switch k {
	case KindLocalFile, KindOnlineDocument, KindWebsiteCrawl, KindOnlineDrive:
		return true
	}
	return false
}

// NodeConfig is the declared data of a pipeline graph node.
// It uses "mapstructure" tags so loose metadata maps decode into it.
type NodeConfig struct {
	Type                     string         `json:"type" yaml:"type" mapstructure:"type"`
	Title                    string         `json:"title" yaml:"title" mapstructure:"title"`
	Desc                     string         `json:"desc,omitempty" yaml:"desc,omitempty" mapstructure:"desc"`
	ProviderType             DatasourceKind `json:"provider_type,omitempty" yaml:"provider_type,omitempty" mapstructure:"provider_type"`
	ProviderName             string         `json:"provider_name,omitempty" yaml:"provider_name,omitempty" mapstructure:"provider_name"`
	DatasourceName           string         `json:"datasource_name,omitempty" yaml:"datasource_name,omitempty" mapstructure:"datasource_name"`
	DatasourceLabel          string         `json:"datasource_label,omitempty" yaml:"datasource_label,omitempty" mapstructure:"datasource_label"`
	PluginID                 string         `json:"plugin_id,omitempty" yaml:"plugin_id,omitempty" mapstructure:"plugin_id"`
	FileExtensions           []string       `json:"fileExtensions,omitempty" yaml:"file_extensions,omitempty" mapstructure:"file_extensions"`
	DatasourceParameters     map[string]any `json:"datasource_parameters,omitempty" yaml:"datasource_parameters,omitempty" mapstructure:"datasource_parameters"`
	DatasourceConfigurations map[string]any `json:"datasource_configurations,omitempty" yaml:"datasource_configurations,omitempty" mapstructure:"datasource_configurations"`
}

// GraphNode is one node of the pipeline graph as reported by a GraphSource.
type GraphNode struct {
	ID   string     `json:"id"`
	Data NodeConfig `json:"data"`
}

// Datasource identifies the selected ingestion node.
// It is replaced wholesale on switch and never partially mutated.
type Datasource struct {
	NodeID   string         `json:"nodeId"`
	Kind     DatasourceKind `json:"kind"`
	NodeData NodeConfig     `json:"nodeData"`
}

// DatasourceOption is a selectable entry derived from the graph.
type DatasourceOption struct {
	Label string     `json:"label"`
	Value string     `json:"value"`
	Data  NodeConfig `json:"data"`
}

// Datasource converts the option into the datasource it selects.
func (o DatasourceOption) Datasource() Datasource {
	return Datasource{
		NodeID:   o.Value,
		Kind:     o.Data.ProviderType,
		NodeData: o.Data,
	}
}
