package loam

import "github.com/aretw0/pipeprep/pkg/domain"

// NodeMetadata is the frontmatter of a pipeline node document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type NodeMetadata struct {
	ID       string `json:"id" mapstructure:"id"`
	Type     string `json:"type" mapstructure:"type"`
	Title    string `json:"title" mapstructure:"title"`
	Desc     string `json:"desc" mapstructure:"desc"`
	Position int    `json:"position" mapstructure:"position"`

	// Datasource config
	ProviderType             domain.DatasourceKind `json:"provider_type" mapstructure:"provider_type"`
	ProviderName             string                `json:"provider_name" mapstructure:"provider_name"`
	DatasourceName           string                `json:"datasource_name" mapstructure:"datasource_name"`
	DatasourceLabel          string                `json:"datasource_label" mapstructure:"datasource_label"`
	PluginID                 string                `json:"plugin_id" mapstructure:"plugin_id"`
	FileExtensions           []string              `json:"file_extensions" mapstructure:"file_extensions"`
	DatasourceParameters     map[string]any        `json:"datasource_parameters" mapstructure:"datasource_parameters"`
	DatasourceConfigurations map[string]any        `json:"datasource_configurations" mapstructure:"datasource_configurations"`

	// Variables are the processing inputs the node declares.
	// Entries are loose maps decoded into domain.Variable on demand.
	Variables []any `json:"variables" mapstructure:"variables"`
}

func (m NodeMetadata) config() domain.NodeConfig {
	return domain.NodeConfig{
		Type:                     m.Type,
		Title:                    m.Title,
		Desc:                     m.Desc,
		ProviderType:             m.ProviderType,
		ProviderName:             m.ProviderName,
		DatasourceName:           m.DatasourceName,
		DatasourceLabel:          m.DatasourceLabel,
		PluginID:                 m.PluginID,
		FileExtensions:           append([]string(nil), m.FileExtensions...),
		DatasourceParameters:     domain.CloneMap(m.DatasourceParameters),
		DatasourceConfigurations: domain.CloneMap(m.DatasourceConfigurations),
	}
}
