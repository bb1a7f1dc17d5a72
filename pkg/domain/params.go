package domain

// VariableType is the input widget type of a processing variable.
type VariableType string

const (
	VarTextInput VariableType = "text-input"
	VarParagraph VariableType = "paragraph"
	VarNumber    VariableType = "number"
	VarSelect    VariableType = "select"
	VarCheckbox  VariableType = "checkbox"
	VarFile      VariableType = "file"
	VarFileList  VariableType = "file-list"
)

// Variable declares one processing input of a datasource node.
type Variable struct {
	Variable       string       `json:"variable" mapstructure:"variable"`
	Label          string       `json:"label" mapstructure:"label"`
	Type           VariableType `json:"type" mapstructure:"type"`
	Required       bool         `json:"required" mapstructure:"required"`
	MaxLength      int          `json:"max_length,omitempty" mapstructure:"max_length"`
	Options        []string     `json:"options,omitempty" mapstructure:"options"`
	Default        any          `json:"default_value,omitempty" mapstructure:"default_value"`
	BelongToNodeID string       `json:"belong_to_node_id,omitempty" mapstructure:"belong_to_node_id"`
}

// ProcessingParams are the variables required to process a datasource node.
type ProcessingParams struct {
	Variables []Variable `json:"variables"`
}
