package domain

// RunRequest is the payload handed to the run dispatcher.
// It is built once per process request and is not mutated after dispatch.
type RunRequest struct {
	Inputs             map[string]any   `json:"inputs"`
	StartNodeID        string           `json:"start_node_id"`
	DatasourceType     DatasourceKind   `json:"datasource_type"`
	DatasourceInfoList []map[string]any `json:"datasource_info_list"`
	IsPreview          bool             `json:"is_preview"`
}

// Clone returns a deep copy of the request.
func (r RunRequest) Clone() RunRequest {
	out := r
	out.Inputs = CloneMap(r.Inputs)
	if r.DatasourceInfoList != nil {
		out.DatasourceInfoList = make([]map[string]any, len(r.DatasourceInfoList))
		for i, info := range r.DatasourceInfoList {
			out.DatasourceInfoList[i] = CloneMap(info)
		}
	}
	return out
}
