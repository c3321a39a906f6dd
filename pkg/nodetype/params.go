package nodetype

// Params is the parameter record of one node. The concrete type is fixed by
// the node's NodeType; NodeType() returns that tag.
type Params interface {
	NodeType() NodeType
}

type SourceParams struct{}

type OutputParams struct{}

type BlurParams struct {
	Size int `json:"size"`
}

type DeepFryParams struct {
	Contrast   float64 `json:"contrast"`
	Brightness int     `json:"brightness"`
	Saturation float64 `json:"saturation"`
	Sharpen    bool    `json:"sharpen"`
	Levels     int     `json:"levels"`
}

func (SourceParams) NodeType() NodeType  { return Source }
func (OutputParams) NodeType() NodeType  { return Output }
func (BlurParams) NodeType() NodeType    { return Blur }
func (DeepFryParams) NodeType() NodeType { return DeepFry }
