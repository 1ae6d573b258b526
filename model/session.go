package model

// Step 向导步骤
type Step string

const (
	StepUpload Step = "UPLOAD"
	StepEdit   Step = "EDIT"
)

// Operation 编辑器中耗时的操作类型
type Operation string

const (
	OperationNone    Operation = ""
	OperationExport  Operation = "export"
	OperationReplace Operation = "ai_replace"
)

// Phase 编辑器状态
type Phase string

const (
	PhaseUpload     Phase = "upload"
	PhaseIdle       Phase = "idle"
	PhaseProcessing Phase = "processing"
	PhaseError      Phase = "error"
)

// SessionView 会话快照
type SessionView struct {
	ID              string          `json:"id"`
	Step            Step            `json:"step"`
	Phase           Phase           `json:"phase"`
	Operation       Operation       `json:"operation,omitempty"`
	Error           string          `json:"error,omitempty"`
	Image           *ImageInfo      `json:"image,omitempty"`
	Crop            *CropRegion     `json:"crop,omitempty"`
	Zoom            float64         `json:"zoom"`
	Pan             Pan             `json:"pan"`
	Filters         FilterSettings  `json:"filters"`
	BackgroundColor BackgroundColor `json:"background_color"`
}

// Presets 前端控件的取值范围
type Presets struct {
	Colors       []BackgroundColor `json:"colors"`
	MinFilter    int               `json:"min_filter"`
	MaxFilter    int               `json:"max_filter"`
	MinZoom      float64           `json:"min_zoom"`
	MaxZoom      float64           `json:"max_zoom"`
	OutputWidth  int               `json:"output_width"`
	OutputHeight int               `json:"output_height"`
	AcceptTypes  []string          `json:"accept_types"`
}

// SessionResponse 会话接口响应
type SessionResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *SessionView `json:"data,omitempty"`
}

// DataResponse 通用数据响应
type DataResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// ViewRequest 缩放与平移
type ViewRequest struct {
	Zoom float64 `json:"zoom"`
	PanX int     `json:"pan_x"`
	PanY int     `json:"pan_y"`
}

type FiltersRequest struct {
	Brightness int `json:"brightness"`
	Contrast   int `json:"contrast"`
}

type BackgroundRequest struct {
	Color string `json:"color" binding:"required"`
}

type DataURLRequest struct {
	DataURL string `json:"data_url" binding:"required"`
}
