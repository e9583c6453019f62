package api

// Wire field names are upper case to stay compatible with deployed worker agents.

// RegisterResponse is returned once, at registration
type RegisterResponse struct {
	WorkerID string `json:"WORKER_ID"`
	Cookie   string `json:"COOKIE"`
}

// WorkResponse answers get_work
type WorkResponse struct {
	Success bool     `json:"SUCCESS"`
	Cmd     string   `json:"CMD,omitempty"`
	Mode    string   `json:"MODE,omitempty"`
	Args    []string `json:"ARGS,omitempty"`
	Error   string   `json:"ERROR_MSG,omitempty"`
}

// StatusResponse answers keep_alive, close and any failed request
type StatusResponse struct {
	Success bool   `json:"SUCCESS"`
	Error   string `json:"ERROR_MSG,omitempty"`
}

// FlowResponse answers report_flow
type FlowResponse struct {
	Success bool   `json:"SUCCESS"`
	FlowID  string `json:"FLOW_ID,omitempty"`
	Error   string `json:"ERROR_MSG,omitempty"`
}

const (
	ErrMsgWorkerNotFound   = "Failed to find worker with specified ID."
	ErrMsgUnsupportedMode  = "Unsupported mode."
	ErrMsgNoOpenConnection = "No open connection for worker."
	ErrMsgInternal         = "Internal error."
)
