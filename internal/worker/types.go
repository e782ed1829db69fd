package worker

// Request describes one task dispatch. The worker receives the task's
// identity and description plus the workspace it must confine its
// changes to.
type Request struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
	Phase       string `json:"phase"`
	WorkDir     string `json:"work_dir"`
}

// Result is what a worker reports back after attempting a task.
type Result struct {
	Success  bool   `json:"success"`
	Evidence string `json:"evidence"`
	Error    string `json:"error,omitempty"`
}

// Config defines the configuration for a worker.
type Config struct {
	Type    string   // "command" or "script"
	Command string   // executable to invoke per task
	Args    []string // extra arguments passed before the request
	WorkDir string   // default working directory when the request has none
}
