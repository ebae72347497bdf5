package pipeline

// Job is the loosely-typed job descriptor accepted at the ingress boundary.
// It must carry a model_name; workflow and parameters are optional.
type Job map[string]any

// Clone returns a shallow copy of the job
func (j Job) Clone() Job {
	out := make(Job, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}

// String returns the string value stored under key, or "" when absent or not a string
func (j Job) String(key string) string {
	s, _ := j[key].(string)
	return s
}

// Has reports whether key is present
func (j Job) Has(key string) bool {
	_, ok := j[key]
	return ok
}

// Job field names shared across packages
const (
	FieldWorkflow      = "workflow"
	FieldModelName     = "model_name"
	FieldParameters    = "parameters"
	FieldPrompt        = "prompt"
	FieldStartImageURI = "start_image_uri"
	FieldMaskImageURI  = "mask_image_uri"
	FieldOutputs       = "outputs"
	FieldContentType   = "content_type"
)

// Workflow tags recognized by the router
const (
	WorkflowTxt2Audio = "txt2audio"
	WorkflowStitch    = "stitch"
	WorkflowImg2Txt   = "img2txt"
	WorkflowVid2Vid   = "vid2vid"
	WorkflowTxt2Vid   = "txt2vid"
)

// ResultEnvelope is the uniform per-slot output record. Blob and Thumbnail
// are base64 encoded when marshaled to JSON.
type ResultEnvelope struct {
	Blob        []byte `json:"blob"`
	ContentType string `json:"content_type"`
	Thumbnail   []byte `json:"thumbnail"`
	SHA256Hash  string `json:"sha256_hash"`
}

// JobResult is the outcome of one job flow
type JobResult struct {
	RunID   string                    `json:"run_id"`
	Handle  string                    `json:"handle"`
	Results map[string]ResultEnvelope `json:"results"`
	NSFW    bool                      `json:"nsfw"`
}

// ProcessRequest represents a request to run a job
type ProcessRequest struct {
	JobID     string `json:"job_id,omitempty"`
	ContentID string `json:"content_id,omitempty"` // parent content for derived results
	Job       Job    `json:"job"`
}

// ProcessResponse represents the response from submitting a job
type ProcessResponse struct {
	RunID           string `json:"run_id"`
	DedupeSeenCount int    `json:"dedupe_seen_count"`
}

// DerivationType is the simple-content derivation type used for generated results
const DerivationType = "generated"
