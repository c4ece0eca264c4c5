package snapshot

import "github.com/rkstudio/podcastai/internal/job"

const (
	TypeJobWrite  = "snapshot:write"
	TypeJobRemove = "snapshot:remove"
)

type JobWritePayload struct {
	Record job.Record `json:"record"`
}

type JobRemovePayload struct {
	JobID string `json:"job_id"`
}
