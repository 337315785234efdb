package webhook

// mergeRequestEvent is the subset of a GitLab merge-request webhook
// payload this service reads. Everything else in the payload is
// ignored rather than modeled.
type mergeRequestEvent struct {
	ObjectKind string `json:"object_kind"`

	Project struct {
		ID                int    `json:"id"`
		Name              string `json:"name"`
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`

	ObjectAttributes struct {
		IID          int    `json:"iid"`
		Action       string `json:"action"`
		State        string `json:"state"`
		SourceBranch string `json:"source_branch"`
		TargetBranch string `json:"target_branch"`
		LastCommit   struct {
			ID string `json:"id"`
		} `json:"last_commit"`
	} `json:"object_attributes"`
}

// reviewableActions are the MR actions that trigger a review. Other
// actions (approved, merged, closed...) are acknowledged and skipped.
var reviewableActions = map[string]bool{
	"open":   true,
	"reopen": true,
	"update": true,
	"":       true, // some GitLab versions omit action on open
}
