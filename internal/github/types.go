package github

// Webhook payload shapes. Only the fields the relay reads are modelled; JSON
// names follow GitHub's webhook documentation.

type ghUser struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

type ghRepository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// ghEntity covers both issues and pull requests; the fields the relay uses
// are shared.
type ghEntity struct {
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	HTMLURL   string   `json:"html_url"`
	User      ghUser   `json:"user"`
	Assignee  *ghUser  `json:"assignee"`
	Assignees []ghUser `json:"assignees"`
}

type ghComment struct {
	Body     string `json:"body"`
	HTMLURL  string `json:"html_url"`
	User     ghUser `json:"user"`
	CommitID string `json:"commit_id"`
}

// ghPayload is the union of issues, issue_comment, pull_request,
// pull_request_review_comment and commit_comment payloads. Which pointer is
// set decides the subject.
type ghPayload struct {
	Action      string       `json:"action"`
	Issue       *ghEntity    `json:"issue"`
	PullRequest *ghEntity    `json:"pull_request"`
	Comment     *ghComment   `json:"comment"`
	Assignee    *ghUser      `json:"assignee"`
	Repository  ghRepository `json:"repository"`
	Sender      ghUser       `json:"sender"`
}
