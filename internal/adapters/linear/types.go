package linear

import (
	"time"

	"github.com/fyrsmithlabs/signald/internal/classify"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   any            `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type viewer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Organization struct {
		Name string `json:"name"`
	} `json:"organization"`
}

type person struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type team struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type labelConnection struct {
	Nodes []struct {
		Name string `json:"name"`
	} `json:"nodes"`
}

// Priority values used by Linear. 0 means no priority.
const (
	priorityUrgent = 1
	priorityHigh   = 2
)

type workflowState struct {
	Type string `json:"type"`
}

type issue struct {
	ID          string          `json:"id"`
	Identifier  string          `json:"identifier"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	URL         string          `json:"url"`
	Priority    int             `json:"priority"`
	DueDate     string          `json:"dueDate"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	State       workflowState   `json:"state"`
	Labels      labelConnection `json:"labels"`
	Team        team            `json:"team"`
	Assignee    person          `json:"assignee"`
}

type issuesData struct {
	Viewer struct {
		Organization struct {
			URLKey string `json:"urlKey"`
		} `json:"organization"`
		AssignedIssues struct {
			Nodes    []issue `json:"nodes"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"assignedIssues"`
	} `json:"viewer"`
}

// classifyTask maps an issue onto the tracker-neutral task. Urgent and high
// priorities become tags so the escalation rule can see them.
func (is issue) classifyTask() classify.Task {
	ct := classify.Task{
		ID:        is.ID,
		Name:      is.Title,
		Notes:     is.Description,
		Completed: is.State.Type == "completed" || is.State.Type == "canceled",
	}
	for _, l := range is.Labels.Nodes {
		ct.Tags = append(ct.Tags, l.Name)
	}
	switch is.Priority {
	case priorityUrgent:
		ct.Tags = append(ct.Tags, "urgent")
	case priorityHigh:
		ct.Tags = append(ct.Tags, "high priority")
	}
	if is.DueDate != "" {
		if d, err := time.Parse(time.DateOnly, is.DueDate); err == nil {
			ct.Due = &d
		}
	}
	return ct
}
