package asana

import (
	"time"

	"github.com/fyrsmithlabs/signald/internal/classify"
)

type workspace struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

type user struct {
	GID        string      `json:"gid"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Workspaces []workspace `json:"workspaces"`
}

type named struct {
	GID   string `json:"gid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type membership struct {
	Project named `json:"project"`
}

// task is an Asana task. DueOn is a calendar date and DueAt a full
// timestamp; at most one is set.
type task struct {
	GID         string       `json:"gid"`
	Name        string       `json:"name"`
	Notes       string       `json:"notes"`
	Completed   bool         `json:"completed"`
	DueOn       string       `json:"due_on"`
	DueAt       *time.Time   `json:"due_at"`
	Tags        []named      `json:"tags"`
	Memberships []membership `json:"memberships"`
	Assignee    named        `json:"assignee"`
	CreatedAt   time.Time    `json:"created_at"`
	ModifiedAt  time.Time    `json:"modified_at"`
}

type taskPage struct {
	Data     []task `json:"data"`
	NextPage *struct {
		Offset string `json:"offset"`
	} `json:"next_page"`
}

func (t task) projectName() string {
	if len(t.Memberships) == 0 {
		return ""
	}
	return t.Memberships[0].Project.Name
}

// classifyTask maps the Asana shape onto the tracker-neutral task. A
// malformed due_on is treated as no due date.
func (t task) classifyTask() classify.Task {
	ct := classify.Task{
		ID:        t.GID,
		Name:      t.Name,
		Notes:     t.Notes,
		Completed: t.Completed,
	}
	for _, tag := range t.Tags {
		ct.Tags = append(ct.Tags, tag.Name)
	}
	if len(t.Memberships) > 0 {
		ct.ProjectID = t.Memberships[0].Project.GID
	}
	switch {
	case t.DueAt != nil:
		due := t.DueAt.UTC()
		ct.Due = &due
		ct.DueHasTime = true
	case t.DueOn != "":
		if d, err := time.Parse(time.DateOnly, t.DueOn); err == nil {
			ct.Due = &d
		}
	}
	return ct
}
