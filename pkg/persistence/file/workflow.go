package file

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
)

const workflowsCollection = "workflows"

// WorkflowRepository stores workflow definitions as JSON files.
type WorkflowRepository struct {
	store *store
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := wr.store.read(workflowsCollection, id, &workflow)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, &persistence.RepositoryError{Op: "get workflow", EntityID: id, Err: err}
	}

	if workflow.DeletedAt != nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) ListByOrganization(_ context.Context, organizationID string) ([]*models.Workflow, error) {
	workflows, err := wr.all()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Workflow, 0)

	for _, workflow := range workflows {
		if workflow.OrganizationID == organizationID {
			matched = append(matched, workflow)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Name < matched[j].Name
	})

	return matched, nil
}

func (wr *WorkflowRepository) GetProjectWorkflow(_ context.Context, projectID string) (*models.Workflow, error) {
	workflows, err := wr.all()
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		if workflow.IsActive && workflow.ProjectID != nil && *workflow.ProjectID == projectID {
			return workflow, nil
		}
	}

	return nil, persistence.ErrWorkflowNotFound
}

func (wr *WorkflowRepository) GetDefaultWorkflow(_ context.Context, organizationID string) (*models.Workflow, error) {
	workflows, err := wr.all()
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		if workflow.IsActive && workflow.IsDefault && workflow.OrganizationID == organizationID && workflow.ProjectID == nil {
			return workflow, nil
		}
	}

	return nil, persistence.ErrWorkflowNotFound
}

func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	err := wr.store.write(workflowsCollection, workflow.ID, workflow)
	if err != nil {
		return &persistence.RepositoryError{Op: "save workflow", EntityID: workflow.ID, Err: err}
	}

	return nil
}

func (wr *WorkflowRepository) SoftDelete(_ context.Context, id string, at time.Time) error {
	var workflow models.Workflow

	err := wr.store.read(workflowsCollection, id, &workflow)
	if err != nil {
		if isNotExist(err) {
			return persistence.ErrWorkflowNotFound
		}

		return &persistence.RepositoryError{Op: "soft delete workflow", EntityID: id, Err: err}
	}

	workflow.DeletedAt = &at

	err = wr.store.write(workflowsCollection, id, &workflow)
	if err != nil {
		return &persistence.RepositoryError{Op: "soft delete workflow", EntityID: id, Err: err}
	}

	return nil
}

// all returns every non-deleted workflow.
func (wr *WorkflowRepository) all() ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0)

	err := wr.store.readAll(workflowsCollection, func(data []byte) error {
		var workflow models.Workflow

		err := json.Unmarshal(data, &workflow)
		if err != nil {
			return err
		}

		if workflow.DeletedAt == nil {
			workflows = append(workflows, &workflow)
		}

		return nil
	})
	if err != nil {
		return nil, &persistence.RepositoryError{Op: "list workflows", Err: err}
	}

	return workflows, nil
}
