package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetProjectWorkflow(ctx context.Context, projectID string) (*models.Workflow, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetDefaultWorkflow(ctx context.Context, organizationID string) (*models.Workflow, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)

	return args.Error(0)
}

// MockStateRepository is a mock implementation of persistence.StateRepository.
type MockStateRepository struct {
	mock.Mock
}

func (m *MockStateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowState, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowState), args.Error(1)
}

func (m *MockStateRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowState, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowState), args.Error(1)
}

func (m *MockStateRepository) Save(ctx context.Context, state *models.WorkflowState) error {
	args := m.Called(ctx, state)

	return args.Error(0)
}

func (m *MockStateRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockStateRepository) Reorder(ctx context.Context, workflowID string, orderedIDs []string) error {
	args := m.Called(ctx, workflowID, orderedIDs)

	return args.Error(0)
}

// MockTransitionRepository is a mock implementation of persistence.TransitionRepository.
type MockTransitionRepository struct {
	mock.Mock
}

func (m *MockTransitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTransition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowTransition), args.Error(1)
}

func (m *MockTransitionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowTransition, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowTransition), args.Error(1)
}

func (m *MockTransitionRepository) Save(ctx context.Context, transition *models.WorkflowTransition) error {
	args := m.Called(ctx, transition)

	return args.Error(0)
}

func (m *MockTransitionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockRuleRepository is a mock implementation of persistence.RuleRepository.
type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) GetByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.AutomationRule), args.Error(1)
}

func (m *MockRuleRepository) ListByWorkflow(ctx context.Context, workflowID string, activeOnly bool) ([]*models.AutomationRule, error) {
	args := m.Called(ctx, workflowID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AutomationRule), args.Error(1)
}

func (m *MockRuleRepository) ListByTrigger(ctx context.Context, workflowIDs []string, trigger models.TriggerType) ([]*models.AutomationRule, error) {
	args := m.Called(ctx, workflowIDs, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AutomationRule), args.Error(1)
}

func (m *MockRuleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	args := m.Called(ctx, rule)

	return args.Error(0)
}

func (m *MockRuleRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockRuleRepository) IncrementExecution(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)

	return args.Error(0)
}

// MockExecutionLogRepository is a mock implementation of persistence.ExecutionLogRepository.
type MockExecutionLogRepository struct {
	mock.Mock
}

func (m *MockExecutionLogRepository) Append(ctx context.Context, entry *models.ExecutionLogEntry) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockExecutionLogRepository) ListByRule(ctx context.Context, ruleID string, status *models.ExecutionStatus, limit int) ([]*models.ExecutionLogEntry, error) {
	args := m.Called(ctx, ruleID, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionLogEntry), args.Error(1)
}

func (m *MockExecutionLogRepository) ListByTask(ctx context.Context, taskID string, limit int) ([]*models.ExecutionLogEntry, error) {
	args := m.Called(ctx, taskID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionLogEntry), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence that
// returns pre-wired repository mocks.
type MockPersistence struct {
	mock.Mock

	WorkflowRepo     *MockWorkflowRepository
	StateRepo        *MockStateRepository
	TransitionRepo   *MockTransitionRepository
	RuleRepo         *MockRuleRepository
	ExecutionLogRepo *MockExecutionLogRepository
}

// NewMockPersistence creates a MockPersistence with fresh repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		WorkflowRepo:     &MockWorkflowRepository{},
		StateRepo:        &MockStateRepository{},
		TransitionRepo:   &MockTransitionRepository{},
		RuleRepo:         &MockRuleRepository{},
		ExecutionLogRepo: &MockExecutionLogRepository{},
	}
}

func (m *MockPersistence) Workflows() persistence.WorkflowRepository {
	return m.WorkflowRepo
}

func (m *MockPersistence) States() persistence.StateRepository {
	return m.StateRepo
}

func (m *MockPersistence) Transitions() persistence.TransitionRepository {
	return m.TransitionRepo
}

func (m *MockPersistence) Rules() persistence.RuleRepository {
	return m.RuleRepo
}

func (m *MockPersistence) ExecutionLogs() persistence.ExecutionLogRepository {
	return m.ExecutionLogRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
