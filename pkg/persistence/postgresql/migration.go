package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				project_id VARCHAR(255),
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				is_system BOOLEAN NOT NULL DEFAULT FALSE,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_organization_id ON workflows(organization_id);
			CREATE INDEX idx_workflows_project_id ON workflows(project_id);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
			CREATE UNIQUE INDEX idx_workflows_org_name ON workflows(organization_id, name)
				WHERE deleted_at IS NULL;

			-- States of a workflow graph
			CREATE TABLE workflow_states (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				name VARCHAR(100) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(20) NOT NULL CHECK (category IN ('todo', 'in_progress', 'done', 'cancelled')),
				color VARCHAR(20) NOT NULL DEFAULT '',
				is_initial BOOLEAN NOT NULL DEFAULT FALSE,
				is_final BOOLEAN NOT NULL DEFAULT FALSE,
				display_order INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (workflow_id, name)
			);

			CREATE INDEX idx_workflow_states_workflow_id ON workflow_states(workflow_id);

			-- Directed edges between states of the same workflow
			CREATE TABLE workflow_transitions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				from_state_id VARCHAR(255) NOT NULL REFERENCES workflow_states(id) ON DELETE CASCADE,
				to_state_id VARCHAR(255) NOT NULL REFERENCES workflow_states(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				conditions JSONB,
				requires_comment BOOLEAN NOT NULL DEFAULT FALSE,
				display_order INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (workflow_id, from_state_id, to_state_id)
			);

			CREATE INDEX idx_workflow_transitions_workflow_id ON workflow_transitions(workflow_id);
			CREATE INDEX idx_workflow_transitions_from_state ON workflow_transitions(from_state_id);

			-- Automation rules
			CREATE TABLE automation_rules (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger_type VARCHAR(50) NOT NULL,
				trigger_config JSONB,
				conditions JSONB,
				actions JSONB NOT NULL DEFAULT '[]',
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				priority INT NOT NULL DEFAULT 0,
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				execution_count BIGINT NOT NULL DEFAULT 0,
				last_executed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_rules_workflow_id ON automation_rules(workflow_id);
			CREATE INDEX idx_automation_rules_trigger_type ON automation_rules(trigger_type);

			-- Append-only rule execution audit log
			CREATE TABLE execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				rule_id VARCHAR(255) NOT NULL DEFAULT '',
				rule_name VARCHAR(255) NOT NULL DEFAULT '',
				workflow_id VARCHAR(255) NOT NULL DEFAULT '',
				organization_id VARCHAR(255) NOT NULL,
				task_id VARCHAR(255) NOT NULL DEFAULT '',
				trigger_type VARCHAR(50) NOT NULL,
				snapshot JSONB,
				conditions_met BOOLEAN NOT NULL DEFAULT FALSE,
				status VARCHAR(30) NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				action_results JSONB,
				error TEXT NOT NULL DEFAULT '',
				depth INT NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				duration_ms BIGINT NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_execution_logs_rule_id ON execution_logs(rule_id);
			CREATE INDEX idx_execution_logs_task_id ON execution_logs(task_id);
			CREATE INDEX idx_execution_logs_status ON execution_logs(status);
			CREATE INDEX idx_execution_logs_started_at ON execution_logs(started_at);
		`,
	}
}
