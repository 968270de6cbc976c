// Package orchestrator maps release targets to named workflows and fans
// dispatches out with per-item failure isolation.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/dukex/shiphook/pkg/models"
	"github.com/dukex/shiphook/pkg/protocol"
)

// targetWorkflows pairs a target with its workflow descriptors. Tables are
// ordered slices so the fan-out order stays deterministic.
type targetWorkflows struct {
	target    models.ReleaseTarget
	workflows []models.Workflow
}

// fullWorkflowTable drives the published path. The first workflow of each
// entry is that target's canonical required workflow.
var fullWorkflowTable = []targetWorkflows{
	{models.TargetMobile, []models.Workflow{
		{Name: "build-all-platforms", Inputs: map[string]string{"platforms": "ios,android"}},
		{Name: "deploy-staging", Inputs: map[string]string{"environment": "staging"}},
	}},
	{models.TargetDesktop, []models.Workflow{
		{Name: "build-all-os", Inputs: map[string]string{"os": "windows,macos,linux"}},
		{Name: "package-all-formats", Inputs: map[string]string{"formats": "dmg,msi,deb,rpm"}},
	}},
	{models.TargetCloud, []models.Workflow{
		{Name: "deploy-production", Inputs: map[string]string{"environment": "production"}},
		{Name: "update-infrastructure", Inputs: map[string]string{"apply": "true"}},
	}},
	{models.TargetSDK, []models.Workflow{
		{Name: "build-package", Inputs: map[string]string{"registries": "npm,pypi"}},
		{Name: "publish-latest", Inputs: map[string]string{"dist_tag": "latest"}},
	}},
	{models.TargetGeneral, []models.Workflow{
		{Name: "general-release", Inputs: map[string]string{}},
	}},
}

// prereleaseWorkflowTable drives the reduced prerelease path. Targets absent
// here contribute nothing.
var prereleaseWorkflowTable = []targetWorkflows{
	{models.TargetMobile, []models.Workflow{
		{Name: "build-beta", Inputs: map[string]string{"track": "beta"}},
	}},
	{models.TargetDesktop, []models.Workflow{
		{Name: "build-preview", Inputs: map[string]string{"channel": "preview"}},
	}},
	{models.TargetCloud, []models.Workflow{
		{Name: "deploy-staging", Inputs: map[string]string{"environment": "staging"}},
	}},
	{models.TargetSDK, []models.Workflow{
		{Name: "publish-next", Inputs: map[string]string{"dist_tag": "next"}},
	}},
}

// DispatchResult records one attempted workflow dispatch and its outcome,
// so partial success across the set is assertable rather than log-only.
type DispatchResult struct {
	Workflow models.Workflow
	Err      error
}

// Orchestrator dispatches target workflows through an external execution
// system.
type Orchestrator struct {
	dispatcher protocol.WorkflowDispatcher
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator using the given dispatcher.
func NewOrchestrator(dispatcher protocol.WorkflowDispatcher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		dispatcher: dispatcher,
		logger:     logger.With("module", "orchestrator"),
	}
}

// TriggerWorkflows dispatches the full workflow set for every target in the
// metadata. Workflows are de-duplicated by name (first occurrence kept) and
// each dispatch is attempted independently: one failure never stops the
// remaining dispatches. Partial success is an expected outcome, not an
// orchestrator error.
func (o *Orchestrator) TriggerWorkflows(ctx context.Context, metadata *models.ReleaseMetadata, repo models.RepositoryRef) []DispatchResult {
	return o.dispatchAll(ctx, collectWorkflows(fullWorkflowTable, metadata), metadata, repo)
}

// TriggerPrereleaseWorkflows dispatches the reduced prerelease-only workflow
// set with the same isolation semantics.
func (o *Orchestrator) TriggerPrereleaseWorkflows(ctx context.Context, metadata *models.ReleaseMetadata, repo models.RepositoryRef) []DispatchResult {
	return o.dispatchAll(ctx, collectWorkflows(prereleaseWorkflowTable, metadata), metadata, repo)
}

// ValidateWorkflows checks that each target's canonical required workflow is
// present in the computed set. It returns human-readable warnings instead of
// failing, so configuration drift stays a warning for callers.
func (o *Orchestrator) ValidateWorkflows(metadata *models.ReleaseMetadata) []string {
	computed := make(map[string]struct{})
	for _, wf := range collectWorkflows(fullWorkflowTable, metadata) {
		computed[wf.Name] = struct{}{}
	}

	var problems []string

	for _, entry := range fullWorkflowTable {
		if !metadata.HasTarget(entry.target) || len(entry.workflows) == 0 {
			continue
		}

		required := entry.workflows[0].Name
		if _, ok := computed[required]; !ok {
			problems = append(problems, "target "+string(entry.target)+" is missing required workflow "+required)
		}
	}

	return problems
}

func (o *Orchestrator) dispatchAll(ctx context.Context, workflows []models.Workflow, metadata *models.ReleaseMetadata, repo models.RepositoryRef) []DispatchResult {
	runtimeInputs := map[string]string{
		"version":    metadata.Version,
		"tag":        metadata.Tag,
		"prerelease": boolInput(metadata.Prerelease),
	}

	results := make([]DispatchResult, 0, len(workflows))

	for _, wf := range workflows {
		wf = wf.WithInputs(runtimeInputs)

		err := o.dispatcher.Dispatch(ctx, repo, wf)
		if err != nil {
			o.logger.Error("Workflow dispatch failed",
				"workflow", wf.Name,
				"repository", repo.FullName,
				"error", err)
		} else {
			o.logger.Info("Workflow dispatched",
				"workflow", wf.Name,
				"repository", repo.FullName,
				"version", metadata.Version)
		}

		results = append(results, DispatchResult{Workflow: wf, Err: err})
	}

	return results
}

// collectWorkflows unions the table rows for the metadata's targets,
// de-duplicating by workflow name with first occurrence kept.
func collectWorkflows(table []targetWorkflows, metadata *models.ReleaseMetadata) []models.Workflow {
	var workflows []models.Workflow

	seen := make(map[string]struct{})

	for _, entry := range table {
		if !metadata.HasTarget(entry.target) {
			continue
		}

		for _, wf := range entry.workflows {
			if _, dup := seen[wf.Name]; dup {
				continue
			}

			seen[wf.Name] = struct{}{}
			workflows = append(workflows, wf)
		}
	}

	return workflows
}

func boolInput(value bool) string {
	if value {
		return "true"
	}

	return "false"
}
