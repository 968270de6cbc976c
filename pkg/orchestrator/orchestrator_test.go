package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shiphook/pkg/models"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingDispatcher captures dispatch calls and fails the workflows listed
// in failOn.
type recordingDispatcher struct {
	dispatched []models.Workflow
	failOn     map[string]error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ models.RepositoryRef, workflow models.Workflow) error {
	d.dispatched = append(d.dispatched, workflow)

	if err, ok := d.failOn[workflow.Name]; ok {
		return err
	}

	return nil
}

func dispatchedNames(workflows []models.Workflow) []string {
	names := make([]string, 0, len(workflows))
	for _, wf := range workflows {
		names = append(names, wf.Name)
	}

	return names
}

func testRepo() models.RepositoryRef {
	return models.RepositoryRef{Owner: "acme", Name: "app", FullName: "acme/app"}
}

func TestTriggerWorkflows_SingleTarget(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	orch := NewOrchestrator(dispatcher, createTestLogger())

	metadata := &models.ReleaseMetadata{
		Type:    models.TargetMobile,
		Targets: []models.ReleaseTarget{models.TargetMobile},
		Version: "1.2.3",
		Tag:     "v1.2.3",
	}

	results := orch.TriggerWorkflows(context.Background(), metadata, testRepo())

	require.Len(t, results, 2)
	assert.Equal(t, []string{"build-all-platforms", "deploy-staging"}, dispatchedNames(dispatcher.dispatched))

	for _, result := range results {
		assert.NoError(t, result.Err)
	}
}

func TestTriggerWorkflows_GeneralTarget(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	orch := NewOrchestrator(dispatcher, createTestLogger())

	metadata := &models.ReleaseMetadata{
		Type:    models.TargetGeneral,
		Targets: []models.ReleaseTarget{models.TargetGeneral},
		Version: "1.0.0",
		Tag:     "v1.0.0",
	}

	results := orch.TriggerWorkflows(context.Background(), metadata, testRepo())

	require.Len(t, results, 1)
	assert.Equal(t, "general-release", results[0].Workflow.Name)
}

func TestTriggerWorkflows_RuntimeInputsMerged(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	orch := NewOrchestrator(dispatcher, createTestLogger())

	metadata := &models.ReleaseMetadata{
		Type:       models.TargetCloud,
		Targets:    []models.ReleaseTarget{models.TargetCloud},
		Version:    "2.0.0",
		Tag:        "v2.0.0-rc.1",
		Prerelease: true,
	}

	orch.TriggerWorkflows(context.Background(), metadata, testRepo())

	require.NotEmpty(t, dispatcher.dispatched)

	first := dispatcher.dispatched[0]
	assert.Equal(t, "deploy-production", first.Name)
	assert.Equal(t, "2.0.0", first.Inputs["version"])
	assert.Equal(t, "v2.0.0-rc.1", first.Inputs["tag"])
	assert.Equal(t, "true", first.Inputs["prerelease"])
	// Static descriptor inputs survive the merge.
	assert.Equal(t, "production", first.Inputs["environment"])
}

func TestTriggerWorkflows_FailureDoesNotStopFanOut(t *testing.T) {
	dispatchErr := errors.New("api unavailable")
	dispatcher := &recordingDispatcher{failOn: map[string]error{"build-all-platforms": dispatchErr}}
	orch := NewOrchestrator(dispatcher, createTestLogger())

	metadata := &models.ReleaseMetadata{
		Type:    models.TargetGeneral,
		Targets: []models.ReleaseTarget{models.TargetMobile, models.TargetCloud},
		Version: "1.0.0",
		Tag:     "v1.0.0+mobile+cloud",
	}

	results := orch.TriggerWorkflows(context.Background(), metadata, testRepo())

	// Mobile's failing build never blocks cloud's workflows.
	assert.Equal(t,
		[]string{"build-all-platforms", "deploy-staging", "deploy-production", "update-infrastructure"},
		dispatchedNames(dispatcher.dispatched))

	require.Len(t, results, 4)
	assert.ErrorIs(t, results[0].Err, dispatchErr)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.NoError(t, results[3].Err)
}

func TestTriggerPrereleaseWorkflows_ReducedSet(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	orch := NewOrchestrator(dispatcher, createTestLogger())

	metadata := &models.ReleaseMetadata{
		Type:       models.TargetMobile,
		Targets:    []models.ReleaseTarget{models.TargetMobile},
		Version:    "2.0.0",
		Tag:        "v2.0.0-beta.1",
		Prerelease: true,
	}

	results := orch.TriggerPrereleaseWorkflows(context.Background(), metadata, testRepo())

	require.Len(t, results, 1)
	assert.Equal(t, "build-beta", results[0].Workflow.Name)
	assert.Equal(t, "beta", results[0].Workflow.Inputs["track"])
}

func TestTriggerPrereleaseWorkflows_GeneralContributesNothing(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	orch := NewOrchestrator(dispatcher, createTestLogger())

	metadata := &models.ReleaseMetadata{
		Type:       models.TargetGeneral,
		Targets:    []models.ReleaseTarget{models.TargetGeneral},
		Version:    "2.0.0",
		Tag:        "v2.0.0-beta.1",
		Prerelease: true,
	}

	results := orch.TriggerPrereleaseWorkflows(context.Background(), metadata, testRepo())

	assert.Empty(t, results)
	assert.Empty(t, dispatcher.dispatched)
}

func TestCollectWorkflows_DeduplicatesByName(t *testing.T) {
	table := []targetWorkflows{
		{models.TargetMobile, []models.Workflow{
			{Name: "shared-build", Inputs: map[string]string{"origin": "mobile"}},
			{Name: "mobile-only"},
		}},
		{models.TargetCloud, []models.Workflow{
			{Name: "shared-build", Inputs: map[string]string{"origin": "cloud"}},
			{Name: "cloud-only"},
		}},
	}

	metadata := &models.ReleaseMetadata{
		Targets: []models.ReleaseTarget{models.TargetMobile, models.TargetCloud},
	}

	workflows := collectWorkflows(table, metadata)

	assert.Equal(t, []string{"shared-build", "mobile-only", "cloud-only"}, dispatchedNames(workflows))
	// First occurrence wins.
	assert.Equal(t, "mobile", workflows[0].Inputs["origin"])
}

func TestValidateWorkflows_CompleteConfiguration(t *testing.T) {
	orch := NewOrchestrator(&recordingDispatcher{}, createTestLogger())

	metadata := &models.ReleaseMetadata{
		Type:    models.TargetGeneral,
		Targets: []models.ReleaseTarget{models.TargetMobile, models.TargetDesktop, models.TargetCloud, models.TargetSDK},
		Version: "1.0.0",
	}

	assert.Empty(t, orch.ValidateWorkflows(metadata))
}
