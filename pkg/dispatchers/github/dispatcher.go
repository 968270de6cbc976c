// Package github adapts the GitHub Actions API as shiphook's workflow
// execution backend and release annotator.
package github

import (
	"context"
	"log/slog"

	"github.com/google/go-github/v74/github"

	"github.com/dukex/shiphook/pkg/models"
)

const defaultRef = "main"

// Dispatcher triggers repository workflow-dispatch events and annotates
// releases. It owns only the API call attempt; execution outcome is the
// execution system's business.
type Dispatcher struct {
	client *github.Client
	ref    string
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher authenticated with the given token.
// An empty ref falls back to the repository default branch name "main".
func NewDispatcher(token, ref string, logger *slog.Logger) *Dispatcher {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return NewDispatcherWithClient(client, ref, logger)
}

// NewDispatcherWithClient creates a dispatcher around an existing GitHub
// client. Used by tests to point at a fake API server.
func NewDispatcherWithClient(client *github.Client, ref string, logger *slog.Logger) *Dispatcher {
	if ref == "" {
		ref = defaultRef
	}

	return &Dispatcher{
		client: client,
		ref:    ref,
		logger: logger.With("module", "github_dispatcher"),
	}
}

// Dispatch creates a workflow_dispatch event for the workflow file named
// after the workflow, forwarding its inputs.
func (d *Dispatcher) Dispatch(ctx context.Context, repo models.RepositoryRef, workflow models.Workflow) error {
	inputs := make(map[string]any, len(workflow.Inputs))
	for k, v := range workflow.Inputs {
		inputs[k] = v
	}

	event := github.CreateWorkflowDispatchEventRequest{
		Ref:    d.ref,
		Inputs: inputs,
	}

	_, err := d.client.Actions.CreateWorkflowDispatchEventByFileName(
		ctx, repo.Owner, repo.Name, workflow.Name+".yml", event)
	if err != nil {
		return err
	}

	d.logger.Debug("Workflow dispatch accepted",
		"workflow", workflow.Name,
		"repository", repo.FullName,
		"ref", d.ref)

	return nil
}

// Annotate appends a processing note to the release body. Best-effort by
// contract: callers log failures and continue.
func (d *Dispatcher) Annotate(ctx context.Context, repo models.RepositoryRef, releaseID int64, note string) error {
	release, _, err := d.client.Repositories.GetRelease(ctx, repo.Owner, repo.Name, releaseID)
	if err != nil {
		return err
	}

	body := release.GetBody()
	if body != "" {
		body += "\n\n"
	}

	body += "> " + note

	_, _, err = d.client.Repositories.EditRelease(ctx, repo.Owner, repo.Name, releaseID, &github.RepositoryRelease{
		Body: github.Ptr(body),
	})

	return err
}
