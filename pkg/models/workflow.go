package models

// Workflow describes an automation job dispatched to the execution backend.
// Instances are ephemeral dispatch requests, not stored entities.
type Workflow struct {
	Name   string            `json:"name"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

// WithInputs returns a copy of the workflow with extra inputs merged in.
// Static descriptor inputs win over runtime inputs on key collision.
func (w Workflow) WithInputs(extra map[string]string) Workflow {
	merged := make(map[string]string, len(w.Inputs)+len(extra))
	for k, v := range extra {
		merged[k] = v
	}

	for k, v := range w.Inputs {
		merged[k] = v
	}

	return Workflow{Name: w.Name, Inputs: merged}
}
