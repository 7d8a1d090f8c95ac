package domain

// EditState tracks the pending copy of a dataset between editor change
// events. Pending starts as the server-loaded dataset and is replaced
// wholesale on each valid edit; Disabled blocks submission until the
// editor reports a valid edit.
type EditState struct {
	Disabled bool
	Pending  Dataset
}

// NewEditState returns the initial state for a freshly loaded dataset.
// Submission starts disabled until the editor reports validity.
func NewEditState(loaded Dataset) EditState {
	return EditState{Disabled: true, Pending: loaded}
}

// Apply folds one editor change event into the state. An invalid edit
// disables submission and leaves the last valid pending value untouched,
// so a stale invalid edit can never be submitted.
func (s EditState) Apply(valid bool, edited Dataset) EditState {
	if !valid {
		s.Disabled = true
		return s
	}
	return EditState{Disabled: false, Pending: edited}
}
