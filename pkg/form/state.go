package form

import "sort"

// State is the aggregate projection of the form.
type State struct {
	IsReady            bool `json:"isReady"`
	IsDirty            bool `json:"isDirty"`
	IsValid            bool `json:"isValid"`
	IsValidating       bool `json:"isValidating"`
	IsSubmitting       bool `json:"isSubmitting"`
	IsSubmitted        bool `json:"isSubmitted"`
	IsSubmitSuccessful bool `json:"isSubmitSuccessful"`
	SubmitCount        int  `json:"submitCount"`
}

// project derives the aggregate state from entries, arrays and lifecycle
// flags. IsValid is whatever the last full validation pass recorded.
func project(entries map[string]*entry, arrays map[string]*arrayState, lc lifecycle, ready bool) State {
	dirty := false
	for _, e := range entries {
		if e.dirty {
			dirty = true
			break
		}
	}
	if !dirty {
		for _, arr := range arrays {
			if arr.dirty {
				dirty = true
				break
			}
		}
	}
	return State{
		IsReady:            ready,
		IsDirty:            dirty,
		IsValid:            lc.isValid,
		IsValidating:       lc.validating > 0,
		IsSubmitting:       lc.isSubmitting,
		IsSubmitted:        lc.isSubmitted,
		IsSubmitSuccessful: lc.isSubmitSuccessful,
		SubmitCount:        lc.submitCount,
	}
}

func (f *Form) stateLocked() State {
	return project(f.entries, f.arrays, f.lc, f.ready)
}

// State returns the current aggregate state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

// FieldState returns the projection for one registered field.
func (f *Form) FieldState(path string) (FieldState, error) {
	path = entryKey(path)
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[path]
	if !ok {
		return FieldState{}, unknownField(path)
	}
	return e.state(), nil
}

// Entries returns copies of the registered fields in registration order.
func (f *Form) Entries() []FieldEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FieldEntry, 0, len(f.order))
	for _, key := range f.order {
		if e := f.entries[key]; e != nil {
			out = append(out, e.export())
		}
	}
	return out
}

// Errors returns every attached error, including errors set on paths that
// have no registered field (such as the submit error under "root").
func (f *Form) Errors() FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(FieldErrors)
	for path, fe := range f.extraErrors {
		out[path] = fe
	}
	for _, e := range f.entries {
		if e.err != nil {
			out[e.key] = *e.err
		}
	}
	return out
}

// TouchedFields lists touched paths in sorted order.
func (f *Form) TouchedFields() []string {
	return f.collect(func(e *entry) bool { return e.touched })
}

// DirtyFields lists dirty paths in sorted order.
func (f *Form) DirtyFields() []string {
	return f.collect(func(e *entry) bool { return e.dirty })
}

func (f *Form) collect(match func(*entry) bool) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for key, e := range f.entries {
		if match(e) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
