package form

import (
	"sort"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
)

// EventKind names what changed.
type EventKind string

const (
	EventRegister   EventKind = "register"
	EventUnregister EventKind = "unregister"
	EventChange     EventKind = "change"
	EventBlur       EventKind = "blur"
	EventValue      EventKind = "value"
	EventDisabled   EventKind = "disabled"
	EventValidating EventKind = "validating"
	EventValidate   EventKind = "validate"
	EventError      EventKind = "error"
	EventArray      EventKind = "array"
	EventReset      EventKind = "reset"
	EventSubmit     EventKind = "submit"
	EventReady      EventKind = "ready"
	EventLoadFailed EventKind = "loadFailed"
)

// Event is published after every state change. Seq increases monotonically
// so observers can discard events delivered out of order by concurrent
// writers.
type Event struct {
	Seq   uint64
	Kind  EventKind
	Path  string
	State State
}

// Observer receives events. It runs on the goroutine that made the change,
// after the form lock is released, so it may call back into the form.
type Observer func(Event)

// Subscribe registers an observer and returns a function that removes it.
func (f *Form) Subscribe(observer Observer) func() {
	if observer == nil {
		return func() {}
	}
	f.mu.Lock()
	f.nextObserver++
	id := f.nextObserver
	f.observers[id] = observer
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.observers, id)
		f.mu.Unlock()
	}
}

// Watch calls fn with the current values whenever a value under one of
// paths changes. With no paths every value change is reported and fn
// receives the full tree.
func (f *Form) Watch(fn func(values map[string]any), paths ...string) (func(), error) {
	watched := make([]fieldpath.Path, 0, len(paths))
	for _, raw := range paths {
		p, err := fieldpath.Parse(raw)
		if err != nil {
			return nil, &InvalidPathError{Path: raw, Err: err}
		}
		watched = append(watched, p)
	}

	return f.Subscribe(func(ev Event) {
		switch ev.Kind {
		case EventChange, EventValue, EventArray, EventReset, EventReady, EventRegister, EventUnregister:
		default:
			return
		}
		if !watchMatches(watched, ev.Path) {
			return
		}
		values, err := f.GetValues(paths...)
		if err != nil {
			return
		}
		fn(values)
	}), nil
}

func watchMatches(watched []fieldpath.Path, changed string) bool {
	if len(watched) == 0 || changed == "" {
		return true
	}
	p, err := fieldpath.Parse(changed)
	if err != nil {
		return false
	}
	for _, w := range watched {
		if p.HasPrefix(w) || w.HasPrefix(p) {
			return true
		}
	}
	return false
}

func (f *Form) emitLocked(kind EventKind, path string) Event {
	f.seq++
	return Event{Seq: f.seq, Kind: kind, Path: path, State: f.stateLocked()}
}

func (f *Form) dispatch(events ...Event) {
	if len(events) == 0 {
		return
	}
	f.mu.Lock()
	ids := make([]uint64, 0, len(f.observers))
	for id := range f.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, f.observers[id])
	}
	f.mu.Unlock()

	for _, ev := range events {
		for _, observer := range observers {
			observer(ev)
		}
	}
}
