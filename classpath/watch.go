package classpath

import (
	"github.com/apex/log"
	"github.com/fsnotify/fsnotify"
)

// StaleEvent reports that a watched container's backing file changed.
type StaleEvent struct {
	Location string
}

// Watcher turns filesystem notifications on the containers' backing
// files into staleness marks and events. A mapped container whose file
// is rewritten no longer reflects what is on disk; embedders decide
// whether to reopen.
type Watcher struct {
	w   *fsnotify.Watcher
	evC chan StaleEvent
	erC chan error
}

// Watch starts watching every entry whose location names a watchable
// file. Entries whose locations are synthetic labels are skipped.
func (cp *ClassPath) Watch() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	cw := &Watcher{w: w, evC: make(chan StaleEvent, 16), erC: make(chan error, 1)}
	byLocation := make(map[string]*Entry, len(cp.entries))
	for _, e := range cp.entries {
		loc := e.Dex.Location()
		if err := w.Add(loc); err != nil {
			log.WithField("location", loc).WithError(err).Debug("classpath entry not watchable")
			continue
		}
		byLocation[loc] = e
	}
	go cw.loop(byLocation)
	return cw, nil
}

func (cw *Watcher) loop(byLocation map[string]*Entry) {
	for {
		select {
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			e, known := byLocation[ev.Name]
			if !known {
				continue
			}
			e.markStale()
			select {
			case cw.evC <- StaleEvent{Location: ev.Name}:
			default:
				// Event channel full; the stale flag still sticks.
			}
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			cw.erC <- err
		}
	}
}

// Events returns the staleness event channel.
func (cw *Watcher) Events() <-chan StaleEvent { return cw.evC }

// Errors returns the watcher's error channel.
func (cw *Watcher) Errors() <-chan error { return cw.erC }

// Close stops watching.
func (cw *Watcher) Close() error { return cw.w.Close() }
