package config

import (
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// file mirrors Config in a YAML-friendly shape for on-disk persistence of the
// provider-constraints / feedback-tier settings an operator tunes at
// runtime — the only config surface spec §6 expects to change without a
// redeploy.
type file struct {
	Feedback  FeedbackConfig      `yaml:"feedback"`
	Providers ProviderConstraints `yaml:"providers"`
}

// LoadFile reads feedback-tier and provider-constraint overrides from a YAML
// file and applies them on top of cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f := file{Feedback: c.Feedback}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	next := *c
	next.Feedback = f.Feedback
	if f.Providers != nil {
		next.Providers = f.Providers
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Watcher reloads a Config's feedback/provider sections whenever the backing
// YAML file changes, so an operator can flip a tenant's enterprise tier on
// or add a provider constraint without restarting the process. Reload
// failures are reported on Errors and leave the previous Config untouched.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	cfg     *Config
	Changed chan struct{}
	Errors  chan error
}

// NewWatcher starts watching path for writes and reports each successful
// reload on Changed.
func NewWatcher(path string, cfg *Config) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		watcher: fw,
		path:    path,
		cfg:     cfg,
		Changed: make(chan struct{}, 1),
		Errors:  make(chan error, 1),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.cfg.LoadFile(w.path); err != nil {
				select {
				case w.Errors <- err:
				default:
				}
				continue
			}
			select {
			case w.Changed <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error { return w.watcher.Close() }
