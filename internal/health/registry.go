// Package health reports whether the external collaborators a run depends
// on (tools, credentials, endpoints) are present.
package health

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"slices"
)

// Status represents the availability of an external collaborator.
type Status string

const (
	StatusAvailable    Status = "available"
	StatusMissing      Status = "missing"
	StatusUnconfigured Status = "unconfigured"
)

// Info holds the current state of one collaborator.
type Info struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   Status `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Probe inspects a collaborator. A non-nil error is reported as detail.
type Probe func(ctx context.Context) (Status, error)

// Check holds static metadata for a collaborator. Optional collaborators
// degrade a run instead of failing it.
type Check struct {
	Category string
	Optional bool
	Probe    Probe
}

// Registry is a fixed set of named checks.
type Registry struct {
	checks map[string]Check
}

func NewRegistry(checks map[string]Check) *Registry {
	return &Registry{checks: checks}
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.checks))
	for k := range r.checks {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// StatusAll probes every collaborator in name order.
func (r *Registry) StatusAll(ctx context.Context) []Info {
	names := r.Names()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		c := r.checks[name]
		status, err := c.Probe(ctx)
		info := Info{Name: name, Category: c.Category, Status: status, Optional: c.Optional}
		if err != nil {
			info.Detail = err.Error()
		}
		out = append(out, info)
	}
	return out
}

// Ready reports whether every required collaborator is available.
func Ready(infos []Info) bool {
	for _, i := range infos {
		if !i.Optional && i.Status != StatusAvailable {
			return false
		}
	}
	return true
}

// Executable resolves name on PATH or as a file path.
func Executable(name string) Probe {
	return func(context.Context) (Status, error) {
		if name == "" {
			return StatusUnconfigured, nil
		}
		if _, err := exec.LookPath(name); err != nil {
			return StatusMissing, err
		}
		return StatusAvailable, nil
	}
}

// Files requires every path to exist as a regular file.
func Files(paths ...string) Probe {
	return func(context.Context) (Status, error) {
		for _, p := range paths {
			if p == "" {
				return StatusUnconfigured, nil
			}
		}
		for _, p := range paths {
			fi, err := os.Stat(p)
			if err != nil {
				return StatusMissing, err
			}
			if fi.IsDir() {
				return StatusMissing, errors.New(p + " is a directory")
			}
		}
		return StatusAvailable, nil
	}
}

// Configured reports whether a secret or setting has a value. The value
// itself is never reported.
func Configured(value string) Probe {
	return func(context.Context) (Status, error) {
		if value == "" {
			return StatusUnconfigured, nil
		}
		return StatusAvailable, nil
	}
}
