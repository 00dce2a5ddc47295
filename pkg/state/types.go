package state

import "path/filepath"

type Paths struct {
	Root      string
	Store     string
	State     string
	Logs      string
	Identity  string
	Telemetry string
	Tmp       string
}

func PathsFor(root string) Paths {
	statePath := filepath.Join(root, "state")
	return Paths{
		Root:  root,
		Store: filepath.Join(root, "store"),

		State:     statePath,
		Logs:      filepath.Join(statePath, "logs"),
		Identity:  filepath.Join(statePath, "identity"),
		Telemetry: filepath.Join(statePath, "telemetry"),
		Tmp:       filepath.Join(statePath, "tmp"),
	}
}

func StorePath(root string) string    { return PathsFor(root).Store }
func LogsPath(root string) string     { return PathsFor(root).Logs }
func IdentityPath(root string) string { return PathsFor(root).Identity }
