package main

import (
	"bytes"
	"testing"
)

// runMetagate runs the app in-process with the given arguments and returns
// everything it printed.
func runMetagate(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	if err := app.Run(append([]string{"metagate", "--verbosity", "1"}, args...)); err != nil {
		t.Fatalf("metagate %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

// runMetagateErr runs the app and returns its error.
func runMetagateErr(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	return app.Run(append([]string{"metagate", "--verbosity", "1"}, args...))
}
