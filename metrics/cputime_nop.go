//go:build windows || js
// +build windows js

package metrics

// ProcessCPUTime returns 0 on Windows as there is no system call to resolve
// the actual process' CPU time.
func ProcessCPUTime() int64 {
	return 0
}
