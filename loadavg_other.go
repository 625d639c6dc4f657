//go:build !linux

package smartfs

// loadAverage1m has no portable equivalent of Linux's Sysinfo outside
// Linux; SmartFS treats the system as unloaded on other platforms, which
// simply means the default codec is always used there (see compress.go).
func loadAverage1m() float64 {
	return 0
}
