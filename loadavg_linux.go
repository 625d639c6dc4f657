//go:build linux

package smartfs

import "golang.org/x/sys/unix"

// linuxSILoadShift is the fixed-point scale the Linux kernel uses for
// Sysinfo's Loads array (1 << SI_LOAD_SHIFT, SI_LOAD_SHIFT == 16).
const linuxSILoadShift = 16

// loadAverage1m samples the 1-minute system load average via Sysinfo,
// per spec.md §4.3. Grounded on golang.org/x/sys/unix usage across the
// retrieved pack (gvisor's host fsimpl, slotcache's syscall-level I/O) —
// see DESIGN.md.
func loadAverage1m() float64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return float64(info.Loads[0]) / float64(uint64(1)<<linuxSILoadShift)
}
