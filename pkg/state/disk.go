package state

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type DiskUsage struct {
	Total uint64
	Free  uint64
}

func (d DiskUsage) UsedPct() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Total-d.Free) / float64(d.Total) * 100
}

// DiskUsageAt reports the filesystem holding path.
func DiskUsageAt(path string) (DiskUsage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return DiskUsage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	return DiskUsage{
		Total: stat.Blocks * uint64(stat.Bsize),
		Free:  stat.Bavail * uint64(stat.Bsize),
	}, nil
}
