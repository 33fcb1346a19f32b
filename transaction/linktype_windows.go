//go:build windows

package transaction

import (
	"golang.org/x/sys/windows"
)

// sameFilesystem reports whether a and b live on the same volume, the
// precondition for a hardlink to succeed. Windows hardlinks additionally
// require an NTFS volume; callers fall back to copy on any error here.
func sameFilesystem(a, b string) (bool, error) {
	va, err := volumeOf(a)
	if err != nil {
		return false, err
	}
	vb, err := volumeOf(b)
	if err != nil {
		return false, err
	}
	return va == vb, nil
}

func volumeOf(path string) (string, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, windows.MAX_PATH)
	if err := windows.GetVolumePathName(p, &buf[0], uint32(len(buf))); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf), nil
}

// availableBytes returns the free space on the volume containing dir.
func availableBytes(dir string) (uint64, error) {
	var freeBytes, totalBytes, totalFreeBytes uint64
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(p, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return 0, err
	}
	return freeBytes, nil
}
