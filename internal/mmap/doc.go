// Package mmap maps files read-only for the local backends.
//
//	m, err := mmap.Open("temperature.bin")
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	m.Advise(mmap.AccessSequential)
//	n := m.CopyAt(dst, off) // zero-fills past the end of the file
//
// A Mapping reflects the file as it was when opened. Writers that extend a
// file must reopen the mapping to see the new bytes.
//
// Unix uses mmap(2) and madvise(2); Windows uses MapViewOfFile and ignores
// access hints.
package mmap
