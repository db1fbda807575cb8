// Package fs abstracts the file operations of file-backed stores so tests
// can inject faults.
//
// Production code uses fs.Default ([LocalFS]); tests wrap it in a
// [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("var3.bin", fs.Fault{FailAfterBytes: 16})
//	store, _ := flat.New(dir, flat.WithFileSystem(ffs))
//
// Calls take no context: local file operations cannot be interrupted at the
// syscall level. Remote objects go through blobstore, which does.
package fs
