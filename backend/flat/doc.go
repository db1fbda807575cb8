// Package flat is the simplest persistent gridstore backend: one raw file
// per variable in a directory, plus the schema.
//
//	store, err := flat.New("/data/run42")
//	defer store.Close()
//	ds, err := gridstore.Open(ctx, "run42", store)
//
// Files hold elements in row-major order and may be shorter than the
// variable; missing elements read as zeros. Only axis 0 can grow, so
// growth appends to the file.
package flat
