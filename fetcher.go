package gridstore

import "context"

// Unlimited is the length that defines a growable dimension. Its current
// length starts at zero and grows with writes or SetDimLen.
const Unlimited int64 = -1

// Dim describes a dimension.
type Dim struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Len       int64  `json:"len"`
	Unlimited bool   `json:"unlimited,omitempty"`
}

// Var describes a variable. Shape and DimNames reflect the dimension
// lengths and names at the time the value was taken.
type Var struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Dims     []int   `json:"dims"`
	ElemSize int     `json:"elem_size"`
	Chunk    []int64 `json:"chunk,omitempty"`

	DimNames []string `json:"-"`
	Shape    []int64  `json:"-"`

	// Unlimited reports that axis 0 lies on the unlimited dimension.
	Unlimited bool `json:"-"`
}

// Rank returns the number of axes.
func (v Var) Rank() int {
	return len(v.Dims)
}

// Schema is the persisted description of a dataset.
type Schema struct {
	Dims []Dim `json:"dims"`
	Vars []Var `json:"vars"`

	// NextVar is the id the next variable gets. Ids of deleted variables
	// are never handed out again.
	NextVar int `json:"next_var,omitempty"`
}

// FetchRequest is one cache-miss unit: the selection Slab of variable Var.
// Slab is normalized: its Stride is never nil and it lies inside Var.Shape.
type FetchRequest struct {
	Var  Var
	Slab Hyperslab
}

// Fetcher materializes the bytes of a selection. The result holds the
// selected elements packed in row-major selection order, exactly
// count·elemSize bytes, and belongs to the caller once returned.
//
// Fetch is called with the dataset lock held. The context carries the lock,
// so a Fetcher may call back into the same Dataset with it.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) ([]byte, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, req FetchRequest) ([]byte, error)

// Fetch implements Fetcher.
func (f FetchFunc) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	return f(ctx, req)
}

// WriteRequest carries the packed bytes of a selection to store. Var.Shape
// already includes any growth of the unlimited axis the write causes.
type WriteRequest struct {
	Var  Var
	Slab Hyperslab
	Data []byte
}

// Writer is implemented by backends that can store data. A Dataset whose
// Fetcher does not implement Writer is read-only.
type Writer interface {
	Write(ctx context.Context, req WriteRequest) error
}

// Catalog is implemented by backends that persist the schema. Open loads
// it, every schema change saves it, and DeleteVar lets the backend drop the
// variable's data.
type Catalog interface {
	// LoadSchema returns the stored schema, or nil for a new dataset.
	LoadSchema(ctx context.Context) (*Schema, error)
	SaveSchema(ctx context.Context, s *Schema) error
	DropVar(ctx context.Context, v Var) error
}
