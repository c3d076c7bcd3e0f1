package db

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of a list query. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps user input to valid bounds
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
