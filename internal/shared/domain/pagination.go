package domain

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Pagination describe límite y offset.
type Pagination struct {
	Limit  int
	Offset int
}

// Normalize aplica el tamaño por defecto y los topes.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
