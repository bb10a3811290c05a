package core

// District is a geographic grouping of members.
type District struct {
	ID   int64
	Name string
}

// Tribute is the clan grouping of members.
type Tribute struct {
	ID   int64
	Name string
}
