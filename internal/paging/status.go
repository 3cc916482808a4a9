package paging

import "fmt"

// Status is the pagination state of one direction. Variants: Initial,
// Loading, Succeeded and Failed.
//
// Transitions: Initial -> Loading -> {Succeeded, Failed}; any completed
// state returns to Loading on the next load in that direction.
type Status interface {
	status()
	fmt.Stringer
}

// Initial is the state before the first load.
type Initial struct {
	HasNext bool
}

// Loading is set while a load in that direction is in flight.
type Loading struct{}

// Succeeded is set after a successful or exhausted load.
type Succeeded struct {
	HasNext bool
}

// Failed is set after a source failure.
type Failed struct {
	Err error
}

func (Initial) status()   {}
func (Loading) status()   {}
func (Succeeded) status() {}
func (Failed) status()    {}

func (s Initial) String() string   { return fmt.Sprintf("initial(has_next=%t)", s.HasNext) }
func (Loading) String() string     { return "loading" }
func (s Succeeded) String() string { return fmt.Sprintf("success(has_next=%t)", s.HasNext) }
func (s Failed) String() string    { return fmt.Sprintf("failure(%v)", s.Err) }

// HasNext reports the has-next flag carried by s. Loading and Failed carry
// none and report false.
func HasNext(s Status) bool {
	switch v := s.(type) {
	case Initial:
		return v.HasNext
	case Succeeded:
		return v.HasNext
	case Loading, Failed:
		return false
	default:
		panic(fmt.Sprintf("paging: unknown status %T", s))
	}
}
