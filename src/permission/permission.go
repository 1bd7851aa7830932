package permission

// Capability reports and requests screen-capture authorisation.
type Capability interface {
	HasPermission() bool
	RequestPermission() bool
}

// Static answers from fixed values. Requested counts RequestPermission
// calls.
type Static struct {
	Granted    bool
	GrantOnAsk bool
	Requested  int
}

func (s *Static) HasPermission() bool { return s.Granted }

func (s *Static) RequestPermission() bool {
	s.Requested++
	if s.GrantOnAsk {
		s.Granted = true
	}
	return s.Granted
}

// Ensure checks c and asks for permission when it is missing.
func Ensure(c Capability) bool {
	if c == nil || c.HasPermission() {
		return true
	}
	return c.RequestPermission()
}
