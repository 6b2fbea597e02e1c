package value

// UserData lets the host API attach opaque native data to a Vyse value,
// with an optional prototype for method dispatch and an optional trace
// function so the GC can find any Vyse values the native data itself
// references.
type UserData struct {
	Header
	Proto   *Table
	Data    interface{}
	TraceFn func(mark func(Value))
}

// NewUserData wraps data for exposure to scripts.
func NewUserData(data interface{}) *UserData {
	return &UserData{Header: Header{Kind: KindUserData}, Data: data}
}

func (u *UserData) GCHeader() *Header { return &u.Header }
func (u *UserData) TypeName() string  { return "userdata" }
func (u *UserData) Size() int         { return 48 }

func (u *UserData) Trace(mark func(Value)) {
	if u.Proto != nil {
		mark(u.Proto)
	}
	if u.TraceFn != nil {
		u.TraceFn(mark)
	}
}
