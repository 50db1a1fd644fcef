package application

// Attendance is the tri-state interview attendance mark
type Attendance int

const (
	Unmarked Attendance = iota
	Present
	Absent
)

// AttendanceFrom maps the API's 1 / 0 / null
func AttendanceFrom(v Value) Attendance {
	n, ok := v.Int()
	if !ok {
		return Unmarked
	}
	switch n {
	case 1:
		return Present
	case 0:
		return Absent
	}
	return Unmarked
}

// Value returns the API representation
func (a Attendance) Value() Value {
	switch a {
	case Present:
		return V("1")
	case Absent:
		return V("0")
	}
	return Null()
}

func (a Attendance) String() string {
	switch a {
	case Present:
		return "Present"
	case Absent:
		return "Absent"
	}
	return "Not Marked"
}
