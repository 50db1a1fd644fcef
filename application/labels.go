package application

var interviewTypes = map[string]string{
	"ftf_one":         "Face to Face 1",
	"ftf_two":         "Face to Face 2",
	"online_test":     "Online Test",
	"phone_interview": "Phone Interview",
	"final_interview": "Final Interview",
}

var assignStatuses = map[string]string{
	"notified":  "Notified",
	"viewed":    "Viewed",
	"confirmed": "Confirmed",
	"attended":  "Attended",
	"passed":    "Passed",
	"failed":    "Failed",
}

// InterviewTypeLabel returns the display name of an interview type code.
// Unknown codes are returned unchanged.
func InterviewTypeLabel(code string) string {
	if label, ok := interviewTypes[code]; ok {
		return label
	}
	return code
}

// StatusLabel returns the display name of an assignment status
func StatusLabel(status string) string {
	if label, ok := assignStatuses[status]; ok {
		return label
	}
	return status
}

// AttendanceLabel renders an interview-stage attendance mark
func AttendanceLabel(v Value) string {
	switch AttendanceFrom(v) {
	case Present:
		return "✓ Present"
	case Absent:
		return "✗ Absent"
	}
	return "N/A"
}

// WillComeLabel renders a will-come confirmation
func WillComeLabel(v Value) string {
	n, ok := v.Int()
	if !ok {
		return "Not Confirmed"
	}
	if n == 1 {
		return "Yes"
	}
	if n == 0 {
		return "No"
	}
	return "Not Confirmed"
}

// YesNo renders a flag
func YesNo(v Value) string {
	if v.Truthy() {
		return "Yes"
	}
	return "No"
}

func passed(v Value, yes, no string) string {
	if v.Truthy() {
		return "✓ " + yes
	}
	return "✗ " + no
}
