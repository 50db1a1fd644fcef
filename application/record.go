// Package application models the job-application record returned by the
// remote API and renders it as read-only detail sections.
package application

// Record is one job applicant's application and interview status
type Record struct {
	ID                    Value `json:"id"`
	ApplicationID         Value `json:"application_id"`
	Status                Value `json:"status"`
	CreatedAt             Value `json:"created_at"`
	JobApplicationSL      Value `json:"job_application_sl"`
	Sortlisted            Value `json:"sortlisted"`
	SortlistDateFormatted Value `json:"sortlist_date_formatted"`

	User *User `json:"user"`
	Job  *Job  `json:"job"`

	LastCompany    Value `json:"last_company"`
	LastPosition   Value `json:"last_position"`
	ExperienceInfo Value `json:"experience_info"`
	BangladeshiExp Value `json:"bangladeshi_exp"`
	OverseasExp    Value `json:"overseas_exp"`
	CurrentSalary  Value `json:"current_salary"`
	ExpectedSalary Value `json:"expected_salary"`

	Schedule *Schedule `json:"schedule"`

	FtfOne            Value `json:"ftf_one"`
	FtfTwo            Value `json:"ftf_two"`
	OnlineTest        Value `json:"online_test"`
	InterviewPassLink Value `json:"interview_pass_link"`

	InterviewSchedules []InterviewSchedule `json:"interview_schedules"`
}

// User is the candidate
type User struct {
	ID                       Value `json:"id"`
	CandidateImageURL        Value `json:"candidate_image_url"`
	FullName                 Value `json:"full_name"`
	Phone                    Value `json:"phone"`
	Email                    Value `json:"email"`
	Age                      Value `json:"age"`
	Sex                      Value `json:"sex"`
	DobFormatted             Value `json:"dob_formatted"`
	NidNo                    Value `json:"nid_no"`
	Institute                Value `json:"institute"`
	EducationalQualification Value `json:"educational_qualification"`
	PassportURL              Value `json:"passport_url"`
	PassportNo               Value `json:"passport_no"`
	PassportDateOfIssue      Value `json:"passport_date_of_issue"`
	PassportDateOfExpiry     Value `json:"passport_date_of_expiry"`
}

// Job is the vacancy applied for
type Job struct {
	Title                  Value `json:"title"`
	VacancyCode            Value `json:"vacancy_code"`
	TotalVacancy           Value `json:"total_vacancy"`
	BasicSalary            Value `json:"basic_salary"`
	ContractLength         Value `json:"contract_length"`
	Experience             Value `json:"experience"`
	MinAge                 Value `json:"min_age"`
	MaxAge                 Value `json:"max_age"`
	Qualification          Value `json:"qualification"`
	Language               Value `json:"language"`
	InterviewDateFormatted Value `json:"interview_date_formatted"`
	ExpiryDateFormatted    Value `json:"expiry_date_formatted"`
}

// Schedule is the candidate's assignment to the current interview
type Schedule struct {
	ScheduleID Value           `json:"schedule_id"`
	Status     Value           `json:"status"`
	Attendance Value           `json:"attendance"`
	WillCome   Value           `json:"will_come"`
	Score      Value           `json:"score"`
	Schedule   *ScheduleDetail `json:"schedule"`
}

// ScheduleDetail is the interview slot itself
type ScheduleDetail struct {
	ID            Value  `json:"id"`
	DateFormatted Value  `json:"date_formatted"`
	TimeFormatted Value  `json:"time_formatted"`
	Type          Value  `json:"type"`
	ContactNumber Value  `json:"contact_number"`
	Venue         *Venue `json:"venue"`
}

// Venue is where the interview takes place
type Venue struct {
	Name    Value `json:"name"`
	Address Value `json:"address"`
}

// InterviewSchedule is one stage in the applicant's interview history
type InterviewSchedule struct {
	ID                Value    `json:"id"`
	Type              Value    `json:"type"`
	DateFormatted     Value    `json:"date_formatted"`
	TimeFormatted     Value    `json:"time_formatted"`
	ContactNumber     Value    `json:"contact_number"`
	WhatsAppGroupLink Value    `json:"whats_app_group_link"`
	Assigns           []Assign `json:"assigns"`
}

// Assign is the applicant's result for an interview stage
type Assign struct {
	Status     Value `json:"status"`
	Attendance Value `json:"attendance"`
	WillCome   Value `json:"will_come"`
	Score      Value `json:"score"`
}

// FirstAssign returns the first assignment, or nil
func (s InterviewSchedule) FirstAssign() *Assign {
	if len(s.Assigns) == 0 {
		return nil
	}
	return &s.Assigns[0]
}

// ScheduleID returns the id of the interview slot attendance is recorded
// against: the assignment's schedule_id, else the nested slot id
func (r *Record) ScheduleID() (Value, bool) {
	if r == nil || r.Schedule == nil {
		return Null(), false
	}
	if r.Schedule.ScheduleID.Available() {
		return r.Schedule.ScheduleID, true
	}
	if r.Schedule.Schedule != nil && r.Schedule.Schedule.ID.Available() {
		return r.Schedule.Schedule.ID, true
	}
	return Null(), false
}

// Attendance returns the attendance of the current interview assignment
func (r *Record) Attendance() Attendance {
	if r == nil || r.Schedule == nil {
		return Unmarked
	}
	return AttendanceFrom(r.Schedule.Attendance)
}

// UserID returns the candidate id
func (r *Record) UserID() (Value, bool) {
	if r == nil || r.User == nil || !r.User.ID.Available() {
		return Null(), false
	}
	return r.User.ID, true
}

// WithAttendance returns a copy of r with the current assignment's
// attendance set to a. r itself is not modified.
func (r *Record) WithAttendance(a Attendance) *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Schedule != nil {
		s := *r.Schedule
		c.Schedule = &s
		c.Schedule.Attendance = a.Value()
	}
	return &c
}
