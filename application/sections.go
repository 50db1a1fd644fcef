package application

import "fmt"

// Row is one label/value line of a detail section
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Badge bool   `json:"badge,omitempty"`
}

// Section is one read-only detail view
type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

type sectionBuilder struct {
	title string
	rows  []Row
}

func section(title string) *sectionBuilder {
	return &sectionBuilder{title: title}
}

// add appends a row unless the value is unavailable
func (b *sectionBuilder) add(label string, v Value) *sectionBuilder {
	if v.Available() {
		b.rows = append(b.rows, Row{Label: label, Value: v.String()})
	}
	return b
}

func (b *sectionBuilder) text(label, value string) *sectionBuilder {
	return b.add(label, V(value))
}

func (b *sectionBuilder) badge(label string, v Value) *sectionBuilder {
	if v.Available() {
		b.rows = append(b.rows, Row{Label: label, Value: v.String(), Badge: true})
	}
	return b
}

func (b *sectionBuilder) build() Section {
	rows := b.rows
	if rows == nil {
		rows = []Row{}
	}
	return Section{Title: b.title, Rows: rows}
}

func orNA(v Value) Value {
	return V(v.Or("N/A"))
}

func years(v Value) Value {
	if !v.Available() {
		return Null()
	}
	return V(fmt.Sprintf("%s years", v.String()))
}

// Sections renders the record as the ordered list of detail views.
// Sections whose parent object is absent are omitted, as are rows whose
// value is not available.
func Sections(r *Record) []Section {
	if r == nil {
		return nil
	}

	sections := []Section{applicationSection(r)}

	if r.User != nil {
		sections = append(sections, candidateSection(r.User))
	}
	if r.Job != nil {
		sections = append(sections, jobSection(r.Job))
	}

	sections = append(sections, experienceSection(r))

	if r.Schedule != nil {
		sections = append(sections, scheduleSection(r.Schedule))
	}

	sections = append(sections, progressSection(r))

	if r.InterviewPassLink.Available() {
		sections = append(sections, section("Interview Pass").add("Link", r.InterviewPassLink).build())
	}
	if r.User != nil && r.User.PassportURL.Available() {
		sections = append(sections, passportSection(r.User))
	}
	for _, s := range r.InterviewSchedules {
		sections = append(sections, interviewStageSection(s))
	}

	return sections
}

func applicationSection(r *Record) Section {
	return section("Application Information").
		add("Application ID", r.ApplicationID).
		badge("Status", r.Status).
		add("Applied Date", orNA(r.CreatedAt)).
		add("SL No.", r.JobApplicationSL).
		text("Sortlisted", YesNo(r.Sortlisted)).
		add("Sortlist Date", orNA(r.SortlistDateFormatted)).
		build()
}

func candidateSection(u *User) Section {
	return section("Candidate Information").
		add("Photo", u.CandidateImageURL).
		add("Full Name", u.FullName).
		add("Phone", u.Phone).
		add("Email", u.Email).
		add("Age", u.Age).
		add("Gender", u.Sex).
		add("Date of Birth", u.DobFormatted).
		add("NID No", u.NidNo).
		add("Institute", u.Institute).
		add("Education", u.EducationalQualification).
		build()
}

func jobSection(j *Job) Section {
	return section("Job Information").
		add("Job Title", j.Title).
		add("Vacancy Code", j.VacancyCode).
		add("Total Vacancy", j.TotalVacancy).
		add("Basic Salary", j.BasicSalary).
		add("Contract Length", j.ContractLength).
		add("Experience Required", j.Experience).
		add("Min Age", j.MinAge).
		add("Max Age", j.MaxAge).
		add("Qualification", j.Qualification).
		add("Language", j.Language).
		add("Interview Date", orNA(j.InterviewDateFormatted)).
		add("Expiry Date", orNA(j.ExpiryDateFormatted)).
		build()
}

func experienceSection(r *Record) Section {
	return section("Experience Information").
		add("Last Company", r.LastCompany).
		add("Last Position", r.LastPosition).
		add("Experience Info", r.ExperienceInfo).
		add("Bangladeshi Experience", years(r.BangladeshiExp)).
		add("Overseas Experience", years(r.OverseasExp)).
		add("Current Salary", r.CurrentSalary).
		add("Expected Salary", r.ExpectedSalary).
		build()
}

func scheduleSection(s *Schedule) Section {
	b := section("Interview Schedule").badge("Status", s.Status)

	if d := s.Schedule; d != nil {
		b.add("Date", orNA(d.DateFormatted)).
			add("Time", d.TimeFormatted).
			add("Type", d.Type).
			add("Contact Number", d.ContactNumber)
		if d.Venue != nil {
			b.add("Venue", d.Venue.Name).
				add("Address", d.Venue.Address)
		}
	} else {
		b.text("Date", "N/A")
	}

	return b.text("Attendance", AttendanceFrom(s.Attendance).String()).
		text("Will Come", WillComeLabel(s.WillCome)).
		build()
}

func progressSection(r *Record) Section {
	score := "Not Graded"
	if r.Schedule != nil {
		score = r.Schedule.Score.Or(score)
	}
	return section("Interview Progress").
		text("Face to Face 1", passed(r.FtfOne, "Passed", "Not Passed")).
		text("Face to Face 2", passed(r.FtfTwo, "Passed", "Not Passed")).
		text("Online Test", passed(r.OnlineTest, "Completed", "Not Completed")).
		text("Score", score).
		build()
}

func passportSection(u *User) Section {
	return section("Passport Information").
		add("Passport Photo", u.PassportURL).
		add("Passport No", u.PassportNo).
		add("Passport Issue Date", u.PassportDateOfIssue).
		add("Passport Expiry Date", u.PassportDateOfExpiry).
		build()
}

func interviewStageSection(s InterviewSchedule) Section {
	assign := s.FirstAssign()

	status := "N/A"
	if assign != nil {
		status = StatusLabel(assign.Status.Or("N/A"))
	}

	b := section(InterviewTypeLabel(s.Type.String())).
		badge("Status", V(status)).
		add("Date", orNA(s.DateFormatted)).
		add("Time", orNA(s.TimeFormatted)).
		add("Contact", orNA(s.ContactNumber))

	if assign != nil {
		b.text("Attendance", AttendanceLabel(assign.Attendance)).
			text("Will Come", WillComeLabel(assign.WillCome)).
			text("Score", assign.Score.Or("Not provided yet"))
	}

	return b.add("WhatsApp Group", s.WhatsAppGroupLink).build()
}
