package professor

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Account statuses as written by the administrative process. Anything
// other than Active disqualifies a session; comparison is
// case-insensitive.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
	StatusResigned = "Resigned"
	StatusRetired  = "Retired"
)

// SubjectSection maps one subject to the sections a professor handles
// for it.
type SubjectSection struct {
	Subject  string   `json:"subject"`
	Sections []string `json:"sections"`
}

// Professor is the identity document. Created by the administrative
// process; this service mutates profile, password and avatar fields.
type Professor struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Email           string           `json:"email"`
	DepartmentID    string           `json:"departmentId"`
	DepartmentName  string           `json:"departmentName"`
	PasswordHash    string           `json:"passwordHash"`
	ImageURL        string           `json:"imageUrl,omitempty"`
	HandledSection  string           `json:"handledSection,omitempty"`
	Subject         string           `json:"subject,omitempty"`
	Status          string           `json:"status"`
	SubjectSections []SubjectSection `json:"subjectSections"`
	Subjects        []string         `json:"subjects"`
}

// SetPassword hashes and stores the password. Plaintext never persists.
func (p *Professor) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares the stored hash against a candidate password.
func (p *Professor) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(pwd))
}

// EffectiveStatus treats an empty status as Active, as the
// administrative data sometimes omits the field.
func (p *Professor) EffectiveStatus() string {
	if p.Status == "" {
		return StatusActive
	}
	return p.Status
}

// IsActive reports whether the account may hold a session.
func (p *Professor) IsActive() bool {
	switch strings.ToLower(p.EffectiveStatus()) {
	case "inactive", "resigned", "retired":
		return false
	}
	return true
}

// IsComplete reports whether the identity document has every field a
// session requires.
func (p *Professor) IsComplete() bool {
	return p.Name != "" && p.Email != "" && p.DepartmentID != "" && p.DepartmentName != ""
}

// HandledSections flattens the sections the professor teaches, falling
// back to the legacy single-section field.
func (p *Professor) HandledSections() []string {
	var sections []string
	seen := make(map[string]bool)
	for _, ss := range p.SubjectSections {
		for _, s := range ss.Sections {
			if !seen[s] {
				seen[s] = true
				sections = append(sections, s)
			}
		}
	}
	if len(sections) == 0 && p.HandledSection != "" {
		sections = append(sections, p.HandledSection)
	}
	return sections
}

// HandledSubjects lists the subjects from the subject-section mapping.
func (p *Professor) HandledSubjects() []string {
	var subjects []string
	seen := make(map[string]bool)
	for _, ss := range p.SubjectSections {
		if ss.Subject != "" && !seen[ss.Subject] {
			seen[ss.Subject] = true
			subjects = append(subjects, ss.Subject)
		}
	}
	return subjects
}
