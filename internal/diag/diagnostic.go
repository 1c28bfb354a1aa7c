package diag

// Subject locates a diagnostic: a source type and, optionally, one of its members.
type Subject struct {
	Type   string
	Member string
}

// TypeSubject is a Subject without a member.
func TypeSubject(typeName string) Subject { return Subject{Type: typeName} }

func (s Subject) String() string {
	switch {
	case s.Type == "":
		return "<module>"
	case s.Member == "":
		return s.Type
	}
	return s.Type + "::" + s.Member
}

type Note struct {
	Subject Subject
	Msg     string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Subject  Subject
	Notes    []Note
}

func New(sev Severity, code Code, subject Subject, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Subject:  subject,
		Message:  msg,
	}
}

func NewError(code Code, subject Subject, msg string) Diagnostic {
	return New(SevError, code, subject, msg)
}

func (d Diagnostic) WithNote(s Subject, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Subject: s, Msg: msg})
	return d
}
