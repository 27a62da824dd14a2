package document

import (
	"regexp"
	"strings"
)

// Label names a résumé section.
type Label string

const (
	LabelExperience     Label = "experience"
	LabelEducation      Label = "education"
	LabelSkills         Label = "skills"
	LabelCertifications Label = "certifications"
	LabelProjects       Label = "projects"
	LabelProfile        Label = "profile"
	LabelOther          Label = "other"
)

// Labels lists every label in heading-match priority order, followed by LabelOther.
var Labels = []Label{
	LabelExperience,
	LabelEducation,
	LabelSkills,
	LabelCertifications,
	LabelProjects,
	LabelProfile,
	LabelOther,
}

// Section is a labeled run of lines. Text is never empty.
type Section struct {
	Label Label  `json:"label"`
	Text  string `json:"text"`
}

type heading struct {
	pattern *regexp.Regexp
	label   Label
}

// First match wins, so order matters: "experiencia" must not fall through to
// a later pattern.
var headings = []heading{
	{regexp.MustCompile(`(?i)^(experiencia|laboral|trayectoria)\b`), LabelExperience},
	{regexp.MustCompile(`(?i)^(educaci[oó]n|estudios|formaci[oó]n)\b`), LabelEducation},
	{regexp.MustCompile(`(?i)^(habilidades|skills|competencias)\b`), LabelSkills},
	{regexp.MustCompile(`(?i)^(certificaciones?|cursos|capacitaci[oó]n)\b`), LabelCertifications},
	{regexp.MustCompile(`(?i)^(proyectos?|portafolio|portfolio)\b`), LabelProjects},
	{regexp.MustCompile(`(?i)^(perfil|resumen|about)\b`), LabelProfile},
}

// HeadingLabel reports the section a trimmed line opens, if any.
func HeadingLabel(line string) (Label, bool) {
	for _, h := range headings {
		if h.pattern.MatchString(line) {
			return h.label, true
		}
	}
	return "", false
}

// Segment splits text into sections in input order. Sections whose text is
// empty after trimming are dropped.
func Segment(text string) []Section {
	var (
		sections []Section
		current  = LabelOther
		buf      []string
	)

	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body != "" {
			sections = append(sections, Section{Label: current, Text: body})
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if label, ok := HeadingLabel(line); ok {
			flush()
			current = label
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return sections
}
