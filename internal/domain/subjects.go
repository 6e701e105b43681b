package domain

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Topic is one section heading practised under a subject.
type Topic struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subject groups the papers of one exam that share a subject label.
type Subject struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ExamID   string  `json:"examId"`
	ExamName string  `json:"examName"`
	Category string  `json:"category"`
	Topics   []Topic `json:"topics"`
}

// SubjectSection is one section of an active paper, as read from a catalog.
type SubjectSection struct {
	ExamID      string
	ExamName    string
	Category    string
	Subject     string
	SectionID   string
	SectionName string
}

// CustomQuiz is a learner's saved practice-quiz configuration.
type CustomQuiz struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	QuestionCount   int       `json:"questionCount"`
	DurationMinutes int       `json:"duration"`
	SubjectIDs      []string  `json:"subjectIds"`
	TopicIDs        []string  `json:"topicIds"`
	CreatedAt       time.Time `json:"createdAt"`
}

// SubjectID is exam id plus the slugged subject label, stable across papers.
func SubjectID(examID, subject string) string {
	return examID + ":" + slug(subject)
}

// GroupSubjects folds paper sections into subjects sorted by name, then exam.
// Sections without a subject label are skipped; topics are deduplicated by name.
func GroupSubjects(sections []SubjectSection) []Subject {
	byID := make(map[string]*Subject)
	seen := make(map[string]bool)
	for _, sec := range sections {
		name := strings.TrimSpace(sec.Subject)
		if name == "" {
			continue
		}
		id := SubjectID(sec.ExamID, name)
		subj, ok := byID[id]
		if !ok {
			subj = &Subject{ID: id, Name: name, ExamID: sec.ExamID, ExamName: sec.ExamName, Category: sec.Category, Topics: []Topic{}}
			byID[id] = subj
		}
		topicName := strings.TrimSpace(sec.SectionName)
		if topicName == "" {
			topicName = sec.SectionID
		}
		topicID := id + "/" + slug(topicName)
		if topicName == "" || seen[topicID] {
			continue
		}
		seen[topicID] = true
		subj.Topics = append(subj.Topics, Topic{ID: topicID, Name: topicName})
	}

	out := make([]Subject, 0, len(byID))
	for _, subj := range byID {
		sort.Slice(subj.Topics, func(i, j int) bool { return subj.Topics[i].Name < subj.Topics[j].Name })
		out = append(out, *subj)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ExamID < out[j].ExamID
	})
	return out
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
