// Package attendance holds the records exchanged with the attendance backend
// and the small helpers the home and registration screens rely on.
package attendance

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Attendance is one entry of the logged-in user's attendance listing.
type Attendance struct {
	ID          int64  `json:"id"`
	PatientName string `json:"nome_paciente"`
	PatientCPF  string `json:"cpf_paciente"`
	Date        string `json:"data_atendimento"`

	// Extra keeps the fields this package does not model.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = map[string]struct{}{
	"id":               {},
	"nome_paciente":    {},
	"cpf_paciente":     {},
	"data_atendimento": {},
}

func (a *Attendance) UnmarshalJSON(data []byte) error {
	type plain Attendance
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key, value := range all {
		if _, ok := knownFields[key]; ok {
			continue
		}
		if decoded.Extra == nil {
			decoded.Extra = make(map[string]json.RawMessage)
		}
		decoded.Extra[key] = value
	}

	*a = Attendance(decoded)
	return nil
}

func (a Attendance) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+len(knownFields))
	for key, value := range a.Extra {
		out[key] = value
	}
	out["id"] = a.ID
	out["nome_paciente"] = a.PatientName
	out["cpf_paciente"] = a.PatientCPF
	out["data_atendimento"] = a.Date
	return json.Marshal(out)
}

// Lesion describes a clinical finding submitted together with its photos.
type Lesion struct {
	LocationID  int64
	Description string
}

var nonDigits = regexp.MustCompile(`\D`)

// FormatCPF masks an 11-digit CPF as 000.000.000-00. Other inputs come back
// as their digits only.
func FormatCPF(cpf string) string {
	digits := nonDigits.ReplaceAllString(cpf, "")
	if len(digits) != 11 {
		return digits
	}
	return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:11]
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts the date formats the backend emits for data_atendimento.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDayMonth renders a date as DD/MM, or "" when it cannot be parsed.
func FormatDayMonth(value string) string {
	t, ok := ParseDate(value)
	if !ok {
		return ""
	}
	return t.Format("02/01")
}

// Filter keeps attendances whose patient name contains query (case
// insensitive) or whose raw CPF contains it.
func Filter(list []Attendance, query string) []Attendance {
	if query == "" {
		return list
	}
	lowered := strings.ToLower(query)
	out := make([]Attendance, 0, len(list))
	for _, a := range list {
		if strings.Contains(strings.ToLower(a.PatientName), lowered) || strings.Contains(a.PatientCPF, query) {
			out = append(out, a)
		}
	}
	return out
}

// Summary counts attendances for a day and its month.
type Summary struct {
	Day   int `json:"dia"`
	Month int `json:"mes"`
}

// Summarize counts the attendances dated on now's day and month. Matching is
// done on the YYYY-MM-DD prefix of the stored date, as the backend sends it.
func Summarize(list []Attendance, now time.Time) Summary {
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	var s Summary
	for _, a := range list {
		if strings.HasPrefix(a.Date, day) {
			s.Day++
		}
		if strings.HasPrefix(a.Date, month) {
			s.Month++
		}
	}
	return s
}
