package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// Mail copy is German: the partners are German-speaking training
// providers.
const (
	subjectConfirmationRequestFmt = "Bitte bestätigen: Buchung %s am %s"
	subjectReminder1Fmt           = "Erinnerung: Buchung %s wartet auf Ihre Bestätigung"
	subjectReminder2Fmt           = "Letzte Erinnerung: Buchung %s dringend bestätigen"
)

var bookingMailTemplate = template.Must(template.New("booking").Parse(`<html><body>
<p>Guten Tag {{.PartnerName}},</p>
<p>{{.Intro}}</p>
<ul>
<li>Kurs: {{.Data.CourseName}} ({{.Data.CourseCode}})</li>
<li>Ort: {{.Data.Location}}</li>
<li>Zeitraum: {{.Data.StartDate}} bis {{.Data.EndDate}}</li>
<li>Teilnehmer: {{.Data.Participants}}</li>
</ul>
<p><a href="{{.Data.ConfirmURL}}">Buchung bestätigen</a> &nbsp;|&nbsp; <a href="{{.Data.DeclineURL}}">Buchung ablehnen</a></p>
<p>Vielen Dank,<br>Ihr Partnerportal</p>
</body></html>`))

type bookingMailContext struct {
	PartnerName string
	Intro       string
	Data        BookingMailData
}

func renderBookingMail(intro string, data BookingMailData) (string, error) {
	var buf bytes.Buffer
	err := bookingMailTemplate.Execute(&buf, bookingMailContext{
		PartnerName: data.PartnerName,
		Intro:       intro,
		Data:        data,
	})
	if err != nil {
		return "", fmt.Errorf("render booking mail: %w", err)
	}
	return buf.String(), nil
}

func confirmationRequestMail(data BookingMailData) (subject, body string, err error) {
	subject = fmt.Sprintf(subjectConfirmationRequestFmt, data.CourseName, data.StartDate)
	body, err = renderBookingMail(
		"für die folgende Buchung benötigen wir Ihre Bestätigung:", data)
	return subject, body, err
}

func reminderMail(level int, data BookingMailData) (subject, body string, err error) {
	switch {
	case level <= 1:
		subject = fmt.Sprintf(subjectReminder1Fmt, data.CourseName)
		body, err = renderBookingMail(fmt.Sprintf(
			"die folgende Buchung wartet seit %d Stunden auf Ihre Bestätigung:",
			data.HoursWaiting), data)
	default:
		subject = fmt.Sprintf(subjectReminder2Fmt, data.CourseName)
		body, err = renderBookingMail(fmt.Sprintf(
			"die folgende Buchung wartet seit %d Stunden auf Ihre Bestätigung. Ohne Rückmeldung wird der Vorgang an unser Serviceteam übergeben:",
			data.HoursWaiting), data)
	}
	return subject, body, err
}
