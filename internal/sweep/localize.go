package sweep

import (
	"fmt"
	"time"

	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/constants"
)

type emailCopy struct {
	subjectWithTitle string // takes the reminder title
	subjectPlain     string
	heading          string
	bodyWithTitle    string // takes the reminder title
	bodyPlain        string
	footer           string
}

var emailCopies = map[string]emailCopy{
	constants.LanguageEnglish: {
		subjectWithTitle: "Reminder: %s",
		subjectPlain:     "Your Zolarus reminder",
		heading:          "It's time!",
		bodyWithTitle:    "You asked us to remind you about <strong>%s</strong>.",
		bodyPlain:        "You asked us to remind you about something right now.",
		footer:           "Sent by Zolarus reminders.",
	},
	constants.LanguageFrench: {
		subjectWithTitle: "Rappel : %s",
		subjectPlain:     "Votre rappel Zolarus",
		heading:          "C'est l'heure !",
		bodyWithTitle:    "Vous nous avez demandé de vous rappeler <strong>%s</strong>.",
		bodyPlain:        "Vous nous avez demandé de vous envoyer un rappel maintenant.",
		footer:           "Envoyé par les rappels Zolarus.",
	},
	constants.LanguageSpanish: {
		subjectWithTitle: "Recordatorio: %s",
		subjectPlain:     "Tu recordatorio de Zolarus",
		heading:          "¡Es la hora!",
		bodyWithTitle:    "Nos pediste que te recordáramos <strong>%s</strong>.",
		bodyPlain:        "Nos pediste que te enviáramos un recordatorio ahora.",
		footer:           "Enviado por los recordatorios de Zolarus.",
	},
	constants.LanguagePortuguese: {
		subjectWithTitle: "Lembrete: %s",
		subjectPlain:     "Seu lembrete Zolarus",
		heading:          "Está na hora!",
		bodyWithTitle:    "Você nos pediu para lembrá-lo de <strong>%s</strong>.",
		bodyPlain:        "Você nos pediu para enviar um lembrete agora.",
		footer:           "Enviado pelos lembretes Zolarus.",
	},
}

// RenderEmail produces a localized subject and HTML body for a reminder.
// Unknown or empty languages fall back to English.
func RenderEmail(language, title string, due time.Time) (subject, body string) {
	c, ok := emailCopies[language]
	if !ok {
		c = emailCopies[constants.DefaultLanguage]
	}

	var line string
	if title != "" {
		subject = fmt.Sprintf(c.subjectWithTitle, title)
		line = fmt.Sprintf(c.bodyWithTitle, title)
	} else {
		subject = c.subjectPlain
		line = c.bodyPlain
	}

	body = "<html><body>" +
		"<h2>" + c.heading + "</h2>" +
		"<p>" + line + "</p>" +
		"<p>" + due.Format("Monday, 02 Jan 2006 15:04 MST") + "</p>" +
		"<p><small>" + c.footer + "</small></p>" +
		"</body></html>"
	return subject, body
}
