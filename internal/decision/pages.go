package decision

import (
	"html/template"
	"net/http"
)

// Terminal pages shown to a coach who followed a decision link. Stale or
// reused links land on a friendly page, never an error status page.

var pageTemplate = template.Must(template.New("decision_page").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: sans-serif; max-width: 40rem; margin: 4rem auto; padding: 0 1rem; color: #222; }
    h1 { font-size: 1.4rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <p>{{.Message}}</p>
</body>
</html>
`))

type pageData struct {
	Title   string
	Message string
}

var outcomePages = map[Outcome]pageData{
	OutcomeWon: {
		Title:   "Appointment confirmed",
		Message: "The booking is yours. The customer has been notified and the appointment is on your calendar.",
	},
	OutcomeAlreadyResolved: {
		Title:   "Request already handled",
		Message: "Another coach got there first, or the request was already closed. No changes were made.",
	},
	OutcomeTokenUnknown: {
		Title:   "Link no longer valid",
		Message: "This decision link has already been used or the request was resolved. Nothing to do here.",
	},
	OutcomeSlotGone: {
		Title:   "Slot no longer available",
		Message: "Your calendar now has a conflicting appointment in this time window, so the request could not be accepted.",
	},
	OutcomeDeclined: {
		Title:   "Request declined",
		Message: "Thanks for letting us know. The other coaches can still pick up this booking.",
	},
	OutcomeExpired: {
		Title:   "Request expired",
		Message: "This booking request has passed its decision window and is now closed.",
	},
}

func renderOutcomePage(w http.ResponseWriter, outcome Outcome) {
	data, ok := outcomePages[outcome]
	if !ok {
		data = outcomePages[OutcomeTokenUnknown]
	}
	status := http.StatusOK
	if outcome == OutcomeTokenUnknown {
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pageTemplate.Execute(w, data)
}
