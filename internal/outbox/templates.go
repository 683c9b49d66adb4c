package outbox

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// Email bodies are small text templates compiled with strict missing-key
// semantics so a renamed field fails loudly instead of mailing "<no value>".

const customerConfirmationText = `Hi {{.FirstName}},

We received your booking request for {{.ServiceName}} on {{.StartsAt}}.
We have asked our coaches to confirm the slot and will email you as soon as
one of them accepts.

Thank you!`

const coachInviteText = `Hi {{.CoachName}},

A customer requested {{.ServiceName}} on {{.StartsAt}}.

Accept:  {{.AcceptURL}}
Decline: {{.DeclineURL}}

The first coach to accept gets the appointment.`

const staffFallbackText = `A booking request for {{.ServiceName}} on {{.StartsAt}} has no eligible coach.

Customer: {{.CustomerName}} <{{.CustomerEmail}}>
Request:  {{.RequestID}}

Please follow up manually.`

const giftCardReceiptText = `Thank you for your purchase!

Your gift card code is {{.Code}} with a balance of {{.Amount}}.
Redeem it at checkout when booking any of our services.`

// CustomerConfirmationData feeds the intake confirmation email.
type CustomerConfirmationData struct {
	FirstName   string
	ServiceName string
	StartsAt    string
}

// CoachInviteData feeds the decision invite email.
type CoachInviteData struct {
	CoachName   string
	ServiceName string
	StartsAt    string
	AcceptURL   string
	DeclineURL  string
}

// StaffFallbackData feeds the no-candidates staff notice.
type StaffFallbackData struct {
	ServiceName   string
	StartsAt      string
	CustomerName  string
	CustomerEmail string
	RequestID     string
}

// GiftCardReceiptData feeds the gift-card purchase receipt.
type GiftCardReceiptData struct {
	Code   string
	Amount string
}

// FormatSlot renders a window start the way emails show it.
func FormatSlot(t time.Time) string {
	return t.Format("Monday, January 2 2006 at 15:04")
}

// RenderCustomerConfirmation renders the intake confirmation body.
func RenderCustomerConfirmation(data CustomerConfirmationData) (string, error) {
	return render("customer_confirmation", customerConfirmationText, data)
}

// RenderCoachInvite renders the coach decision invite body.
func RenderCoachInvite(data CoachInviteData) (string, error) {
	return render("coach_invite", coachInviteText, data)
}

// RenderStaffFallback renders the staff fallback notice body.
func RenderStaffFallback(data StaffFallbackData) (string, error) {
	return render("staff_fallback", staffFallbackText, data)
}

// RenderGiftCardReceipt renders the gift-card purchase receipt body.
func RenderGiftCardReceipt(data GiftCardReceiptData) (string, error) {
	return render("gift_card_receipt", giftCardReceiptText, data)
}

func render(name, tmpl string, data any) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("outbox: parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("outbox: execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
