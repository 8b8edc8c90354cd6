package mailgun

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/kevin07696/slot-billing/internal/domain"
)

var receiptTemplate = template.Must(template.New("receipt").Parse(`Hello {{.CompanyName}},

Thank you for your purchase. Your payment has been received.

Receipt number:  {{.ReceiptNumber}}
Date:            {{.PaymentDate.Format "02 Jan 2006 15:04 MST"}}
Item:            {{.SlotQuantity}} {{.SlotType}} slot(s)
Amount paid:     {{.Amount.StringFixed 2}} {{.Currency}}
Transaction ID:  {{.TransactionID}}

The new slots are available on your account now.
`))

func receiptSubject(n domain.PaymentNotification) string {
	return fmt.Sprintf("Payment receipt %s", n.ReceiptNumber)
}

func renderReceipt(n domain.PaymentNotification) (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.String(), nil
}
