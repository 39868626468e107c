package email

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/delivery.html
var deliveryTemplateText string

var deliveryTemplate = template.Must(template.New("delivery").Parse(deliveryTemplateText))

// DeliveryData fills the photo delivery email.
type DeliveryData struct {
	RunnerName   string
	BibNumber    string
	PhotoCount   int
	PurchaseDate time.Time
	DownloadURL  string
}

func DeliverySubject(bib string) string {
	return "Your Race Photos - Bib #" + bib
}

// RenderDelivery renders the HTML body of the photo delivery email.
func RenderDelivery(data DeliveryData) (string, error) {
	var buf bytes.Buffer
	if err := deliveryTemplate.Execute(&buf, struct {
		DeliveryData
		Plural       bool
		PurchaseDate string
	}{
		DeliveryData: data,
		Plural:       data.PhotoCount != 1,
		PurchaseDate: data.PurchaseDate.Format("January 2, 2006"),
	}); err != nil {
		return "", fmt.Errorf("failed to render delivery email: %w", err)
	}
	return buf.String(), nil
}
