package api

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/safar/monmiam/internal/models"
)

const qrSize = 256

// pickupPayload is the URL staff scan at the counter to open the order.
func pickupPayload(publicURL string, o *models.Order) string {
	return fmt.Sprintf("%s/commandes/%d?numero=%s",
		strings.TrimRight(publicURL, "/"), o.ID, url.QueryEscape(o.OrderNumber))
}

func pickupQRCode(publicURL string, o *models.Order) ([]byte, error) {
	png, err := qrcode.Encode(pickupPayload(publicURL, o), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode pickup QR code: %w", err)
	}
	return png, nil
}

func renderReceipt(publicURL string, o *models.Order) ([]byte, error) {
	qrPNG, err := pickupQRCode(publicURL, o)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	// Core fonts are cp1252; accented labels go through the translator.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr("Mon Miam Miam"))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, tr("Commande "+o.OrderNumber))
	pdf.Ln(6)
	pdf.Cell(0, 7, o.CreatedAt.Format("02/01/2006 15:04"))
	pdf.Ln(6)
	if o.Customer != nil {
		pdf.Cell(0, 7, tr("Client : "+o.Customer.Name))
		pdf.Ln(6)
	}
	pdf.Cell(0, 7, tr("Statut : "+o.Status.Label()))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 7, tr("Article"), "B", 0, "L", false, 0, "")
	pdf.CellFormat(15, 7, tr("Qté"), "B", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Prix", "B", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, item := range o.Items {
		pdf.CellFormat(70, 6, tr(item.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", item.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, item.UnitPrice.StringFixed(0), "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, item.Subtotal.StringFixed(0), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	totals := []struct {
		label string
		value string
	}{
		{"Sous-total", o.Subtotal.StringFixed(0) + " FCFA"},
		{"Frais de livraison", o.DeliveryFee.StringFixed(0) + " FCFA"},
		{"Total", o.TotalAmount.StringFixed(0) + " FCFA"},
		{"Points fidélité", fmt.Sprintf("%d", o.LoyaltyPoints)},
	}
	for _, line := range totals {
		pdf.CellFormat(110, 6, tr(line.label), "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, tr(line.value), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	if o.ServiceType == models.ServiceDelivery {
		pdf.Cell(0, 6, tr(fmt.Sprintf("Livraison : %s (%s) vers %s", o.DeliveryBuilding, o.DeliveryPhone, o.ArrivalTime)))
	} else {
		pdf.Cell(0, 6, tr("À emporter à "+o.ArrivalTime))
	}
	pdf.Ln(8)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 49, pdf.GetY(), 50, 50, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
