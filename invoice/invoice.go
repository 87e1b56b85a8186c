package invoice

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"spicery/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// Renderer builds invoice PDFs. Every invoice carries a QR code with the
// order number signed by secret, so a printed invoice can be verified at
// the counter.
type Renderer struct {
	secret []byte
}

func NewRenderer(secret []byte) *Renderer {
	return &Renderer{secret: secret}
}

// QRPayload returns orderNumber|userId|total|signature.
func (r *Renderer) QRPayload(o *models.Order) string {
	data := fmt.Sprintf("%s|%s|%.2f", o.OrderNumber, o.UserID, o.Total)
	return data + "|" + r.sign(data)
}

// Verify checks a payload produced by QRPayload.
func (r *Renderer) Verify(payload string) bool {
	i := strings.LastIndex(payload, "|")
	if i < 0 {
		return false
	}
	want := r.sign(payload[:i])
	return hmac.Equal([]byte(want), []byte(payload[i+1:]))
}

func (r *Renderer) sign(data string) string {
	h := hmac.New(sha256.New, r.secret)
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Render returns the invoice for o as a PDF document.
func (r *Renderer) Render(o *models.Order) ([]byte, error) {
	if o == nil {
		return nil, errors.New("nil order")
	}

	qrPNG, err := qrcode.Encode(r.QRPayload(o), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("generate qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Invoice")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, "Order: "+o.OrderNumber)
	pdf.Ln(7)
	pdf.Cell(0, 8, "Date: "+o.CreatedAt.Format("2006-01-02 15:04 MST"))
	pdf.Ln(7)
	pdf.Cell(0, 8, "Status: "+string(o.OrderStatus)+" / payment "+string(o.PaymentStatus))
	pdf.Ln(7)
	if o.Address != "" {
		pdf.MultiCell(120, 6, "Ship to: "+o.Address, "", "L", false)
	}
	pdf.Ln(6)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 20, 40, 40, false, imageOpts, 0, "")

	// Line items
	pdf.SetY(70)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(90, 8, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, it := range o.Items {
		pdf.CellFormat(90, 7, it.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, money(it.Price), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, money(it.Price*float64(it.Quantity)), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	summary := []struct {
		label  string
		amount float64
	}{
		{"Subtotal", o.Subtotal},
		{"Discount", -o.Discount},
		{"Tax", o.Tax},
		{"Shipping", o.ShippingCost},
	}
	for _, row := range summary {
		if row.label == "Discount" && o.Discount == 0 {
			continue
		}
		pdf.CellFormat(150, 7, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, money(row.amount), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(150, 8, "Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, money(o.Total), "T", 1, "R", false, 0, "")

	if o.RefundedAmount > 0 {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(150, 7, "Refunded", "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, money(-o.RefundedAmount), "", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
