package email

import (
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

type Item struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Confirmation is everything the order confirmation mail shows.
type Confirmation struct {
	OrderID      string
	CustomerName string
	Items        []Item
	Shipping     decimal.Decimal
	Total        decimal.Decimal
	AddressLines []string
}

func (c Confirmation) ShortID() string {
	return shortID(c.OrderID)
}

var funcs = template.FuncMap{
	"gbp": func(d decimal.Decimal) string { return "£" + d.StringFixed(2) },
}

var confirmationTemplate = template.Must(template.New("confirmation").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Georgia, 'Times New Roman', serif; line-height: 1.6; color: #2b2b2b; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1c1c1c; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: #e8c39e; margin: 0; font-size: 24px;">Thank you for your order</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Hi {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}},</p>
		<p>We have received your order and will let you know when it is on its way.</p>

		<div style="background: #faf6f1; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">{{.ShortID}}</p>
		</div>

		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #faf6f1;">
					<th style="padding: 12px; text-align: left;">Item</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: right;">Price</th>
					<th style="padding: 12px; text-align: right;">Total</th>
				</tr>
			</thead>
			<tbody>
			{{- range .Items}}
				<tr>
					<td style="padding: 12px; border-bottom: 1px solid #eee;">{{.Name}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{gbp .UnitPrice}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{gbp .LineTotal}}</td>
				</tr>
			{{- end}}
			</tbody>
			<tfoot>
				<tr>
					<td colspan="3" style="padding: 12px; text-align: right;">Shipping</td>
					<td style="padding: 12px; text-align: right;">{{gbp .Shipping}}</td>
				</tr>
				<tr>
					<td colspan="3" style="padding: 12px; text-align: right; font-weight: bold;">Total</td>
					<td style="padding: 12px; text-align: right; font-weight: bold;">{{gbp .Total}}</td>
				</tr>
			</tfoot>
		</table>

		{{- if .AddressLines}}
		<h2 style="font-size: 16px;">Delivering to</h2>
		<p>{{range $i, $line := .AddressLines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
		{{- end}}

		<p style="color: #666; font-size: 14px;">Jenny's Hair &amp; Wigs</p>
	</div>
</body>
</html>
`))

func BuildOrderConfirmationBody(c Confirmation) (string, error) {
	var b strings.Builder
	if err := confirmationTemplate.Execute(&b, c); err != nil {
		return "", err
	}
	return b.String(), nil
}
