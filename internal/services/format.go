package services

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/luckfunc/stockwatch/internal/models"
)

// NoPrice is shown for a price that has not been resolved.
const NoPrice = "-"

// maxSubunitPlaces bounds the digits kept for prices below one.
const maxSubunitPlaces = 8

var one = decimal.NewFromInt(1)

// PriceFormatter renders prices with two decimals and the locale's
// separators. Sub-unit prices keep their own precision so they never
// collapse to zero. Rounding is done on the decimal itself.
type PriceFormatter struct {
	group string
	point string
}

// NewPriceFormatter builds a formatter for a BCP 47 tag. Unknown tags fall
// back to American English.
func NewPriceFormatter(locale string) PriceFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	// Read the separators off a sample rendered by x/text: "1,234,567.5".
	sample := []rune(message.NewPrinter(tag).Sprint(number.Decimal(1234567.5, number.Scale(1))))
	f := PriceFormatter{group: ",", point: "."}
	if len(sample) >= 3 {
		f.point = string(sample[len(sample)-2])
		f.group = ""
		if !unicode.IsDigit(sample[1]) {
			f.group = string(sample[1])
		}
	}
	return f
}

// Format renders p, or NoPrice when it is unresolved.
func (f PriceFormatter) Format(p decimal.NullDecimal) string {
	if !p.Valid {
		return NoPrice
	}
	d := p.Decimal
	places := int32(2)
	if d.Abs().LessThan(one) {
		if _, frac, ok := strings.Cut(d.String(), "."); ok && len(frac) > int(places) {
			places = int32(min(len(frac), maxSubunitPlaces))
		}
	}

	text := d.StringFixed(places)
	sign := ""
	if strings.HasPrefix(text, "-") {
		sign, text = "-", text[1:]
	}
	whole, frac, _ := strings.Cut(text, ".")
	return sign + groupDigits(whole, f.group) + f.point + frac
}

// groupDigits inserts sep between groups of three digits.
func groupDigits(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatTable lays rows out as an aligned text table.
func FormatTable(rows []models.Stock, f PriceFormatter) string {
	if len(rows) == 0 {
		return "No stocks to show."
	}
	var buf bytes.Buffer
	writer := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tCompany Name\tCurrent Price")
	for _, stock := range rows {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", stock.Symbol, stock.CompanyName, f.Format(stock.CurrentPrice))
	}
	_ = writer.Flush()
	return strings.TrimRight(buf.String(), "\n")
}

// FormatStock renders a single quote line.
func FormatStock(stock models.Stock, f PriceFormatter) string {
	return fmt.Sprintf("%s (%s)\nCurrent price: %s", stock.CompanyName, stock.Symbol, f.Format(stock.CurrentPrice))
}

// AddedMessage and friends are the success texts shown after a change.
func AddedMessage(symbol string) string {
	return symbol + " added to your watchlist!"
}

func AlreadyWatchedMessage(symbol string) string {
	return symbol + " is already on your watchlist."
}

func RemovedMessage(symbol string) string {
	return symbol + " deleted from your watchlist!"
}
