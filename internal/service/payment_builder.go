package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/modaline/store-api/internal/models"
	"github.com/modaline/store-api/internal/utils"
	"github.com/modaline/store-api/pkg/iyzico"
)

// CreatePaymentRequest is the inbound payment request from the order
// subsystem.
type CreatePaymentRequest struct {
	OrderNumber     string            `json:"orderNumber" binding:"required"`
	Amount          float64           `json:"amount" binding:"required"`
	Currency        string            `json:"currency"`
	Card            CardInput         `json:"card" binding:"required"`
	Buyer           BuyerInput        `json:"buyer" binding:"required"`
	ShippingAddress *AddressInput     `json:"shippingAddress"`
	BillingAddress  *AddressInput     `json:"billingAddress"`
	BasketItems     []BasketItemInput `json:"basketItems"`
	Installment     int               `json:"installment"`
	CallbackURL     string            `json:"callbackUrl"`
	UserID          string            `json:"userId"`
	UserAgent       string            `json:"userAgent"`
	IPAddress       string            `json:"ipAddress"`
}

// CardInput carries raw card data from the checkout form.
type CardInput struct {
	HolderName  string `json:"holderName" binding:"required"`
	Number      string `json:"number" binding:"required"`
	ExpireMonth string `json:"expireMonth" binding:"required"`
	ExpireYear  string `json:"expireYear" binding:"required"`
	CVC         string `json:"cvc" binding:"required"`
	SaveCard    bool   `json:"saveCard"`
}

// BuyerInput carries loosely-typed buyer data from the storefront.
type BuyerInput struct {
	ID               string `json:"id"`
	Name             string `json:"name" binding:"required"`
	Surname          string `json:"surname" binding:"required"`
	Email            string `json:"email" binding:"required"`
	IdentityNumber   string `json:"identityNumber"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	City             string `json:"city"`
	Country          string `json:"country"`
	ZipCode          string `json:"zipCode"`
	RegistrationDate string `json:"registrationDate"`
	LastLoginDate    string `json:"lastLoginDate"`
}

// AddressInput is a raw shipping or billing address.
type AddressInput struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode"`
}

// BasketItemInput is one raw basket line.
type BasketItemInput struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// Fallbacks for unusable input. The placeholder phone is the gateway's own
// sandbox number; the placeholder identity number passes the gateway's
// checksum validation.
const (
	placeholderPhone    = "+905350000000"
	placeholderIdentity = "11111111111"
	defaultCountry      = "Turkey"
	defaultCurrency     = "TRY"
	gatewayTimeLayout   = "2006-01-02 15:04:05"
)

// priceTolerance is the reconciliation band: line sums within ±0.01 of the
// authorized amount pass through unchanged.
const priceTolerance = 0.01

// RequestBuilder normalizes buyer/card/basket input into the exact schema the
// gateway expects and reconciles line prices against the authorized total.
type RequestBuilder struct {
	audit  *AuditEmitter
	locale string
}

// NewRequestBuilder constructs a RequestBuilder.
func NewRequestBuilder(audit *AuditEmitter, locale string) *RequestBuilder {
	if locale == "" {
		locale = "tr"
	}
	return &RequestBuilder{audit: audit, locale: locale}
}

// BuildInitRequest assembles the 3DS initialize body. callbackURL may be
// empty for flows without a browser return leg. Rejects with a validation
// error before any network call when the amount is unusable.
func (b *RequestBuilder) BuildInitRequest(conversationID string, req *CreatePaymentRequest, callbackURL string) (*iyzico.InitThreeDSRequest, error) {
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		b.audit.Emit("validation", models.SeverityWarning, conversationID, "initialize",
			map[string]any{"orderNumber": req.OrderNumber, "amount": fmt.Sprint(req.Amount)})
		return nil, utils.ErrInvalidAmount
	}
	if req.Card.Number == "" {
		return nil, utils.ErrMissingCard
	}

	price := b.formatPrice(conversationID, req.Amount)
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	installment := req.Installment
	if installment < 1 {
		installment = 1
	}

	buyer := b.buildBuyer(conversationID, req)
	shipping := b.buildAddress(req.ShippingAddress, &buyer)
	billing := b.buildAddress(req.BillingAddress, &buyer)

	out := &iyzico.InitThreeDSRequest{
		Locale:          b.locale,
		ConversationID:  conversationID,
		Price:           price,
		PaidPrice:       price,
		Installment:     strconv.Itoa(installment),
		PaymentChannel:  "WEB",
		BasketID:        req.OrderNumber,
		PaymentGroup:    "PRODUCT",
		CallbackURL:     callbackURL,
		Currency:        currency,
		PaymentCard:     b.buildCard(&req.Card),
		Buyer:           buyer,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		BasketItems:     b.ReconcileBasket(conversationID, req.BasketItems, req.Amount),
	}
	return out, nil
}

// buildCard normalizes the card block: digits-only PAN, sanitized holder name.
func (b *RequestBuilder) buildCard(card *CardInput) iyzico.PaymentCard {
	registerCard := 0
	if card.SaveCard {
		registerCard = 1
	}
	month := digitsOnly(card.ExpireMonth)
	if len(month) == 1 {
		month = "0" + month
	}
	return iyzico.PaymentCard{
		CardHolderName: SanitizeText(card.HolderName),
		CardNumber:     digitsOnly(card.Number),
		ExpireMonth:    month,
		ExpireYear:     digitsOnly(card.ExpireYear),
		CVC:            digitsOnly(card.CVC),
		RegisterCard:   registerCard,
	}
}

// buildBuyer normalizes the buyer block.
func (b *RequestBuilder) buildBuyer(conversationID string, req *CreatePaymentRequest) iyzico.Buyer {
	buyer := req.Buyer

	phone, ok := NormalizePhone(buyer.Phone)
	if !ok {
		b.audit.Emit("phone_normalization", models.SeverityWarning, conversationID, "initialize",
			map[string]any{"raw": buyer.Phone})
	}

	id := buyer.ID
	if id == "" {
		id = req.UserID
	}
	if id == "" {
		id = "GUEST-" + req.OrderNumber
	}
	identity := digitsOnly(buyer.IdentityNumber)
	if identity == "" {
		identity = placeholderIdentity
	}
	country := buyer.Country
	if country == "" {
		country = defaultCountry
	}
	address := buyer.Address
	if address == "" {
		address = "N/A"
	}
	city := buyer.City
	if city == "" {
		city = "Istanbul"
	}
	now := time.Now().Format(gatewayTimeLayout)
	registration := buyer.RegistrationDate
	if registration == "" {
		registration = now
	}
	lastLogin := buyer.LastLoginDate
	if lastLogin == "" {
		lastLogin = now
	}
	ip := req.IPAddress
	if ip == "" {
		ip = "127.0.0.1"
	}

	return iyzico.Buyer{
		ID:                  id,
		Name:                SanitizeText(buyer.Name),
		Surname:             SanitizeText(buyer.Surname),
		GSMNumber:           phone,
		Email:               buyer.Email,
		IdentityNumber:      identity,
		LastLoginDate:       lastLogin,
		RegistrationDate:    registration,
		RegistrationAddress: SanitizeText(address),
		IP:                  ip,
		City:                SanitizeText(city),
		Country:             country,
		ZipCode:             buyer.ZipCode,
	}
}

// buildAddress maps an address input, falling back to buyer data when the
// block is absent.
func (b *RequestBuilder) buildAddress(in *AddressInput, buyer *iyzico.Buyer) iyzico.Address {
	if in == nil {
		return iyzico.Address{
			ContactName: buyer.Name + " " + buyer.Surname,
			City:        buyer.City,
			Country:     buyer.Country,
			Address:     buyer.RegistrationAddress,
			ZipCode:     buyer.ZipCode,
		}
	}
	country := in.Country
	if country == "" {
		country = defaultCountry
	}
	return iyzico.Address{
		ContactName: SanitizeText(in.ContactName),
		City:        SanitizeText(in.City),
		Country:     country,
		Address:     SanitizeText(in.Address),
		ZipCode:     in.ZipCode,
	}
}

// ReconcileBasket adjusts basket lines so their prices sum to the authorized
// amount:
//   - empty basket: one synthetic line equal to the amount
//   - line sum short of the amount: one synthetic service-fee line for the
//     difference (shipping is free and never itemized)
//   - line sum above the amount: every price scaled by amount/sum
//   - within tolerance: passed through unchanged
func (b *RequestBuilder) ReconcileBasket(conversationID string, items []BasketItemInput, amount float64) []iyzico.BasketItem {
	if len(items) == 0 {
		return []iyzico.BasketItem{{
			ID:        "ORDER-1",
			Name:      "Siparis Tutari",
			Category1: "Genel",
			ItemType:  iyzico.ItemTypePhysical,
			Price:     b.formatPrice(conversationID, amount),
		}}
	}

	sum := 0.0
	for _, item := range items {
		if !math.IsNaN(item.Price) && item.Price > 0 {
			sum += item.Price
		}
	}

	diff := amount - sum
	switch {
	case diff > priceTolerance:
		// Short basket: add one adjustment line sized against the formatted
		// line sum, so per-line rounding cannot reopen the gap.
		out := b.mapBasket(conversationID, items, 1.0)
		adjustment := roundPrice(amount - formattedSum(out))
		out = append(out, iyzico.BasketItem{
			ID:        "ADJ-1",
			Name:      "Hizmet Bedeli",
			Category1: "Hizmet",
			ItemType:  iyzico.ItemTypeVirtual,
			Price:     b.formatPrice(conversationID, adjustment),
		})
		b.audit.Emit("basket_reconciliation", models.SeverityInfo, conversationID, "initialize",
			map[string]any{"mode": "adjustment_line", "difference": b.formatPrice(conversationID, adjustment)})
		return out
	case diff < -priceTolerance:
		// Overfull basket: redistribute proportionally, discarding the
		// unscaled prices.
		scale := amount / sum
		out := b.mapBasket(conversationID, items, scale)
		b.settleRoundingResidual(conversationID, out, amount)
		b.audit.Emit("basket_reconciliation", models.SeverityInfo, conversationID, "initialize",
			map[string]any{"mode": "proportional_scale", "scale": fmt.Sprintf("%.6f", scale)})
		return out
	default:
		return b.mapBasket(conversationID, items, 1.0)
	}
}

// settleRoundingResidual folds the drift left by rounding each scaled line
// independently back into the largest line, so the formatted prices sum to
// the amount exactly.
func (b *RequestBuilder) settleRoundingResidual(conversationID string, items []iyzico.BasketItem, amount float64) {
	sum := 0.0
	largest := 0
	largestVal := -1.0
	for i := range items {
		v, err := strconv.ParseFloat(items[i].Price, 64)
		if err != nil {
			return
		}
		sum += v
		if v > largestVal {
			largestVal = v
			largest = i
		}
	}
	residual := roundPrice(amount - sum)
	if residual == 0 {
		return
	}
	items[largest].Price = b.formatPrice(conversationID, largestVal+residual)
}

// formattedSum sums the already-formatted line prices.
func formattedSum(items []iyzico.BasketItem) float64 {
	sum := 0.0
	for _, item := range items {
		if v, err := strconv.ParseFloat(item.Price, 64); err == nil {
			sum += v
		}
	}
	return sum
}

// roundPrice rounds to 2 decimals, the wire precision.
func roundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}

// mapBasket converts raw lines to wire lines with scaled, formatted prices.
func (b *RequestBuilder) mapBasket(conversationID string, items []BasketItemInput, scale float64) []iyzico.BasketItem {
	out := make([]iyzico.BasketItem, 0, len(items))
	for i, item := range items {
		id := item.ID
		if id == "" {
			id = fmt.Sprintf("ITEM-%d", i+1)
		}
		name := item.Name
		if name == "" {
			name = "Urun"
		}
		category := item.Category
		if category == "" {
			category = "Genel"
		}
		out = append(out, iyzico.BasketItem{
			ID:        id,
			Name:      SanitizeText(name),
			Category1: SanitizeText(category),
			ItemType:  iyzico.ItemTypePhysical,
			Price:     b.formatPrice(conversationID, item.Price*scale),
		})
	}
	return out
}

// formatPrice renders a fixed 2-decimal price string. NaN/negative/infinite
// values are coerced to "0.00" with a warning event.
func (b *RequestBuilder) formatPrice(conversationID string, v float64) string {
	s, ok := FormatPrice(v)
	if !ok {
		b.audit.Emit("price_coercion", models.SeverityWarning, conversationID, "format_price",
			map[string]any{"raw": fmt.Sprint(v)})
	}
	return s
}

// FormatPrice renders v as a fixed 2-decimal string. The second return is
// false when the value was unusable and coerced to "0.00".
func FormatPrice(v float64) (string, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return "0.00", false
	}
	return strconv.FormatFloat(v, 'f', 2, 64), true
}

// NormalizePhone converts a free-form phone number to +90XXXXXXXXXX. The
// second return is false when the input was unparseable and the placeholder
// was used.
func NormalizePhone(raw string) (string, bool) {
	digits := digitsOnly(raw)
	// Drop the trunk zero of domestic notation (0532...).
	digits = strings.TrimPrefix(digits, "0")

	switch {
	case len(digits) == 10:
		return "+90" + digits, true
	case len(digits) == 12 && strings.HasPrefix(digits, "90"):
		return "+" + digits, true
	default:
		return placeholderPhone, false
	}
}

// turkishReplacer transliterates Turkish letters into the ASCII subset the
// gateway accepts and escapes quote/backslash characters.
var turkishReplacer = strings.NewReplacer(
	"ş", "s", "Ş", "S",
	"ı", "i", "İ", "I",
	"ç", "c", "Ç", "C",
	"ğ", "g", "Ğ", "G",
	"ü", "u", "Ü", "U",
	"ö", "o", "Ö", "O",
	`\`, `\\`,
	`"`, `\"`,
)

// SanitizeText makes free-text fields safe for the gateway payload.
func SanitizeText(s string) string {
	return turkishReplacer.Replace(strings.TrimSpace(s))
}

// digitsOnly strips every non-digit rune.
func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
