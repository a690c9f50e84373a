package service

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaline/store-api/internal/models"
	"github.com/modaline/store-api/internal/utils"
	"github.com/modaline/store-api/pkg/iyzico"
)

// fakeAuditStore collects audit writes in memory.
type fakeAuditStore struct {
	mu      sync.Mutex
	records []models.TransactionRecord
	events  []models.DebugEvent
}

func (f *fakeAuditStore) CreateTransactionRecord(rec *models.TransactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeAuditStore) CreateDebugEvent(ev *models.DebugEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeAuditStore) eventsOfType(eventType string) []models.DebugEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DebugEvent
	for _, ev := range f.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newTestBuilder() (*RequestBuilder, *fakeAuditStore) {
	store := &fakeAuditStore{}
	return NewRequestBuilder(NewAuditEmitter(store), "tr"), store
}

func validPaymentRequest() *CreatePaymentRequest {
	return &CreatePaymentRequest{
		OrderNumber: "ORD-1001",
		Amount:      100,
		Card: CardInput{
			HolderName:  "Ayse Yilmaz",
			Number:      "5528 7900 0000 0008",
			ExpireMonth: "4",
			ExpireYear:  "2030",
			CVC:         "123",
		},
		Buyer: BuyerInput{
			Name:    "Ayşe",
			Surname: "Yılmaz",
			Email:   "ayse@example.com",
			Phone:   "0532 123 45 67",
		},
	}
}

func TestBuildInitRequest(t *testing.T) {
	builder, _ := newTestBuilder()

	req, err := builder.BuildInitRequest("conv-1", validPaymentRequest(), "https://shop.example.com/cb")
	require.NoError(t, err)

	assert.Equal(t, "conv-1", req.ConversationID)
	assert.Equal(t, "100.00", req.Price)
	assert.Equal(t, "100.00", req.PaidPrice)
	assert.Equal(t, "1", req.Installment)
	assert.Equal(t, "TRY", req.Currency)
	assert.Equal(t, "ORD-1001", req.BasketID)
	assert.Equal(t, "https://shop.example.com/cb", req.CallbackURL)

	assert.Equal(t, "5528790000000008", req.PaymentCard.CardNumber)
	assert.Equal(t, "04", req.PaymentCard.ExpireMonth)
	assert.Equal(t, "2030", req.PaymentCard.ExpireYear)

	assert.Equal(t, "Ayse", req.Buyer.Name)
	assert.Equal(t, "Yilmaz", req.Buyer.Surname)
	assert.Equal(t, "+905321234567", req.Buyer.GSMNumber)
	assert.Equal(t, placeholderIdentity, req.Buyer.IdentityNumber)

	// No address blocks: both fall back to buyer data.
	assert.Equal(t, "Ayse Yilmaz", req.ShippingAddress.ContactName)
	assert.Equal(t, req.ShippingAddress, req.BillingAddress)

	// Empty basket collapses to one synthetic line.
	require.Len(t, req.BasketItems, 1)
	assert.Equal(t, "100.00", req.BasketItems[0].Price)
}

func TestBuildInitRequest_InvalidAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
	}{
		{"zero", 0},
		{"negative", -5},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder, store := newTestBuilder()
			in := validPaymentRequest()
			in.Amount = tt.amount

			_, err := builder.BuildInitRequest("conv-bad", in, "")
			assert.ErrorIs(t, err, utils.ErrInvalidAmount)
			require.Len(t, store.eventsOfType("validation"), 1)
			assert.Equal(t, models.SeverityWarning, store.eventsOfType("validation")[0].Severity)
		})
	}
}

func TestBuildInitRequest_MissingCard(t *testing.T) {
	builder, _ := newTestBuilder()
	in := validPaymentRequest()
	in.Card.Number = ""

	_, err := builder.BuildInitRequest("conv-1", in, "")
	assert.ErrorIs(t, err, utils.ErrMissingCard)
}

func TestReconcileBasket_Surplus(t *testing.T) {
	builder, store := newTestBuilder()

	items := []BasketItemInput{
		{ID: "SKU-1", Name: "Gomlek", Price: 60},
		{ID: "SKU-2", Name: "Kemer", Price: 30},
	}
	out := builder.ReconcileBasket("conv-1", items, 100)

	require.Len(t, out, 3)
	assert.Equal(t, "60.00", out[0].Price)
	assert.Equal(t, "30.00", out[1].Price)
	assert.Equal(t, "ADJ-1", out[2].ID)
	assert.Equal(t, "Hizmet Bedeli", out[2].Name)
	assert.Equal(t, "10.00", out[2].Price)

	assert.InDelta(t, 100.0, basketSum(t, out), 0.001)
	require.Len(t, store.eventsOfType("basket_reconciliation"), 1)
}

func TestReconcileBasket_Deficit(t *testing.T) {
	builder, store := newTestBuilder()

	items := []BasketItemInput{
		{ID: "SKU-1", Name: "Mont", Price: 80},
		{ID: "SKU-2", Name: "Bot", Price: 80},
	}
	out := builder.ReconcileBasket("conv-1", items, 100)

	require.Len(t, out, 2)
	assert.Equal(t, "50.00", out[0].Price)
	assert.Equal(t, "50.00", out[1].Price)
	assert.InDelta(t, 100.0, basketSum(t, out), 0.001)
	require.Len(t, store.eventsOfType("basket_reconciliation"), 1)
}

func TestReconcileBasket_DeficitManyLinesSumsExactly(t *testing.T) {
	builder, _ := newTestBuilder()

	// Uneven prices whose per-line rounding drifts past the tolerance
	// without residual settlement.
	prices := []float64{59.6, 18.36, 51.31, 29.94, 46.33, 13.1, 55.67, 58.53}
	items := make([]BasketItemInput, len(prices))
	for i, p := range prices {
		items[i] = BasketItemInput{ID: fmt.Sprintf("SKU-%d", i+1), Name: "Urun", Price: p}
	}
	out := builder.ReconcileBasket("conv-1", items, 100)

	require.Len(t, out, len(prices))
	assert.InDelta(t, 100.0, basketSum(t, out), 0.001)
	for _, item := range out {
		v, err := strconv.ParseFloat(item.Price, 64)
		require.NoError(t, err)
		assert.Greater(t, v, 0.0)
	}
}

func TestReconcileBasket_WithinTolerance(t *testing.T) {
	builder, store := newTestBuilder()

	items := []BasketItemInput{
		{ID: "SKU-1", Name: "Canta", Price: 99.995},
	}
	out := builder.ReconcileBasket("conv-1", items, 100)

	require.Len(t, out, 1)
	assert.Equal(t, "SKU-1", out[0].ID)
	assert.Empty(t, store.eventsOfType("basket_reconciliation"))
}

func TestReconcileBasket_Empty(t *testing.T) {
	builder, _ := newTestBuilder()

	out := builder.ReconcileBasket("conv-1", nil, 149.9)

	require.Len(t, out, 1)
	assert.Equal(t, "ORDER-1", out[0].ID)
	assert.Equal(t, "Siparis Tutari", out[0].Name)
	assert.Equal(t, "149.90", out[0].Price)
}

func basketSum(t *testing.T, items []iyzico.BasketItem) float64 {
	t.Helper()
	sum := 0.0
	for _, item := range items {
		v, err := strconv.ParseFloat(item.Price, 64)
		require.NoError(t, err)
		sum += v
	}
	return sum
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
		ok   bool
	}{
		{"plain", 12.3, "12.30", true},
		{"integer", 100, "100.00", true},
		{"zero", 0, "0.00", true},
		{"negative", -1, "0.00", false},
		{"nan", math.NaN(), "0.00", false},
		{"inf", math.Inf(-1), "0.00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FormatPrice(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestFormatPriceCoercionEmitsWarning(t *testing.T) {
	builder, store := newTestBuilder()

	got := builder.formatPrice("conv-1", math.NaN())
	assert.Equal(t, "0.00", got)

	events := store.eventsOfType("price_coercion")
	require.Len(t, events, 1)
	assert.Equal(t, models.SeverityWarning, events[0].Severity)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"domestic with trunk zero", "0532 123 45 67", "+905321234567", true},
		{"bare ten digits", "5321234567", "+905321234567", true},
		{"international digits", "905321234567", "+905321234567", true},
		{"plus prefixed", "+90 532 123 45 67", "+905321234567", true},
		{"too short", "12345", placeholderPhone, false},
		{"empty", "", placeholderPhone, false},
		{"garbage", "call me", placeholderPhone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePhone(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Şeyma Çağlı", "Seyma Cagli"},
		{"İĞÜÖ ığüö", "IGUO iguo"},
		{`say "hi"`, `say \"hi\"`},
		{`back\slash`, `back\\slash`},
		{"  trimmed  ", "trimmed"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeText(tt.in), "input %q", tt.in)
	}
}
