package iyzico

// PaymentCard carries the full card block for a 3DS initialize call. The PAN
// must be digits only; masking for logs happens outside this package on a
// copy, never on the value sent to the gateway.
type PaymentCard struct {
	CardHolderName string `json:"cardHolderName"`
	CardNumber     string `json:"cardNumber"`
	ExpireMonth    string `json:"expireMonth"`
	ExpireYear     string `json:"expireYear"`
	CVC            string `json:"cvc"`
	RegisterCard   int    `json:"registerCard"`
}

// Buyer describes the purchasing customer.
type Buyer struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Surname             string `json:"surname"`
	GSMNumber           string `json:"gsmNumber"`
	Email               string `json:"email"`
	IdentityNumber      string `json:"identityNumber"`
	LastLoginDate       string `json:"lastLoginDate"`
	RegistrationDate    string `json:"registrationDate"`
	RegistrationAddress string `json:"registrationAddress"`
	IP                  string `json:"ip"`
	City                string `json:"city"`
	Country             string `json:"country"`
	ZipCode             string `json:"zipCode"`
}

// Address is a shipping or billing address block.
type Address struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode"`
}

// BasketItem is a single reconciled basket line. Price is a fixed 2-decimal
// string and the line prices must sum to the paid price.
type BasketItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category1 string `json:"category1"`
	Category2 string `json:"category2,omitempty"`
	ItemType  string `json:"itemType"`
	Price     string `json:"price"`
}

// Basket item types.
const (
	ItemTypePhysical = "PHYSICAL"
	ItemTypeVirtual  = "VIRTUAL"
)

// InitThreeDSRequest is the body of the 3DS initialize endpoint. CallbackURL
// is omissible for flows without a browser return leg.
type InitThreeDSRequest struct {
	Locale          string       `json:"locale"`
	ConversationID  string       `json:"conversationId"`
	Price           string       `json:"price"`
	PaidPrice       string       `json:"paidPrice"`
	Installment     string       `json:"installment"`
	PaymentChannel  string       `json:"paymentChannel"`
	BasketID        string       `json:"basketId"`
	PaymentGroup    string       `json:"paymentGroup"`
	CallbackURL     string       `json:"callbackUrl,omitempty"`
	Currency        string       `json:"currency"`
	PaymentCard     PaymentCard  `json:"paymentCard"`
	Buyer           Buyer        `json:"buyer"`
	ShippingAddress Address      `json:"shippingAddress"`
	BillingAddress  Address      `json:"billingAddress"`
	BasketItems     []BasketItem `json:"basketItems"`
}

// CompleteThreeDSRequest is the body of the 3DS completion (auth) endpoint,
// called server-to-server after the browser callback.
type CompleteThreeDSRequest struct {
	Locale         string `json:"locale"`
	ConversationID string `json:"conversationId"`
	PaymentID      string `json:"paymentId"`
}

// RetrievePaymentRequest is the body of the payment detail endpoint.
type RetrievePaymentRequest struct {
	Locale                string `json:"locale"`
	ConversationID        string `json:"conversationId"`
	PaymentID             string `json:"paymentId"`
	PaymentConversationID string `json:"paymentConversationId,omitempty"`
}

// RetrieveByTokenRequest completes a flow through a browser-supplied token
// instead of a paymentId.
type RetrieveByTokenRequest struct {
	Locale         string `json:"locale"`
	ConversationID string `json:"conversationId"`
	Token          string `json:"token"`
}

// InstallmentInfoRequest queries installment options for a BIN and price.
// Used as a harmless credential/signing probe: it charges nothing.
type InstallmentInfoRequest struct {
	Locale         string `json:"locale"`
	ConversationID string `json:"conversationId"`
	BinNumber      string `json:"binNumber,omitempty"`
	Price          string `json:"price"`
}
