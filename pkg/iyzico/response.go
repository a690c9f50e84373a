package iyzico

import "encoding/json"

// BaseResponse carries the fields every gateway answer shares. Status is
// "success" or "failure"; on failure the error fields hold the gateway's own
// code and message.
type BaseResponse struct {
	Status         string `json:"status"`
	ErrorCode      string `json:"errorCode,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	ErrorGroup     string `json:"errorGroup,omitempty"`
	Locale         string `json:"locale,omitempty"`
	SystemTime     int64  `json:"systemTime,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// BusinessError converts a declared-failure response into a typed error. Nil
// when the response declares success.
func (r *BaseResponse) BusinessError() *BusinessError {
	if IsSuccess(r.Status) {
		return nil
	}
	return &BusinessError{
		Code:    r.ErrorCode,
		Message: r.ErrorMessage,
		Group:   r.ErrorGroup,
	}
}

// InitThreeDSResponse is the answer to a 3DS initialize call. On success the
// HTML content is a self-submitting form fragment redirecting the cardholder
// to the issuing bank (base64-encoded by the gateway).
type InitThreeDSResponse struct {
	BaseResponse
	ThreeDSHTMLContent string `json:"threeDSHtmlContent,omitempty"`
	PaymentID          string `json:"paymentId,omitempty"`
}

// PaymentResponse is the answer shape shared by the completion, detail and
// token-completion endpoints.
type PaymentResponse struct {
	BaseResponse
	PaymentID        string          `json:"paymentId,omitempty"`
	PaymentStatus    string          `json:"paymentStatus,omitempty"`
	AuthCode         string          `json:"authCode,omitempty"`
	MdStatus         int             `json:"mdStatus,omitempty"`
	FraudStatus      int             `json:"fraudStatus,omitempty"`
	Price            json.Number     `json:"price,omitempty"`
	PaidPrice        json.Number     `json:"paidPrice,omitempty"`
	Currency         string          `json:"currency,omitempty"`
	CardType         string          `json:"cardType,omitempty"`
	BinNumber        string          `json:"binNumber,omitempty"`
	LastFourDigit    string          `json:"lastFourDigits,omitempty"`
	ItemTransactions json.RawMessage `json:"itemTransactions,omitempty"`
}

// InstallmentInfoResponse is the answer to an installment lookup.
type InstallmentInfoResponse struct {
	BaseResponse
	InstallmentDetails json.RawMessage `json:"installmentDetails,omitempty"`
}

// CallbackPayload is what the cardholder's browser posts back to our callback
// endpoint after the issuing-bank step. A forged post is possible, so this
// payload alone never confirms success; the server-to-server completion call
// is authoritative.
type CallbackPayload struct {
	Status           string `json:"status" form:"status"`
	PaymentID        string `json:"paymentId" form:"paymentId"`
	ConversationID   string `json:"conversationId" form:"conversationId"`
	ConversationData string `json:"conversationData" form:"conversationData"`
	MdStatus         string `json:"mdStatus" form:"mdStatus"`
	Token            string `json:"token" form:"token"`
}
