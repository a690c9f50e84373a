package iyzico

// Status Classification

// Top-level response status values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// paymentStatus values returned by the detail endpoint.
const (
	// PaymentStatusSuccess means the payment is fully authorized.
	PaymentStatusSuccess = "SUCCESS"
	// PaymentStatusCallbackThreeDS means the 3DS callback was already
	// authorized and the charge is settled on the gateway side. Treated as
	// terminal success, same as SUCCESS.
	PaymentStatusCallbackThreeDS = "CALLBACK_THREEDS"
	// PaymentStatusInitThreeDS means the cardholder has not returned from the
	// issuing bank yet.
	PaymentStatusInitThreeDS = "INIT_THREEDS"
	// PaymentStatusFailure means the payment is declined or dead.
	PaymentStatusFailure = "FAILURE"
)

// mdStatus values from the issuing bank. Only 1 means full authentication.
const (
	MdStatusAuthenticated = 1
)

// IsSuccess reports whether a top-level response status declares success.
func IsSuccess(status string) bool {
	return status == StatusSuccess
}

// IsTerminalPaymentSuccess reports whether a detail-endpoint paymentStatus is
// a terminal success state.
func IsTerminalPaymentSuccess(paymentStatus string) bool {
	return paymentStatus == PaymentStatusSuccess || paymentStatus == PaymentStatusCallbackThreeDS
}
