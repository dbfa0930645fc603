// Package gateway builds outbound signed payment requests and verifies
// inbound webhook callbacks for the redirect payment gateway.
package gateway

import (
	"strings"

	"insurance-backend/pkg/apperr"

	"github.com/shopspring/decimal"
)

// Parameter names on the gateway wire format.
const (
	fieldMerchantID = "merchant_id"
	fieldOrderID    = "order_id"
	fieldAmount     = "amount"
	fieldReturnURL  = "return_url"
	fieldCancelURL  = "cancel_url"
	fieldNotifyURL  = "notify_url"
	fieldEmail      = "email_address"
	fieldItemName   = "item_name"
	fieldSignature  = "signature"
	fieldStatus     = "payment_status"
	fieldTxnID      = "txn_id"
)

// Gateway statuses reported on the callback.
const (
	statusComplete  = "COMPLETE"
	statusFailed    = "FAILED"
	statusCancelled = "CANCELLED"
)

// Config holds the merchant identity and the endpoints the gateway redirects
// back to. All values come from the environment at bootstrap.
type Config struct {
	MerchantID   string
	SharedSecret string
	CheckoutURL  string // gateway-hosted payment page
	ReturnURL    string
	CancelURL    string
	NotifyURL    string
}

// Gateway is the outbound/inbound adapter. It is stateless; all persistence
// happens in the payment service.
type Gateway struct {
	cfg Config
}

func New(cfg Config) *Gateway {
	return &Gateway{cfg: cfg}
}

// Checkout is a signed outbound parameter set plus the page to redirect the
// customer to.
type Checkout struct {
	RedirectURL string            `json:"redirect_url"`
	Params      map[string]string `json:"params"`
}

// BuildCheckout assembles and signs the outbound request for one payment.
// orderID is the internal payment identifier the webhook will echo back.
func (g *Gateway) BuildCheckout(orderID string, amount decimal.Decimal, itemName, customerEmail string) Checkout {
	params := map[string]string{
		fieldMerchantID: g.cfg.MerchantID,
		fieldOrderID:    orderID,
		fieldAmount:     amount.StringFixed(2),
		fieldReturnURL:  g.cfg.ReturnURL,
		fieldCancelURL:  g.cfg.CancelURL,
		fieldNotifyURL:  g.cfg.NotifyURL,
		fieldItemName:   itemName,
		fieldEmail:      customerEmail,
	}
	params[fieldSignature] = Sign(params, g.cfg.SharedSecret)
	return Checkout{RedirectURL: g.cfg.CheckoutURL, Params: params}
}

// Callback is a verified inbound webhook payload.
type Callback struct {
	OrderID      string
	GatewayTxnID string
	Succeeded    bool
	Amount       decimal.Decimal
	RawStatus    string
}

// VerifyCallback checks the signature over the received form (minus the
// signature field) and extracts the fields the payment service needs. A
// signature mismatch or unparsable amount is an external-dependency error.
func (g *Gateway) VerifyCallback(form map[string]string) (Callback, error) {
	sig, ok := form[fieldSignature]
	if !ok || sig == "" {
		return Callback{}, apperr.Externalf("callback is missing the signature field")
	}

	unsigned := make(map[string]string, len(form))
	for k, v := range form {
		if k == fieldSignature {
			continue
		}
		unsigned[k] = v
	}
	if !VerifySignature(unsigned, g.cfg.SharedSecret, sig) {
		return Callback{}, apperr.Externalf("callback signature mismatch")
	}

	orderID := form[fieldOrderID]
	if orderID == "" {
		return Callback{}, apperr.Externalf("callback is missing order_id")
	}

	amount, err := decimal.NewFromString(form[fieldAmount])
	if err != nil {
		return Callback{}, apperr.Externalf("callback amount %q is not a number: %w", form[fieldAmount], err)
	}

	status := strings.ToUpper(form[fieldStatus])
	return Callback{
		OrderID:      orderID,
		GatewayTxnID: form[fieldTxnID],
		Succeeded:    status == statusComplete,
		Amount:       amount,
		RawStatus:    status,
	}, nil
}
