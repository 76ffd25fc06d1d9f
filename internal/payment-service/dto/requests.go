package dto

// Modos de checkout
const (
	ModePayment  = "payment"  // cobrança avulsa (PIX, boleto ou cartão)
	ModeLink     = "link"     // link de pagamento do Asaas
	ModeCheckout = "checkout" // checkout hospedado do Asaas
)

type CustomerData struct {
	Name    string `json:"name" validate:"required,max=120"`
	CpfCnpj string `json:"cpf_cnpj" validate:"required,numeric,len=11|len=14"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,numeric,min=10,max=11"`
}

type CreditCard struct {
	HolderName  string `json:"holder_name" validate:"required"`
	Number      string `json:"number" validate:"required,numeric,min=13,max=19"`
	ExpiryMonth string `json:"expiry_month" validate:"required,len=2,numeric"`
	ExpiryYear  string `json:"expiry_year" validate:"required,len=4,numeric"`
	Ccv         string `json:"ccv" validate:"required,min=3,max=4,numeric"`
	PostalCode  string `json:"postal_code" validate:"required"`
	AddrNumber  string `json:"address_number" validate:"required"`
}

type CheckoutRequest struct {
	SubscriberKind string       `json:"subscriber_kind" validate:"required,oneof=user business"`
	SubscriberID   string       `json:"subscriber_id" validate:"required,uuid"`
	PlanID         string       `json:"plan_id" validate:"required,uuid"`
	Mode           string       `json:"mode" validate:"required,oneof=payment link checkout"`
	BillingType    string       `json:"billing_type,omitempty" validate:"omitempty,oneof=PIX BOLETO CREDIT_CARD UNDEFINED"`
	Customer       CustomerData `json:"customer"`
	CreditCard     *CreditCard  `json:"credit_card,omitempty"`
	RemoteIP       string       `json:"-"`
}

type RefundRequest struct {
	ValueCents  int64  `json:"value_cents,omitempty" validate:"gte=0"` // 0 = estorno total
	Description string `json:"description,omitempty" validate:"max=200"`
}
