package asaas

import "math"

type BillingType string

const (
	BillingBoleto     BillingType = "BOLETO"
	BillingCreditCard BillingType = "CREDIT_CARD"
	BillingPix        BillingType = "PIX"
	BillingUndefined  BillingType = "UNDEFINED"
)

// Valid indica se o tipo de cobrança é aceito pelo Asaas
func (b BillingType) Valid() bool {
	switch b {
	case BillingBoleto, BillingCreditCard, BillingPix, BillingUndefined:
		return true
	}
	return false
}

// Status de cobrança devolvidos pelo Asaas
const (
	PaymentPending              = "PENDING"
	PaymentConfirmed            = "CONFIRMED"
	PaymentReceived             = "RECEIVED"
	PaymentOverdue              = "OVERDUE"
	PaymentRefunded             = "REFUNDED"
	PaymentAwaitingRiskAnalysis = "AWAITING_RISK_ANALYSIS"
)

type CustomerRequest struct {
	Name                 string `json:"name"`
	CpfCnpj              string `json:"cpfCnpj"`
	Email                string `json:"email,omitempty"`
	Phone                string `json:"phone,omitempty"`
	MobilePhone          string `json:"mobilePhone,omitempty"`
	ExternalReference    string `json:"externalReference,omitempty"`
	NotificationDisabled bool   `json:"notificationDisabled,omitempty"`
}

type Customer struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	CpfCnpj           string `json:"cpfCnpj"`
	Email             string `json:"email"`
	Phone             string `json:"phone,omitempty"`
	MobilePhone       string `json:"mobilePhone,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
	Deleted           bool   `json:"deleted"`
}

// List é o envelope de paginação das listagens do Asaas
type List[T any] struct {
	Object     string `json:"object"`
	HasMore    bool   `json:"hasMore"`
	TotalCount int    `json:"totalCount"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	Data       []T    `json:"data"`
}

type CreditCard struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	Ccv         string `json:"ccv"`
}

type CreditCardHolderInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	CpfCnpj       string `json:"cpfCnpj"`
	PostalCode    string `json:"postalCode"`
	AddressNumber string `json:"addressNumber"`
	Phone         string `json:"phone"`
}

type PaymentRequest struct {
	Customer             string                `json:"customer"`
	BillingType          BillingType           `json:"billingType"`
	Value                float64               `json:"value"`
	DueDate              string                `json:"dueDate"` // YYYY-MM-DD
	Description          string                `json:"description,omitempty"`
	ExternalReference    string                `json:"externalReference,omitempty"`
	CreditCard           *CreditCard           `json:"creditCard,omitempty"`
	CreditCardHolderInfo *CreditCardHolderInfo `json:"creditCardHolderInfo,omitempty"`
	RemoteIP             string                `json:"remoteIp,omitempty"`
}

type Payment struct {
	ID                string      `json:"id"`
	Customer          string      `json:"customer"`
	Subscription      string      `json:"subscription,omitempty"`
	PaymentLink       string      `json:"paymentLink,omitempty"`
	CheckoutSession   string      `json:"checkoutSession,omitempty"`
	Status            string      `json:"status"`
	BillingType       BillingType `json:"billingType"`
	Value             float64     `json:"value"`
	NetValue          float64     `json:"netValue,omitempty"`
	DueDate           string      `json:"dueDate"`
	InvoiceURL        string      `json:"invoiceUrl,omitempty"`
	BankSlipURL       string      `json:"bankSlipUrl,omitempty"`
	ExternalReference string      `json:"externalReference,omitempty"`
	Deleted           bool        `json:"deleted"`
}

type PixQrCode struct {
	EncodedImage   string `json:"encodedImage"` // PNG em base64
	Payload        string `json:"payload"`      // copia e cola
	ExpirationDate string `json:"expirationDate"`
}

type RefundRequest struct {
	Value       float64 `json:"value,omitempty"` // vazio = estorno total
	Description string  `json:"description,omitempty"`
}

type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Tipos de cobrança de links de pagamento
const (
	ChargeDetached    = "DETACHED"
	ChargeRecurrent   = "RECURRENT"
	ChargeInstallment = "INSTALLMENT"
)

type PaymentLinkRequest struct {
	Name                string      `json:"name"`
	Description         string      `json:"description,omitempty"`
	Value               float64     `json:"value"`
	BillingType         BillingType `json:"billingType"`
	ChargeType          string      `json:"chargeType"`
	SubscriptionCycle   string      `json:"subscriptionCycle,omitempty"`
	DueDateLimitDays    int         `json:"dueDateLimitDays"`
	ExternalReference   string      `json:"externalReference,omitempty"`
	NotificationEnabled bool        `json:"notificationEnabled"`
}

type PaymentLink struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Value             float64 `json:"value"`
	Active            bool    `json:"active"`
	URL               string  `json:"url"`
	ExternalReference string  `json:"externalReference,omitempty"`
}

type CheckoutCallback struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
	ExpiredURL string `json:"expiredUrl"`
}

type CheckoutItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	Value       float64 `json:"value"`
}

type CheckoutSubscription struct {
	Cycle       string `json:"cycle"`
	NextDueDate string `json:"nextDueDate"`
}

type CheckoutRequest struct {
	BillingTypes      []BillingType         `json:"billingTypes"`
	ChargeTypes       []string              `json:"chargeTypes"`
	MinutesToExpire   int                   `json:"minutesToExpire"`
	ExternalReference string                `json:"externalReference,omitempty"`
	Callback          CheckoutCallback      `json:"callback"`
	Items             []CheckoutItem        `json:"items"`
	Customer          string                `json:"customer,omitempty"`
	Subscription      *CheckoutSubscription `json:"subscription,omitempty"`
}

type Checkout struct {
	ID     string `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status,omitempty"`
}

// WebhookEvent é o corpo enviado pelo Asaas para a URL de webhook
type WebhookEvent struct {
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	DateCreated string    `json:"dateCreated"`
	Payment     *Payment  `json:"payment,omitempty"`
	Checkout    *Checkout `json:"checkout,omitempty"`
}

// CentsToValue converte centavos para o valor decimal usado pela API
func CentsToValue(cents int64) float64 { return float64(cents) / 100 }

// ValueToCents converte o valor decimal da API para centavos
func ValueToCents(v float64) int64 { return int64(math.Round(v * 100)) }

// Status do registro em asaas_webhook_events
const (
	WebhookReceived  = "RECEIVED"  // gravado, ainda não publicado no Kafka
	WebhookQueued    = "QUEUED"    // publicado, aguardando o worker
	WebhookProcessed = "PROCESSED" // reconciliado
	WebhookFailed    = "FAILED"    // enviado para DLQ
)
