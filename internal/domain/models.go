package domain

import "time"

type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	UnitPrice int64  `json:"unit_price"`
	Stock     int    `json:"stock"`
	Active    bool   `json:"active"`
}

// CartItem is a line of the sale being built at a terminal. Name, UnitPrice
// and StockCeiling are snapshots taken when the product was added.
type CartItem struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	UnitPrice    int64  `json:"unit_price"`
	Quantity     int    `json:"quantity"`
	StockCeiling int    `json:"stock_ceiling"`
}

func (c CartItem) LineTotal() int64 {
	return int64(c.Quantity) * c.UnitPrice
}

type CashSession struct {
	ID                   string     `json:"id"`
	RegisterID           string     `json:"register_id"`
	CashierID            string     `json:"cashier_id"`
	OpenedAt             time.Time  `json:"opened_at"`
	ClosedAt             *time.Time `json:"closed_at,omitempty"`
	OpeningFloat         int64      `json:"opening_float"`
	DeclaredClosingFloat *int64     `json:"declared_closing_float,omitempty"`
	ExpectedClosingFloat *int64     `json:"expected_closing_float,omitempty"`
	TotalSales           *int64     `json:"total_sales,omitempty"`
	Variance             *int64     `json:"variance,omitempty"`
	VarianceClass        string     `json:"variance_class,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	Status               string     `json:"status"`
}

func (s CashSession) IsOpen() bool {
	return s.Status == SessionStatusOpen
}

type ClosingReport struct {
	Session              CashSession `json:"session"`
	OpeningFloat         int64       `json:"opening_float"`
	TotalSales           int64       `json:"total_sales"`
	SaleCount            int         `json:"sale_count"`
	ExpectedClosingFloat int64       `json:"expected_closing_float"`
	DeclaredClosingFloat int64       `json:"declared_closing_float"`
	Variance             int64       `json:"variance"`
	VariancePercent      string      `json:"variance_percent"`
	VarianceClass        string      `json:"variance_class"`
}

type Sale struct {
	ID             string     `json:"id"`
	SaleNumber     string     `json:"sale_number"`
	SessionID      string     `json:"session_id"`
	CustomerID     string     `json:"customer_id,omitempty"`
	CashierID      string     `json:"cashier_id"`
	RegisterID     string     `json:"register_id"`
	CommittedAt    time.Time  `json:"committed_at"`
	Subtotal       int64      `json:"subtotal"`
	Discount       int64      `json:"discount"`
	Total          int64      `json:"total"`
	AmountTendered int64      `json:"amount_tendered"`
	ChangeDue      int64      `json:"change_due"`
	PaymentMethod  string     `json:"payment_method"`
	Status         string     `json:"status"`
	Lines          []SaleLine `json:"lines"`
}

type SaleLine struct {
	ID        string `json:"id"`
	SaleID    string `json:"sale_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

type DailySales struct {
	Date      string `json:"date"`
	SaleCount int    `json:"sale_count"`
	Subtotal  int64  `json:"subtotal"`
	Discount  int64  `json:"discount"`
	Total     int64  `json:"total"`
	Sales     []Sale `json:"sales"`
}

type SessionOpenRequest struct {
	RegisterID   string `json:"register_id" validate:"required,max=64"`
	OpeningFloat int64  `json:"opening_float" validate:"gte=0"`
}

type SessionCloseRequest struct {
	SessionID     string `json:"session_id" validate:"required"`
	DeclaredFloat int64  `json:"declared_float" validate:"gte=0"`
	Notes         string `json:"notes" validate:"max=500"`
}

type CartAddRequest struct {
	RegisterID string `json:"register_id" validate:"required,max=64"`
	ProductID  string `json:"product_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gt=0,max=100000"`
}

type CartQuantityRequest struct {
	RegisterID string `json:"register_id" validate:"required,max=64"`
	Quantity   int    `json:"quantity" validate:"min=0,max=100000"`
}

// CartDiscountRequest sets the signed cart adjustment. A positive discount
// given by a cashier needs the manager PIN; a negative value is a fee.
type CartDiscountRequest struct {
	RegisterID string `json:"register_id" validate:"required,max=64"`
	Discount   int64  `json:"discount"`
	ManagerPIN string `json:"manager_pin"`
}

type CartView struct {
	RegisterID string     `json:"register_id"`
	Items      []CartItem `json:"items"`
	Subtotal   int64      `json:"subtotal"`
	Discount   int64      `json:"discount"`
	Total      int64      `json:"total"`
}

type CheckoutRequest struct {
	RegisterID     string `json:"register_id" validate:"required,max=64"`
	CustomerID     string `json:"customer_id" validate:"max=64"`
	AmountTendered int64  `json:"amount_tendered" validate:"gte=0"`
	PaymentMethod  string `json:"payment_method" validate:"omitempty,oneof=cash card transfer qr"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type CashierCreateRequest struct {
	Username    string `json:"username" validate:"required,min=4,max=32"`
	DisplayName string `json:"display_name" validate:"max=64"`
	Password    string `json:"password" validate:"required,min=6"`
}

type CashierUser struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username    string
	DisplayName string
	Password    string
	Role        string
	Active      bool
	CreatedAt   time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"

	SaleStatusCompleted = "completed"
	SaleStatusVoided    = "voided"

	VarianceNormal   = "normal"
	VarianceWarning  = "warning"
	VarianceCritical = "critical"

	RoleCashier = "cashier"
	RoleAdmin   = "admin"
)
