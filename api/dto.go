/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the HTTP contract, kept apart from the domain types so
  field names (camelCase on the wire) can evolve without touching the
  ledger. Monetary values travel as float64 and are converted to decimals
  at the boundary; responses carry the already-rounded totals.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain Sale
*/
package api

import (
	"time"

	"github.com/warp/sale-ledger/catalog"
	"github.com/warp/sale-ledger/ledger"
	"github.com/warp/sale-ledger/money"
	"github.com/warp/sale-ledger/reports"
)

// =============================================================================
// SALES
// =============================================================================

type CreatorDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type SaleItemDTO struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	Qty           int     `json:"qty"`
	UnitSalePrice float64 `json:"unitSalePrice"`
	UnitCostPrice float64 `json:"unitCostPrice"`
	VatRate       float64 `json:"vatRate"`
}

// CreateSaleRequest is the body of POST /api/sales.
type CreateSaleRequest struct {
	ClientRequestID string        `json:"clientRequestId"`
	CreatedBy       CreatorDTO    `json:"createdBy"`
	PaymentType     string        `json:"paymentType"`
	PosFeeType      string        `json:"posFeeType"`
	PosFeeValue     float64       `json:"posFeeValue"`
	Items           []SaleItemDTO `json:"items"`
}

// SaleDTO is a committed sale.
type SaleDTO struct {
	ID              string        `json:"id"`
	ClientRequestID string        `json:"clientRequestId"`
	CreatedAt       string        `json:"createdAt"`
	CreatedBy       CreatorDTO    `json:"createdBy"`
	PaymentType     string        `json:"paymentType"`
	PosFeeType      string        `json:"posFeeType"`
	PosFeeValue     float64       `json:"posFeeValue"`
	PosFeeAmount    float64       `json:"posFeeAmount"`
	TotalRevenue    float64       `json:"totalRevenue"`
	TotalCost       float64       `json:"totalCost"`
	TotalVat        float64       `json:"totalVat"`
	NetProfit       float64       `json:"netProfit"`
	Items           []SaleItemDTO `json:"items"`
	Warnings        []string      `json:"warnings,omitempty"`
}

func (r CreateSaleRequest) toDomain() ledger.CreateSaleRequest {
	feeType := money.FeeType(r.PosFeeType)
	if feeType == "" {
		feeType = money.FeeRate
	}

	items := make([]ledger.SaleItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = ledger.SaleItem{
			ProductID:     catalog.ProductID(it.ProductID),
			Name:          it.Name,
			Qty:           it.Qty,
			UnitSalePrice: money.FromFloat(it.UnitSalePrice),
			UnitCostPrice: money.FromFloat(it.UnitCostPrice),
			VatRate:       money.FromFloat(it.VatRate),
		}
	}

	return ledger.CreateSaleRequest{
		ClientRequestID: r.ClientRequestID,
		CreatedBy:       ledger.Creator{ID: r.CreatedBy.ID, Name: r.CreatedBy.Name, Role: r.CreatedBy.Role},
		PaymentType:     money.PaymentType(r.PaymentType),
		PosFeeType:      feeType,
		PosFeeValue:     money.FromFloat(r.PosFeeValue),
		Items:           items,
	}
}

func toSaleDTO(s ledger.Sale) SaleDTO {
	items := make([]SaleItemDTO, len(s.Items))
	for i, it := range s.Items {
		items[i] = SaleItemDTO{
			ProductID:     string(it.ProductID),
			Name:          it.Name,
			Qty:           it.Qty,
			UnitSalePrice: money.Float(it.UnitSalePrice),
			UnitCostPrice: money.Float(it.UnitCostPrice),
			VatRate:       money.Float(it.VatRate),
		}
	}
	return SaleDTO{
		ID:              string(s.ID),
		ClientRequestID: s.ClientRequestID,
		CreatedAt:       s.CreatedAt.Format(time.RFC3339),
		CreatedBy:       CreatorDTO{ID: s.CreatedBy.ID, Name: s.CreatedBy.Name, Role: s.CreatedBy.Role},
		PaymentType:     string(s.PaymentType),
		PosFeeType:      string(s.PosFeeType),
		PosFeeValue:     money.Float(s.PosFeeValue),
		PosFeeAmount:    money.Float(s.PosFeeAmount),
		TotalRevenue:    money.Float(s.TotalRevenue),
		TotalCost:       money.Float(s.TotalCost),
		TotalVat:        money.Float(s.TotalVat),
		NetProfit:       money.Float(s.NetProfit),
		Items:           items,
		Warnings:        s.Warnings,
	}
}

// =============================================================================
// PRODUCTS
// =============================================================================

type ProductDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category,omitempty"`
	SalePrice     float64 `json:"salePrice"`
	CostPrice     float64 `json:"costPrice"`
	VatRate       float64 `json:"vatRate"`
	StockOnHand   int     `json:"stockOnHand"`
	CriticalStock int     `json:"criticalStock"`
	IsActive      bool    `json:"isActive"`
	LowStock      bool    `json:"lowStock"`
	UpdatedAt     string  `json:"updatedAt"`
}

// UpdateProductRequest is the body of PATCH /api/products/{id}. Stock is
// not editable here; it only moves through sales.
type UpdateProductRequest struct {
	Name          *string  `json:"name"`
	Category      *string  `json:"category"`
	SalePrice     *float64 `json:"salePrice"`
	CostPrice     *float64 `json:"costPrice"`
	VatRate       *float64 `json:"vatRate"`
	CriticalStock *int     `json:"criticalStock"`
	IsActive      *bool    `json:"isActive"`
}

func (r UpdateProductRequest) toDomain() catalog.MetadataUpdate {
	u := catalog.MetadataUpdate{
		Name:          r.Name,
		Category:      r.Category,
		CriticalStock: r.CriticalStock,
		IsActive:      r.IsActive,
	}
	if r.SalePrice != nil {
		d := money.FromFloat(*r.SalePrice)
		u.SalePrice = &d
	}
	if r.CostPrice != nil {
		d := money.FromFloat(*r.CostPrice)
		u.CostPrice = &d
	}
	if r.VatRate != nil {
		d := money.FromFloat(*r.VatRate)
		u.VatRate = &d
	}
	return u
}

func toProductDTO(p catalog.Product) ProductDTO {
	return ProductDTO{
		ID:            string(p.ID),
		Name:          p.Name,
		Category:      p.Category,
		SalePrice:     money.Float(p.SalePrice),
		CostPrice:     money.Float(p.CostPrice),
		VatRate:       money.Float(p.VatRate),
		StockOnHand:   p.StockOnHand,
		CriticalStock: p.CriticalStock,
		IsActive:      p.IsActive,
		LowStock:      p.IsLowStock(),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
}

func toProductDTOs(products []catalog.Product) []ProductDTO {
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	return dtos
}

// =============================================================================
// ANALYTICS
// =============================================================================

type SummaryDTO struct {
	Period    string  `json:"period"`
	ProductID string  `json:"productId,omitempty"`
	Revenue   float64 `json:"revenue"`
	Cost      float64 `json:"cost"`
	Vat       float64 `json:"vat"`
	Profit    float64 `json:"profit"`
	Loss      float64 `json:"loss"`
	PosFees   float64 `json:"posFees"`
	NetProfit float64 `json:"netProfit"`
	SoldQty   int     `json:"soldQty"`
	SaleCount int     `json:"saleCount"`
}

type ProductSummaryDTO struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	SummaryDTO
}

type StaffSummaryDTO struct {
	StaffID string `json:"staffId"`
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	SummaryDTO
}

func toSummaryDTO(period reports.Period, s reports.Summary) SummaryDTO {
	return SummaryDTO{
		Period:    string(period),
		Revenue:   money.Float(s.Revenue),
		Cost:      money.Float(s.Cost),
		Vat:       money.Float(s.Vat),
		Profit:    money.Float(s.Profit),
		Loss:      money.Float(s.Loss),
		PosFees:   money.Float(s.PosFees),
		NetProfit: money.Float(s.NetProfit),
		SoldQty:   s.SoldQty,
		SaleCount: s.SaleCount,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response. Mutated is only
// set when the server can vouch that nothing changed.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Mutated *bool  `json:"mutated,omitempty"`
}
