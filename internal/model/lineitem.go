package model

// Category cost category of a line item
type Category string

const (
	CategoryLaborInternal Category = "labor_internal"
	CategorySubcontractor Category = "subcontractor"
	CategoryMaterials     Category = "materials"
	CategoryManagement    Category = "management"
)

// Valid reports whether the category is one of the closed set.
func (c Category) Valid() bool {
	switch c {
	case CategoryLaborInternal, CategorySubcontractor, CategoryMaterials, CategoryManagement:
		return true
	}
	return false
}

// Unit billing unit of a line item
type Unit string

const (
	UnitHour    Unit = "HR"
	UnitLumpSum Unit = "LS"
	UnitEach    Unit = "EA"
)

// Valid reports whether the unit is one of the allowed values.
func (u Unit) Valid() bool {
	switch u {
	case UnitHour, UnitLumpSum, UnitEach:
		return true
	}
	return false
}

// ImportedLineItem a validated, computed line item produced by one import
type ImportedLineItem struct {
	Description   string   `json:"description"`
	Category      Category `json:"category"`
	Quantity      float64  `json:"quantity"`
	Unit          Unit     `json:"unit"`
	CostPerUnit   float64  `json:"costPerUnit"`
	MarkupPercent float64  `json:"markupPercent"`
	PricePerUnit  float64  `json:"pricePerUnit"`
	Total         float64  `json:"total"`
	LaborHours    *float64 `json:"laborHours"`
	SourceRow     *int     `json:"sourceRow"`
	WasSplit      bool     `json:"wasSplit"`
	SplitFrom     string   `json:"splitFrom,omitempty"`
}

// ImportSummary aggregated result of one import invocation
type ImportSummary struct {
	TotalLineItems        int              `json:"totalLineItems"`
	TotalCost             float64          `json:"totalCost"`
	TotalPrice            float64          `json:"totalPrice"`
	CountByCategory       map[Category]int `json:"countByCategory"`
	TotalLaborHours       float64          `json:"totalLaborHours"`
	EstimatedLaborCushion float64          `json:"estimatedLaborCushion"`
	Warnings              []string         `json:"warnings"`
}

// EstimateLineItem the shape handed to the estimate-creation flow on confirm
type EstimateLineItem struct {
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	Category      Category `json:"category"`
	Quantity      float64  `json:"quantity"`
	Unit          Unit     `json:"unit"`
	CostPerUnit   float64  `json:"costPerUnit"`
	MarkupPercent float64  `json:"markupPercent"`
	PricePerUnit  float64  `json:"pricePerUnit"`
	Total         float64  `json:"total"`
}
