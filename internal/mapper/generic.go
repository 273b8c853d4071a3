package mapper

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dteintake/internal/docpath"
	"dteintake/internal/logger"
	"dteintake/pkg/models"
)

// IdentityPolicy decides when the generic mapper gives up on a document.
type IdentityPolicy int

const (
	// RequireNumberOrTotal fails only when both the document number and the
	// total are missing.
	RequireNumberOrTotal IdentityPolicy = iota
	// RequireNumber fails whenever the document number is missing.
	RequireNumber
	// RequireNumberAndTotal fails when either is missing.
	RequireNumberAndTotal
)

// DefaultIdentityPolicy is the policy used by NewGenericFallbackMapper.
const DefaultIdentityPolicy = RequireNumberOrTotal

const (
	DefaultCurrency         = "USD"
	PlaceholderSupplierName = "PROVEEDOR NO IDENTIFICADO"
)

// SentinelIssueDate stands in for a missing issue date. It is old enough for
// the date plausibility check to flag it.
var SentinelIssueDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Synonym paths, tried in order. One level of nesting is allowed.
var (
	numberPaths = []string{
		"numero_documento", "numeroDocumento", "numero_factura", "numero", "num_factura", "folio",
		"invoice_number", "invoice_no", "document_number", "codigo_generacion", "codigoGeneracion",
		"factura.numero", "invoice.number", "identificacion.codigoGeneracion",
	}
	controlPaths = []string{
		"numero_control", "numeroControl", "control_number", "identificacion.numeroControl",
	}
	datePaths = []string{
		"fecha_emision", "fechaEmision", "fecha", "fecha_factura", "issue_date", "invoice_date", "date",
		"fecEmi", "identificacion.fecEmi", "factura.fecha",
	}
	supplierNamePaths = []string{
		"proveedor_nombre", "nombre_proveedor", "razon_social", "supplier_name",
		"proveedor", "supplier", "vendor",
		"proveedor.nombre", "emisor.nombre", "supplier.name", "vendor.name",
	}
	supplierTaxIDPaths = []string{
		"proveedor_nit", "nit", "supplier_tax_id", "tax_id",
		"proveedor.nit", "emisor.nit", "supplier.tax_id", "vendor.tax_id",
	}
	supplierNRCPaths = []string{"proveedor_nrc", "nrc", "proveedor.nrc", "emisor.nrc"}
	totalPaths       = []string{
		"total", "total_pagar", "totalPagar", "monto_total", "montoTotal", "importe_total",
		"grand_total", "total_amount", "amount", "resumen.totalPagar", "totales.total",
	}
	subtotalPaths = []string{"subtotal", "sub_total", "subTotal", "resumen.subTotal", "totales.subtotal"}
	taxPaths      = []string{"iva", "impuesto", "totalIva", "tax", "vat", "resumen.totalIva", "totales.iva"}
	currencyPaths = []string{"moneda", "currency", "tipoMoneda", "identificacion.tipoMoneda"}
	itemPaths     = []string{"items", "lineas", "detalle", "productos", "line_items", "cuerpoDocumento"}

	itemDescriptionPaths = []string{"descripcion", "description", "producto", "concepto", "nombre"}
	itemQuantityPaths    = []string{"cantidad", "quantity", "qty"}
	itemPricePaths       = []string{"precio_unitario", "precioUnitario", "precioUni", "unit_price", "precio", "price"}
	itemTotalPaths       = []string{"total", "monto", "importe", "subtotal", "amount", "ventaGravada"}
	itemCodePaths        = []string{"codigo", "code", "sku"}
)

// GenericFallbackMapper maps any JSON object by looking up synonyms for each
// canonical field. It accepts every document.
type GenericFallbackMapper struct {
	Policy IdentityPolicy
	log    zerolog.Logger
}

// NewGenericFallbackMapper creates a fallback mapper with DefaultIdentityPolicy.
func NewGenericFallbackMapper() *GenericFallbackMapper {
	return &GenericFallbackMapper{
		Policy: DefaultIdentityPolicy,
		log:    logger.WithComponent("mapper-generic"),
	}
}

func (m *GenericFallbackMapper) Name() string { return NameGeneric }

func (m *GenericFallbackMapper) CanHandle(map[string]any) bool { return true }

func (m *GenericFallbackMapper) Map(doc map[string]any, source string) (inv *models.Invoice, err error) {
	partial := map[string]any{}
	defer guard(source, m.Name(), partial, &err)

	number := FirstString(doc, numberPaths...)
	total, _, hasTotal := FirstDecimal(doc, totalPaths...)

	partial["document_number"] = number
	if hasTotal {
		partial["total"] = total.String()
	}

	if err := m.checkIdentity(number != "", hasTotal); err != nil {
		m.log.Warn().Str("file", source).Err(err).Msg("Document cannot be identified")
		return nil, NewMappingError(source, m.Name(), err, partial)
	}

	out := &models.Invoice{
		DocumentNumber: number,
		ControlNumber:  FirstString(doc, controlPaths...),
		DocumentType:   models.DocumentTypeUnknown,
		Currency:       FirstString(doc, currencyPaths...),
	}
	if out.DocumentNumber == "" {
		out.DocumentNumber = "GEN-" + fileStem(source)
		out.AddWarning("document number missing, synthesized %q", out.DocumentNumber)
	}
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	if code := FirstString(doc, "tipoDte", "tipo_dte", "tipo_documento"); code != "" {
		if t, ok := models.DocumentTypeFromCode(code); ok {
			out.DocumentType = t
		}
	}

	if date, ok := ParseDate(FirstString(doc, datePaths...)); ok {
		out.IssueDate = date
	} else {
		out.IssueDate = SentinelIssueDate
		out.AddWarning("issue date missing or unreadable, using %s", SentinelIssueDate.Format("2006-01-02"))
	}

	out.Supplier = models.Party{
		Name:       FirstString(doc, supplierNamePaths...),
		TaxID:      FirstString(doc, supplierTaxIDPaths...),
		RegistryID: FirstString(doc, supplierNRCPaths...),
	}
	if out.Supplier.Name == "" {
		out.Supplier.Name = PlaceholderSupplierName
		out.AddWarning("supplier name missing")
	}

	if raw, key, ok := FirstOf(doc, itemPaths...); ok {
		if list := docpath.AsSlice(raw); list != nil {
			out.Items = m.items(list, out)
		} else {
			out.AddWarning("%s is not a list", key)
		}
	}

	out.Summary.Total = total
	if !hasTotal {
		out.AddWarning("total missing")
	}
	if v, _, ok := FirstDecimal(doc, subtotalPaths...); ok {
		out.Summary.Subtotal = v
	}
	if v, _, ok := FirstDecimal(doc, taxPaths...); ok {
		out.Summary.Tax = v
	}

	m.log.Debug().
		Str("file", source).
		Str("document_number", out.DocumentNumber).
		Int("warnings", len(out.Metadata.ProcessingWarnings)).
		Msg("Mapped document with generic fallback")

	return finish(out, doc, source), nil
}

func (m *GenericFallbackMapper) checkIdentity(hasNumber, hasTotal bool) error {
	switch m.Policy {
	case RequireNumber:
		if !hasNumber {
			return fmt.Errorf("%w: document number is required", ErrMissingIdentity)
		}
	case RequireNumberAndTotal:
		if !hasNumber || !hasTotal {
			return fmt.Errorf("%w: document number and total are both required", ErrMissingIdentity)
		}
	default:
		if !hasNumber && !hasTotal {
			return ErrMissingIdentity
		}
	}
	return nil
}

func (m *GenericFallbackMapper) items(raw []any, inv *models.Invoice) []models.LineItem {
	items := make([]models.LineItem, 0, len(raw))
	for i, r := range raw {
		item := docpath.AsMap(r)
		if item == nil {
			inv.AddWarning("item %d is not an object", i+1)
			continue
		}

		li := models.LineItem{
			LineNumber:  i + 1,
			Code:        FirstString(item, itemCodePaths...),
			Description: FirstString(item, itemDescriptionPaths...),
			Quantity:    decimal.NewFromInt(1),
		}
		if v, _, ok := FirstOf(item, itemQuantityPaths...); ok {
			if q, ok := ParseDecimal(v); ok {
				li.Quantity = q
			}
		}
		if v, _, ok := FirstOf(item, itemPricePaths...); ok {
			li.UnitPrice = DecimalOr(v, decimal.Zero)
		}

		if v, _, ok := FirstOf(item, itemTotalPaths...); ok {
			li.Total = DecimalOr(v, decimal.Zero)
		}
		if li.Total.IsZero() && !li.Quantity.IsZero() && !li.UnitPrice.IsZero() {
			li.Total = li.Quantity.Mul(li.UnitPrice)
		}
		items = append(items, li)
	}
	return items
}
