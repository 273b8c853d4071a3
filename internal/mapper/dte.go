package mapper

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dteintake/internal/docpath"
	"dteintake/internal/logger"
	"dteintake/pkg/models"
)

// IVA tributo code in resumen.tributos.
const tributoIVA = "20"

var unitsOfMeasure = map[int]string{
	1:  "metro",
	23: "litro",
	34: "kilogramo",
	36: "libra",
	58: "docena",
	59: "unidad",
	99: "otra",
}

// DTEStandardMapper maps the official DTE JSON schema. The issuer (emisor)
// becomes the supplier because every document processed here is a purchase.
type DTEStandardMapper struct {
	log zerolog.Logger
}

// NewDTEStandardMapper creates a new DTE standard mapper
func NewDTEStandardMapper() *DTEStandardMapper {
	return &DTEStandardMapper{log: logger.WithComponent("mapper-dte")}
}

func (m *DTEStandardMapper) Name() string { return NameDTEStandard }

func (m *DTEStandardMapper) CanHandle(doc map[string]any) bool {
	return docpath.AsMap(doc["identificacion"]) != nil &&
		docpath.AsMap(doc["emisor"]) != nil &&
		docpath.AsMap(doc["resumen"]) != nil
}

func (m *DTEStandardMapper) Map(doc map[string]any, source string) (inv *models.Invoice, err error) {
	partial := map[string]any{}
	defer guard(source, m.Name(), partial, &err)

	if !m.CanHandle(doc) {
		return nil, NewMappingError(source, m.Name(),
			fmt.Errorf("%w: identificacion, emisor and resumen objects are required", ErrInvalidDocument), partial)
	}

	id := docpath.AsMap(doc["identificacion"])
	out := &models.Invoice{
		ControlNumber:  LookupString(id, "numeroControl"),
		DocumentNumber: FirstString(id, "codigoGeneracion", "numeroControl"),
		EmissionTime:   LookupString(id, "horEmi"),
		Currency:       FirstString(id, "tipoMoneda"),
	}
	partial["document_number"] = out.DocumentNumber
	partial["control_number"] = out.ControlNumber

	if out.DocumentNumber == "" {
		return nil, NewMappingError(source, m.Name(),
			fmt.Errorf("%w: identificacion has neither codigoGeneracion nor numeroControl", ErrInvalidDocument), partial)
	}
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	if v, ok := intValue(id["version"]); ok {
		out.DTEVersion = v
	}

	code := LookupString(id, "tipoDte")
	docType, known := models.DocumentTypeFromCode(code)
	out.DocumentType = docType
	if !known {
		m.log.Warn().Str("file", source).Str("tipo_dte", code).Msg("Unknown DTE document type code")
		out.AddWarning("unknown tipoDte code %q", code)
	}

	if date, ok := ParseDate(id["fecEmi"]); ok {
		out.IssueDate = date
	} else {
		out.AddWarning("issue date %q could not be parsed", LookupString(id, "fecEmi"))
	}

	out.Supplier = party(docpath.AsMap(doc["emisor"]))
	if receptor := docpath.AsMap(doc["receptor"]); receptor != nil {
		r := party(receptor)
		out.Receiver = &r
	}
	partial["supplier"] = out.Supplier.Name

	out.Items = m.items(docpath.AsSlice(doc["cuerpoDocumento"]), out)
	out.Summary = m.summary(docpath.AsMap(doc["resumen"]), out)
	partial["total"] = out.Summary.Total.String()

	resumen := docpath.AsMap(doc["resumen"])
	out.Extras.TotalInWords = LookupString(resumen, "totalLetras")
	if cond, ok := intValue(resumen["condicionOperacion"]); ok {
		out.Extras.PaymentCondition = models.PaymentCondition(cond)
	}
	out.Extras.AuthoritySeal = FirstString(doc, "selloRecibido", "responseMH.selloRecibido", "respuestaHacienda.selloRecibido")

	m.log.Debug().
		Str("file", source).
		Str("document_number", out.DocumentNumber).
		Str("type", string(out.DocumentType)).
		Int("items", len(out.Items)).
		Msg("Mapped DTE document")

	return finish(out, doc, source), nil
}

func (m *DTEStandardMapper) items(raw []any, inv *models.Invoice) []models.LineItem {
	items := make([]models.LineItem, 0, len(raw))
	for i, r := range raw {
		item := docpath.AsMap(r)
		if item == nil {
			inv.AddWarning("cuerpoDocumento[%d] is not an object", i)
			continue
		}

		li := models.LineItem{
			LineNumber:     i + 1,
			Code:           LookupString(item, "codigo"),
			Description:    LookupString(item, "descripcion"),
			UnitPrice:      DecimalOr(item["precioUni"], decimal.Zero),
			Discount:       DecimalOr(item["montoDescu"], decimal.Zero),
			NonSubjectSale: DecimalOr(item["ventaNoSuj"], decimal.Zero),
			ExemptSale:     DecimalOr(item["ventaExenta"], decimal.Zero),
			TaxableSale:    DecimalOr(item["ventaGravada"], decimal.Zero),
			Tax:            DecimalOr(item["ivaItem"], decimal.Zero),
		}
		if n, ok := intValue(item["numItem"]); ok && n > 0 {
			li.LineNumber = n
		}
		if u, ok := intValue(item["uniMedida"]); ok {
			if name, known := unitsOfMeasure[u]; known {
				li.UnitOfMeasure = name
			} else {
				li.UnitOfMeasure = fmt.Sprintf("%d", u)
			}
		}

		qty, ok := ParseDecimal(item["cantidad"])
		if !ok {
			qty = decimal.NewFromInt(1)
			inv.AddWarning("item %d: quantity missing, assumed 1", li.LineNumber)
		}
		li.Quantity = qty

		li.Total = li.TaxableSale.Add(li.ExemptSale).Add(li.NonSubjectSale)
		if li.Total.IsZero() {
			li.Total = li.Quantity.Mul(li.UnitPrice)
		}
		items = append(items, li)
	}
	return items
}

func (m *DTEStandardMapper) summary(resumen map[string]any, inv *models.Invoice) models.Summary {
	s := models.Summary{
		Subtotal:        DecimalOr(resumen["subTotal"], decimal.Zero),
		TotalTaxable:    DecimalOr(resumen["totalGravada"], decimal.Zero),
		TotalExempt:     DecimalOr(resumen["totalExenta"], decimal.Zero),
		TotalNonSubject: DecimalOr(resumen["totalNoSuj"], decimal.Zero),
		TotalDiscount:   DecimalOr(resumen["totalDescu"], decimal.Zero),
		RetainedTax:     DecimalOr(resumen["ivaRete1"], decimal.Zero),
		Tax:             taxFromSummary(resumen),
	}

	if total, _, ok := FirstOf(resumen, "totalPagar", "montoTotalOperacion"); ok {
		s.Total = DecimalOr(total, decimal.Zero)
	} else {
		inv.AddWarning("resumen has neither totalPagar nor montoTotalOperacion")
	}

	if s.Subtotal.IsZero() && s.Total.IsPositive() {
		s.Subtotal = s.Total.Sub(s.Tax)
		inv.AddWarning("subtotal back-computed from total and tax")
	}
	return s
}

// taxFromSummary prefers totalIva (consumer invoices), then the IVA entry of
// resumen.tributos, then the sum of all tributos.
func taxFromSummary(resumen map[string]any) decimal.Decimal {
	if iva := DecimalOr(resumen["totalIva"], decimal.Zero); iva.IsPositive() {
		return iva
	}

	tributos := docpath.AsSlice(resumen["tributos"])
	all := decimal.Zero
	for _, t := range tributos {
		tributo := docpath.AsMap(t)
		if tributo == nil {
			continue
		}
		valor := DecimalOr(tributo["valor"], decimal.Zero)
		if LookupString(tributo, "codigo") == tributoIVA {
			return valor
		}
		all = all.Add(valor)
	}
	return all
}

func party(m map[string]any) models.Party {
	return models.Party{
		Name:                LookupString(m, "nombre"),
		TaxID:               FirstString(m, "nit", "numDocumento"),
		RegistryID:          LookupString(m, "nrc"),
		ActivityCode:        LookupString(m, "codActividad"),
		ActivityDescription: LookupString(m, "descActividad"),
		CommercialName:      LookupString(m, "nombreComercial"),
		Address:             flattenAddress(m["direccion"]),
		Phone:               LookupString(m, "telefono"),
		Email:               LookupString(m, "correo"),
	}
}

func flattenAddress(v any) string {
	switch a := v.(type) {
	case string:
		return JoinPresent(a)
	case map[string]any:
		return JoinPresent(
			LookupString(a, "departamento"),
			LookupString(a, "municipio"),
			LookupString(a, "complemento"),
		)
	default:
		return ""
	}
}
